package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lexrag/lexrag/internal/repository"
	"github.com/lexrag/lexrag/internal/service"
)

// pdfMagic is the required file signature for uploads.
var pdfMagic = []byte("%PDF")

type handlers struct {
	documents      *service.DocumentService
	queries        *service.QueryService
	maxUploadBytes int64
	logger         *slog.Logger
}

// handleUpload ingests a PDF from a multipart form field named "pdf".
func (h *handlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing pdf file field")
		return
	}
	defer file.Close()

	documentName := filepath.Base(header.Filename)
	if documentName == "" || documentName == "." ||
		!strings.EqualFold(filepath.Ext(documentName), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are accepted")
		return
	}

	magic := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(file, magic); err != nil || !bytes.Equal(magic, pdfMagic) {
		writeError(w, http.StatusBadRequest, "file is not a valid PDF")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.logger.Error("rewinding upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	tmp, err := os.CreateTemp("", "lexrag-upload-*.pdf")
	if err != nil {
		h.logger.Error("creating temp file failed", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, file)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		h.logger.Error("writing temp file failed", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	doc, err := h.documents.UploadPDF(r.Context(), userID, tmpPath, documentName, size)
	if err != nil {
		h.logger.Error("document ingestion failed", "document", documentName, "error", err)
		writeError(w, http.StatusInternalServerError, "document ingestion failed")
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

type queryRequest struct {
	Question string `json:"question"`
}

// handleQuery answers a question over the user's documents.
func (h *handlers) handleQuery(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := h.queries.Ask(r.Context(), userID, req.Question)
	if err != nil {
		h.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListDocuments lists the user's uploaded documents.
func (h *handlers) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	docs, err := h.documents.ListDocuments(r.Context(), userID)
	if err != nil {
		h.logger.Error("listing documents failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing documents failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// handleDeleteDocument removes one document and its vectors.
func (h *handlers) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing user")
		return
	}

	documentName := chi.URLParam(r, "documentName")
	if documentName == "" {
		writeError(w, http.StatusBadRequest, "document name is required")
		return
	}

	if err := h.documents.DeleteDocument(r.Context(), userID, documentName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		h.logger.Error("deleting document failed", "document", documentName, "error", err)
		writeError(w, http.StatusInternalServerError, "deleting document failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
