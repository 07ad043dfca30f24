package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"fibermap/internal/codec"
)

// handleExport downloads the whole topology as an attachment
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if _, err := codec.ForFormat(format); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.svc.ExportTo(&buf, format); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", codec.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, codec.Filename(timeNow(), format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport replaces the topology with the uploaded document. The format
// comes from ?format=, falling back to the request content type.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" && strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = "yaml"
	}

	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	result, err := h.svc.ImportFrom(r.Context(), body, format, "upload")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
