package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fibermap/internal/domain"
	"fibermap/internal/service"
)

type filterRequest struct {
	Search string `json:"search"`
	Kind   string `json:"kind"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type selectionRequest struct {
	ID string `json:"id"`
}

type submitResponse struct {
	Element domain.Element  `json:"element"`
	Map     service.MapView `json:"map"`
}

func (h *Handler) handleGetLayers(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Layers())
}

func (h *Handler) handleToggleLayer(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.ToggleLayer(r.Context(), chi.URLParam(r, "kind"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	view, err := h.svc.SetFilter(r.Context(), req.Search, req.Kind)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleGetMap(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.MapView())
}

func (h *Handler) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	view, err := h.svc.SetMode(req.Mode)
	h.writeMap(w, r, view, err)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	view, err := h.svc.Select(req.ID)
	h.writeMap(w, r, view, err)
}

func (h *Handler) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.ClearSelection())
}

func (h *Handler) handleSetSelectedStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	el, err := h.svc.SetSelectedStatus(r.Context(), req.Status)
	h.writeElement(w, r, el, err)
}

func (h *Handler) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	var draft domain.Draft
	if err := decodeJSONStrict(r, &draft); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	view, err := h.svc.UpdateDraft(draft)
	h.writeMap(w, r, view, err)
}

func (h *Handler) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	el, view, err := h.svc.SubmitDraft(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, submitResponse{Element: el, Map: view})
}

func (h *Handler) handleCancelDraft(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.CancelDraft())
}

func (h *Handler) writeMap(w http.ResponseWriter, r *http.Request, view service.MapView, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}
