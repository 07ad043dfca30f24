package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fibermap/internal/domain"
)

type statusRequest struct {
	Status string `json:"status"`
}

type capacityRequest struct {
	Capacity int `json:"capacity"`
}

type strandsRequest struct {
	UsedStrands int `json:"usedStrands"`
}

type splitRatioRequest struct {
	SplitRatio string `json:"splitRatio"`
}

type technicianRequest struct {
	TechnicianID string `json:"technicianId"`
}

func (h *Handler) handleListElements(w http.ResponseWriter, r *http.Request) {
	elements, err := h.svc.List(r.URL.Query().Get("kind"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, elements)
}

func (h *Handler) handleGetElement(w http.ResponseWriter, r *http.Request) {
	el, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, el)
}

// handleCreateElement accepts the add-element form payload
func (h *Handler) handleCreateElement(w http.ResponseWriter, r *http.Request) {
	var draft domain.Draft
	if err := decodeJSONStrict(r, &draft); err != nil {
		h.writeBadRequest(w, err)
		return
	}

	el, err := h.svc.Create(r.Context(), draft)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/elements/"+el.Common().ID)
	h.writeJSON(w, http.StatusCreated, el)
}

func (h *Handler) handleRemoveElement(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	el, err := h.svc.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	h.writeElement(w, r, el, err)
}

func (h *Handler) handleSetCapacity(w http.ResponseWriter, r *http.Request) {
	var req capacityRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	el, err := h.svc.SetCapacity(r.Context(), chi.URLParam(r, "id"), req.Capacity)
	h.writeElement(w, r, el, err)
}

func (h *Handler) handleSetUsedStrands(w http.ResponseWriter, r *http.Request) {
	var req strandsRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	el, err := h.svc.SetUsedStrands(r.Context(), chi.URLParam(r, "id"), req.UsedStrands)
	h.writeElement(w, r, el, err)
}

func (h *Handler) handleSetSplitRatio(w http.ResponseWriter, r *http.Request) {
	var req splitRatioRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	el, err := h.svc.SetSplitRatio(r.Context(), chi.URLParam(r, "id"), req.SplitRatio)
	h.writeElement(w, r, el, err)
}

func (h *Handler) handleAssignTechnician(w http.ResponseWriter, r *http.Request) {
	var req technicianRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeBadRequest(w, err)
		return
	}
	el, err := h.svc.AssignTechnician(r.Context(), chi.URLParam(r, "id"), req.TechnicianID)
	h.writeElement(w, r, el, err)
}

func (h *Handler) handleUtilization(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Utilization())
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			h.writeError(w, http.StatusBadRequest, "invalid_value", "limit must be between 1 and 1000", nil)
			return
		}
		limit = n
	}

	entries, err := h.svc.History(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) writeElement(w http.ResponseWriter, r *http.Request, el domain.Element, err error) {
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, el)
}
