package api

import (
	"net/http"
	"strconv"

	"github.com/acdb/stockroom/internal/ledger"
	"github.com/acdb/stockroom/internal/model"
)

// ItemsHandler handles single-item endpoints and lifecycle actions.
type ItemsHandler struct {
	Ledger *ledger.Ledger
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type noteRequest struct {
	Note string `json:"note" validate:"max=500"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type lendRequest struct {
	Holder string `json:"holder" validate:"required,max=100"`
	Note   string `json:"note" validate:"max=500"`
}

type returnResponse struct {
	Message string `json:"message"`
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.Ledger.GetItemDetail(r.Context(), id)
	if err != nil {
		ledgerError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, detail)
}

// History handles GET /api/items/{id}/history.
func (h *ItemsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := h.Ledger.GetItemHistory(r.Context(), id, limit)
	if err != nil {
		ledgerError(w, r, err)
		return
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}
	jsonResponse(w, http.StatusOK, entries)
}

// Apply handles POST /api/items/{id}/apply.
func (h *ItemsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	h.act(w, r, &req, func(id int64, userID string) (any, error) {
		return h.Ledger.ApplyItem(r.Context(), id, userID, req.Note)
	})
}

// Return handles POST /api/items/{id}/return.
func (h *ItemsHandler) Return(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, nil, func(id int64, userID string) (any, error) {
		msg, err := h.Ledger.ReturnItem(r.Context(), id, userID)
		if err != nil {
			return nil, err
		}
		return returnResponse{Message: msg}, nil
	})
}

// Approve handles POST /api/items/{id}/approve.
func (h *ItemsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, nil, func(id int64, userID string) (any, error) {
		return h.Ledger.ApproveApplication(r.Context(), id, userID)
	})
}

// Reject handles POST /api/items/{id}/reject.
func (h *ItemsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	h.act(w, r, &req, func(id int64, userID string) (any, error) {
		return h.Ledger.RejectApplication(r.Context(), id, userID, req.Reason)
	})
}

// Lend handles POST /api/items/{id}/lend.
func (h *ItemsHandler) Lend(w http.ResponseWriter, r *http.Request) {
	var req lendRequest
	h.act(w, r, &req, func(id int64, userID string) (any, error) {
		return h.Ledger.LendItem(r.Context(), id, userID, req.Holder, req.Note)
	})
}

// Repair handles POST /api/items/{id}/repair.
func (h *ItemsHandler) Repair(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	h.act(w, r, &req, func(id int64, userID string) (any, error) {
		return h.Ledger.RepairItem(r.Context(), id, userID, req.Note)
	})
}

// Scrap handles POST /api/items/{id}/scrap.
func (h *ItemsHandler) Scrap(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	h.act(w, r, &req, func(id int64, userID string) (any, error) {
		return h.Ledger.ScrapItem(r.Context(), id, userID, req.Note)
	})
}

// act parses the item id and optional body, then runs fn as the caller.
func (h *ItemsHandler) act(w http.ResponseWriter, r *http.Request, body any, fn func(id int64, userID string) (any, error)) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body != nil {
		if err := decodeJSON(r, body); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := fn(id, GetClaims(r.Context()).UserID())
	if err != nil {
		ledgerError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, result)
}
