package api

import (
	"net/http"

	"github.com/acdb/stockroom/internal/ledger"
	"github.com/acdb/stockroom/internal/model"
)

// InventoryHandler handles the category and list endpoints.
type InventoryHandler struct {
	Ledger *ledger.Ledger
}

type createCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type createListRequest struct {
	CategoryID int64  `json:"category_id" validate:"required,gt=0"`
	Name       string `json:"name" validate:"required,max=100"`
}

type addItemsRequest struct {
	Count  int    `json:"count" validate:"required,gte=1,lte=999"`
	Broken int    `json:"broken" validate:"gte=0,ltefield=Count"`
	Holder string `json:"holder" validate:"max=100"`
	Note   string `json:"note" validate:"max=500"`
}

type addItemsResponse struct {
	IDs []int64 `json:"ids"`
}

// ListCategories handles GET /api/categories.
func (h *InventoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Ledger.GetCategories(r.Context())
	if err != nil {
		ledgerError(w, r, err)
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, categories)
}

// CreateCategory handles POST /api/categories.
func (h *InventoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.Ledger.AddCategory(r.Context(), GetClaims(r.Context()).UserID(), req.Name)
	if err != nil {
		ledgerError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, c)
}

// ListLists handles GET /api/categories/{id}/lists.
func (h *InventoryHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	lists, err := h.Ledger.GetLists(r.Context(), id)
	if err != nil {
		ledgerError(w, r, err)
		return
	}
	if lists == nil {
		lists = []model.List{}
	}
	jsonResponse(w, http.StatusOK, lists)
}

// CreateList handles POST /api/lists.
func (h *InventoryHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.Ledger.AddList(r.Context(), GetClaims(r.Context()).UserID(), req.Name, req.CategoryID)
	if err != nil {
		ledgerError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, list)
}

// ListItems handles GET /api/lists/{id}/items.
func (h *InventoryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.Ledger.GetItems(r.Context(), id)
	if err != nil {
		ledgerError(w, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// AddItems handles POST /api/lists/{id}/items.
func (h *InventoryHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req addItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids, err := h.Ledger.AddItems(r.Context(), GetClaims(r.Context()).UserID(), ledger.NewItems{
		ListID:      id,
		Count:       req.Count,
		BrokenCount: req.Broken,
		Holder:      req.Holder,
		Note:        req.Note,
	})
	if err != nil {
		ledgerError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, addItemsResponse{IDs: ids})
}
