package handler

import (
	"net/http"

	"comandas/internal/model"
)

type itemStatusRequest struct {
	Status model.ItemStatus `json:"status"`
}

type orderStatusRequest struct {
	Status model.OrderStatus `json:"status"`
}

func SetItemStatusHandler(statuses StatusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "id")
		if !ok {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		var req itemStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := statuses.SetItemStatus(r.Context(), id, req.Status); err != nil {
			writeError(w, r, err)
			return
		}

		writeOK(w)
	}
}

func SetOrderStatusHandler(statuses StatusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "id")
		if !ok {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		var req orderStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := statuses.SetOrderStatus(r.Context(), id, req.Status); err != nil {
			writeError(w, r, err)
			return
		}

		writeOK(w)
	}
}
