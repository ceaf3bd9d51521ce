package handler

import (
	"net/http"

	"comandas/internal/model"
	"comandas/internal/mw"
)

func SubmitOrderHandler(orders OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.SubmitRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.StaffRef == "" {
			if staff, ok := mw.StaffFrom(r.Context()); ok {
				req.StaffRef = staff.ID
			}
		}

		order, err := orders.Submit(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, order)
	}
}

func GetOrderHandler(orders OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "id")
		if !ok {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		order, err := orders.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, order)
	}
}

func ListOpenOrdersHandler(orders OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := orders.ListOpen(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func DeleteOrderHandler(orders OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := int64Param(r, "id")
		if !ok {
			http.Error(w, "invalid order id", http.StatusBadRequest)
			return
		}

		if err := orders.Delete(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}

		writeOK(w)
	}
}
