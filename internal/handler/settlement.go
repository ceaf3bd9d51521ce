package handler

import (
	"net/http"

	"comandas/internal/model"
	"comandas/internal/mw"
)

type settleResponse struct {
	Payment *model.Payment `json:"payment"`
}

func SettleHandler(settlements SettlementService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.SettleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.CashierRef == "" {
			if staff, ok := mw.StaffFrom(r.Context()); ok {
				req.CashierRef = staff.ID
			}
		}

		payment, err := settlements.Settle(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, settleResponse{Payment: payment})
	}
}
