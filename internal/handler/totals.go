package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func CurrentTotalsHandler(totals TotalsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := totals.CurrentTotals(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, list)
	}
}

func TableDetailHandler(totals TotalsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		table, err := strconv.Atoi(chi.URLParam(r, "table"))
		if err != nil || table <= 0 {
			http.Error(w, "invalid table", http.StatusBadRequest)
			return
		}

		bill, err := totals.TableDetail(r.Context(), table)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, bill)
	}
}
