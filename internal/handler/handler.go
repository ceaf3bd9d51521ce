package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"comandas/internal/model"
	"comandas/internal/service"
)

const maxBody = 1 << 20

type OrderService interface {
	Submit(ctx context.Context, req model.SubmitRequest) (*model.Order, error)
	Get(ctx context.Context, id int64) (*model.Order, error)
	ListOpen(ctx context.Context) ([]model.Order, error)
	Delete(ctx context.Context, id int64) error
}

type StatusService interface {
	SetItemStatus(ctx context.Context, itemID int64, status model.ItemStatus) error
	SetOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
}

type SettlementService interface {
	Settle(ctx context.Context, req model.SettleRequest) (*model.Payment, error)
}

type TotalsService interface {
	CurrentTotals(ctx context.Context) ([]model.TableTotal, error)
	TableDetail(ctx context.Context, table int) (*model.TableBill, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker is a dependency the health endpoint reports on besides the database.
type Checker interface {
	Ping() error
}

// Counter reports how many observers a push component currently serves.
type Counter interface {
	Len() int
}

type healthResponse struct {
	OK                  bool `json:"ok"`
	Observers           int  `json:"observers"`
	TotalsSubscriptions int  `json:"totals_subscriptions"`
}

func HealthHandler(db Pinger, events, totals Counter, checks ...Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		for _, c := range checks {
			if err := c.Ping(); err != nil {
				slog.Error("health check failed", "error", err)
				http.Error(w, "dependency unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		writeJSON(w, http.StatusOK, healthResponse{
			OK:                  true,
			Observers:           events.Len(),
			TotalsSubscriptions: totals.Len(),
		})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// writeError maps the service error kinds to status codes. Storage details stay in the log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrStorage):
		slog.Error("storage failure", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		w.Header().Set("Retry-After", "1")
		http.Error(w, "temporarily unavailable, retry", http.StatusServiceUnavailable)
	default:
		slog.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func int64Param(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
