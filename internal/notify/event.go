package notify

import (
	"errors"
	"fmt"
	"time"

	"comandas/internal/model"
)

type Kind string

const (
	KindOrderCreated       Kind = "order-created"
	KindItemStatusChanged  Kind = "item-status-changed"
	KindOrderStatusChanged Kind = "order-status-changed"
	KindOrderSettled       Kind = "order-settled"
	KindTotals             Kind = "totals"
)

var ErrInvalidEvent = errors.New("invalid event")

type Event struct {
	Kind    Kind      `json:"event"`
	Payload any       `json:"data"`
	At      time.Time `json:"at"`
}

type ItemStatusChange struct {
	ItemID      int64             `json:"item_id"`
	OrderID     int64             `json:"order_id"`
	Table       int               `json:"table"`
	Status      model.ItemStatus  `json:"status"`
	OrderStatus model.OrderStatus `json:"order_status"`
}

type OrderStatusChange struct {
	OrderID int64             `json:"order_id"`
	Table   int               `json:"table"`
	Status  model.OrderStatus `json:"status"`
	// Override marks a CLOSED status set without a payment.
	Override bool `json:"override,omitempty"`
}

func OrderCreated(o model.Order) Event {
	return Event{Kind: KindOrderCreated, Payload: o, At: time.Now().UTC()}
}

func ItemStatusChanged(c ItemStatusChange) Event {
	return Event{Kind: KindItemStatusChanged, Payload: c, At: time.Now().UTC()}
}

func OrderStatusChanged(c OrderStatusChange) Event {
	return Event{Kind: KindOrderStatusChanged, Payload: c, At: time.Now().UTC()}
}

func OrderSettled(p model.Payment) Event {
	return Event{Kind: KindOrderSettled, Payload: p, At: time.Now().UTC()}
}

func Totals(t []model.TableTotal) Event {
	if t == nil {
		t = []model.TableTotal{}
	}
	return Event{Kind: KindTotals, Payload: t, At: time.Now().UTC()}
}

// Validate checks that the payload matches the schema of its kind.
func (e Event) Validate() error {
	ok := false
	switch e.Kind {
	case KindOrderCreated:
		o, is := e.Payload.(model.Order)
		ok = is && o.ID > 0 && o.Table > 0
	case KindItemStatusChanged:
		c, is := e.Payload.(ItemStatusChange)
		ok = is && c.ItemID > 0 && c.Status.Valid() && c.OrderStatus.Valid()
	case KindOrderStatusChanged:
		c, is := e.Payload.(OrderStatusChange)
		ok = is && c.OrderID > 0 && c.Status.Valid()
	case KindOrderSettled:
		p, is := e.Payload.(model.Payment)
		ok = is && p.ID > 0 && p.OrderID > 0
	case KindTotals:
		_, ok = e.Payload.([]model.TableTotal)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: payload %T does not match kind %q", ErrInvalidEvent, e.Payload, e.Kind)
	}
	return nil
}
