package model

type OrderStatus string

const (
	OrderPending       OrderStatus = "PENDING"
	OrderInPreparation OrderStatus = "IN_PREPARATION"
	OrderReady         OrderStatus = "READY"
	OrderClosed        OrderStatus = "CLOSED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderInPreparation, OrderReady, OrderClosed:
		return true
	}
	return false
}

type ItemStatus string

const (
	ItemPending       ItemStatus = "PENDING"
	ItemInPreparation ItemStatus = "IN_PREPARATION"
	ItemReady         ItemStatus = "READY"
)

func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemInPreparation, ItemReady:
		return true
	}
	return false
}

// CloseReason tells a settled order apart from an administratively closed one.
type CloseReason string

const (
	CloseSettled  CloseReason = "SETTLED"
	CloseOverride CloseReason = "OVERRIDE"
)

type PaymentMethod string

const (
	MethodCash  PaymentMethod = "cash"
	MethodCard  PaymentMethod = "card"
	MethodOther PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodOther:
		return true
	}
	return false
}
