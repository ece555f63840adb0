package repository

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultEventsTopic топик событий заказа по умолчанию
const DefaultEventsTopic = "order.events"

const orderEventVersion = 1

// orderEventPayload формат сообщения в order.events
type orderEventPayload struct {
	EventID      string `json:"event_id"`
	EventType    string `json:"event_type"`
	EventVersion int    `json:"event_version"`
	OccurredAt   string `json:"occurred_at"`
	OrderID      int64  `json:"order_id"`
	UserID       int64  `json:"user_id"`
	ProductID    int64  `json:"product_id"`
	Quantity     int64  `json:"quantity"`
	State        State  `json:"state"`
	FromState    State  `json:"from_state,omitempty"`
	Amount       *int64 `json:"amount,omitempty"`
	PaymentKey   string `json:"payment_key,omitempty"`
	PaymentID    *int64 `json:"payment_id,omitempty"`
}

// NewOrderEvent собирает outbox событие по текущему снимку заказа.
// from пустой для order.created.
func NewOrderEvent(topic, eventType string, o Order, from State, now time.Time) (OutboxEvent, error) {
	eventID := uuid.NewString()
	payload, err := json.Marshal(orderEventPayload{
		EventID:      eventID,
		EventType:    eventType,
		EventVersion: orderEventVersion,
		OccurredAt:   now.UTC().Format(time.RFC3339),
		OrderID:      o.ID,
		UserID:       o.UserID,
		ProductID:    o.ProductID,
		Quantity:     o.Quantity,
		State:        o.State,
		FromState:    from,
		Amount:       o.Amount,
		PaymentKey:   o.PaymentKey,
		PaymentID:    o.PaymentID,
	})
	if err != nil {
		return OutboxEvent{}, err
	}
	return OutboxEvent{
		EventID:     eventID,
		EventType:   eventType,
		AggregateID: strconv.FormatInt(o.ID, 10),
		Topic:       topic,
		Payload:     payload,
		Status:      OutboxStatusPending,
		CreatedAt:   now,
	}, nil
}
