// Package event описывает доменные события payment service
package event

import "time"

// PaymentRecordedTopic топик по умолчанию для PaymentRecorded
const PaymentRecordedTopic = "payment.recorded"

// PaymentRecorded событие payment.recorded.
// IdempotencyKey позволяет order service связать заказ с платежом, даже если ответ на POST /payments потерялся.
type PaymentRecorded struct {
	PaymentID      int64
	OrderID        int64
	Amount         int64
	Status         string
	IdempotencyKey string
	OccurredAt     time.Time
}
