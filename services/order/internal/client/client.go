// Package client - типы ответов и запросов соседних сервисов, которые нужны координации заказа.
package client

// Product ответ price oracle
type Product struct {
	ID    int64
	Name  string
	Price int64
}

// PaymentRequest запрос на создание платежа от имени заказа
type PaymentRequest struct {
	OrderID        int64
	Amount         int64
	Status         string
	IdempotencyKey string
}
