// Package ledger - сверка заказов с платежами.
// Чистые функции без I/O: одинаковые входные коллекции всегда дают одинаковый результат.
// И дашборд, и список задолженностей считают через этот пакет.
package ledger

import (
	"math"
	"sort"
	"time"
)

// Статусы платежа
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

// Order заказ из order service
type Order struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// Product товар из product service
type Product struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Payment платёж из payment service
type Payment struct {
	ID      int64     `json:"id"`
	OrderID int64     `json:"order_id"`
	Amount  int64     `json:"amount"`
	Status  string    `json:"status"`
	Date    time.Time `json:"date"`
}

// OrderBalance расчётное состояние одного заказа. Нигде не хранится.
type OrderBalance struct {
	OrderID        int64  `json:"order_id"`
	UserID         int64  `json:"user_id"`
	ProductID      int64  `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int64  `json:"quantity"`
	TotalOwed      int64  `json:"total_owed"`
	TotalPaid      int64  `json:"total_paid"`
	Remaining      int64  `json:"remaining"`
	ProductMissing bool   `json:"product_missing"`
	Settled        bool   `json:"settled"`
}

// Unpaid заказ не оплачен, если остаток положительный или товар не найден
func (b OrderBalance) Unpaid() bool {
	return !b.Settled
}

// Reconcile считает баланс по каждому заказу в порядке входного списка.
// total_paid - сумма всех платежей заказа независимо от их status.
// Если товара нет, сумма к оплате неизвестна: total_owed и remaining = 0, заказ не погашен.
func Reconcile(orders []Order, products []Product, payments []Payment) []OrderBalance {
	byID := make(map[int64]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	paid := PaidByOrder(payments)

	balances := make([]OrderBalance, 0, len(orders))
	for _, o := range orders {
		b := OrderBalance{
			OrderID:   o.ID,
			UserID:    o.UserID,
			ProductID: o.ProductID,
			Quantity:  o.Quantity,
			TotalPaid: paid[o.ID],
		}

		product, ok := byID[o.ProductID]
		if !ok {
			b.ProductMissing = true
			balances = append(balances, b)
			continue
		}

		b.ProductName = product.Name
		b.TotalOwed = owed(product.Price, o.Quantity)
		b.Remaining = remaining(b.TotalOwed, b.TotalPaid)
		b.Settled = b.Remaining <= 0
		balances = append(balances, b)
	}
	return balances
}

// owed price * quantity; при переполнении упирается в MaxInt64, и заказ остаётся неоплаченным
func owed(price, quantity int64) int64 {
	if price > 0 && quantity > 0 && price > math.MaxInt64/quantity {
		return math.MaxInt64
	}
	return price * quantity
}

func remaining(owed, paid int64) int64 {
	r := owed - paid
	if paid < 0 && r < owed {
		return math.MaxInt64
	}
	if paid > 0 && r > owed {
		return math.MinInt64
	}
	return r
}

// PaidByOrder сумма платежей по order_id. Сложение коммутативно: порядок платежей не важен.
func PaidByOrder(payments []Payment) map[int64]int64 {
	paid := make(map[int64]int64, len(payments))
	for _, p := range payments {
		paid[p.OrderID] += p.Amount
	}
	return paid
}

// UnpaidOrders подмножество балансов, по которым можно внести оплату
func UnpaidOrders(balances []OrderBalance) []OrderBalance {
	out := make([]OrderBalance, 0, len(balances))
	for _, b := range balances {
		if b.Unpaid() {
			out = append(out, b)
		}
	}
	return out
}

// ManualPaymentStatus статус ручного платежа: paid, если внесено не меньше остатка.
// Сохраняется именно внесённая сумма, даже если она больше остатка.
func ManualPaymentStatus(amount, remaining int64) string {
	if amount >= remaining {
		return StatusPaid
	}
	return StatusPending
}

// ProductCount количество оплаченных заказов по товару
type ProductCount struct {
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	PaidOrders int    `json:"paid_orders"`
}

// TopPaidProducts топ-k товаров по числу оплаченных заказов.
// Оплаченный заказ - тот, чей id встречается среди платежей со status == "paid".
// Товары без оплаченных заказов не попадают в результат, при равенстве сохраняется порядок products.
func TopPaidProducts(products []Product, orders []Order, payments []Payment, k int) []ProductCount {
	if k <= 0 {
		return []ProductCount{}
	}

	paidOrderIDs := make(map[int64]struct{})
	for _, p := range payments {
		if p.Status == StatusPaid {
			paidOrderIDs[p.OrderID] = struct{}{}
		}
	}

	perProduct := make(map[int64]int)
	for _, o := range orders {
		if _, ok := paidOrderIDs[o.ID]; ok {
			perProduct[o.ProductID]++
		}
	}

	stats := make([]ProductCount, 0, len(perProduct))
	for _, p := range products {
		if n := perProduct[p.ID]; n > 0 {
			stats = append(stats, ProductCount{ProductID: p.ID, Name: p.Name, PaidOrders: n})
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].PaidOrders > stats[j].PaidOrders
	})

	if len(stats) > k {
		stats = stats[:k]
	}
	return stats
}

// PaymentRequest ручной платёж, отправляемый в payment service
type PaymentRequest struct {
	OrderID        int64  `json:"order_id"`
	Amount         int64  `json:"amount"`
	Status         string `json:"status"`
	IdempotencyKey string `json:"-"`
}
