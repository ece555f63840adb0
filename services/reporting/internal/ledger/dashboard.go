package ledger

// Параметры дашборда
const (
	DashboardTopK           = 5
	DashboardRecentPayments = 7
)

// PaymentPoint точка графика последних платежей
type PaymentPoint struct {
	PaymentID int64  `json:"payment_id"`
	Date      string `json:"date"`
	Amount    int64  `json:"amount"`
}

// Dashboard агрегат для главной страницы
type Dashboard struct {
	Users          int            `json:"users"`
	Products       int            `json:"products"`
	Orders         int            `json:"orders"`
	TotalPayments  int64          `json:"total_payments"`
	TopProducts    []ProductCount `json:"top_products"`
	RecentPayments []PaymentPoint `json:"recent_payments"`
	UnpaidOrders   int            `json:"unpaid_orders"`
}

// Summarize строит дашборд из тех же коллекций, что и Reconcile.
// TotalPayments - сумма всех платежей без учёта статуса, RecentPayments - последние 7 в порядке списка.
func Summarize(userCount int, products []Product, orders []Order, payments []Payment) Dashboard {
	d := Dashboard{
		Users:          userCount,
		Products:       len(products),
		Orders:         len(orders),
		TopProducts:    TopPaidProducts(products, orders, payments, DashboardTopK),
		RecentPayments: make([]PaymentPoint, 0, DashboardRecentPayments),
		UnpaidOrders:   len(UnpaidOrders(Reconcile(orders, products, payments))),
	}

	for _, p := range payments {
		d.TotalPayments += p.Amount
	}

	start := len(payments) - DashboardRecentPayments
	if start < 0 {
		start = 0
	}
	for _, p := range payments[start:] {
		point := PaymentPoint{PaymentID: p.ID, Amount: p.Amount}
		if !p.Date.IsZero() {
			point.Date = p.Date.Format("2006-01-02")
		}
		d.RecentPayments = append(d.RecentPayments, point)
	}
	return d
}
