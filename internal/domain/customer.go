package domain

// Customer is a buyer identified by unique name. TotalSpent and TotalPurchases
// are write-time rollups over the customer's sales.
type Customer struct {
	ID             int64
	Name           string
	TotalSpent     int64
	TotalPurchases int64
}
