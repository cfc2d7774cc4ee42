package dto

// StatsResponse aggregates store counters.
type StatsResponse struct {
	Customers      int   `json:"customers"`
	ItemsTotal     int   `json:"items_total"`
	ItemsAvailable int   `json:"items_available"`
	PendingOrders  int   `json:"pending_orders"`
	CompletedTotal int   `json:"completed_total"`
	RevenueTotal   int64 `json:"revenue_total"`
	CompletedToday int   `json:"completed_today"`
	RevenueToday   int64 `json:"revenue_today"`
}

// ErrorResponse is returned for failed operator requests.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}
