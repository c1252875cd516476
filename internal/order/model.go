package order

import "time"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

type Order struct {
	ID            string `json:"id"`
	CustomerEmail string `json:"customer_email"`
	// TotalAmount is derived from the item subtotals inside the creation
	// transaction, never client-supplied. NUMERIC -> string.
	TotalAmount string    `json:"total_amount"`
	Status      string    `json:"status"`
	Items       []Item    `json:"items"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Item struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	// Price is the product's price frozen at order time.
	Price    string `json:"price"`
	Subtotal string `json:"subtotal"`
}

// CartLine is one (product, quantity) pair of a proposed cart.
type CartLine struct {
	ProductID string
	Quantity  int
}

// Actor is the authenticated identity a lifecycle action runs as.
// Staff actors are operators.
type Actor struct {
	Email string
	Staff bool
}

// Stats is the staff-facing order aggregate.
type Stats struct {
	TotalOrders      int    `json:"total_orders"`
	TotalRevenue     string `json:"total_revenue"`
	PendingOrders    int    `json:"pending_orders"`
	ProcessingOrders int    `json:"processing_orders"`
	CompletedOrders  int    `json:"completed_orders"`
	CancelledOrders  int    `json:"cancelled_orders"`
}
