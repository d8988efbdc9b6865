package domain

import (
	"encoding/json"
	"time"
)

// Product is a row of the inventory products table.
type Product struct {
	InternalReference string  `json:"internal_reference" db:"internal_reference"`
	ProductName       string  `json:"product_name" db:"product_name"`
	QuantityOnHand    int     `json:"quantity_on_hand" db:"quantity_on_hand"`
	SalesPrice        float64 `json:"sales_price" db:"sales_price"`
}

// InStock reports whether at least one unit is on hand.
func (p Product) InStock() bool { return p.QuantityOnHand > 0 }

// ContactRequest is a customer's request to be called back about a part.
type ContactRequest struct {
	SessionID     string      `json:"session_id"`
	CustomerName  string      `json:"customer_name"`
	Phone         string      `json:"phone"`
	Email         string      `json:"email"`
	RequestedPart string      `json:"requested_part"`
	Vehicle       VehicleInfo `json:"vehicle_info"`
}

// Message roles in the chat log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one logged turn.
type ChatMessage struct {
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
