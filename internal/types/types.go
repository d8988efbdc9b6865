package types

import (
	"encoding/json"
	"time"
)

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type ChatResponse struct {
	Type        string     `json:"type"`
	Reply       string     `json:"reply"`
	Suggestions []string   `json:"suggestions"`
	Data        []PartData `json:"data,omitempty"`
	SessionID   string     `json:"sessionId,omitempty"`
	State       string     `json:"state,omitempty"`
}

// PartData is one search result row as shown by the chat widget.
type PartData struct {
	PartNo      string  `json:"part_no"`
	Description string  `json:"description"`
	Qty         int     `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database,omitempty"`
}

type HistoryResponse struct {
	SessionID string           `json:"sessionId"`
	Messages  []HistoryMessage `json:"messages"`
}

type HistoryMessage struct {
	Role      string          `json:"role"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
