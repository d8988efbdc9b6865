// Package intent proposes an intent and extracted fields for a chat message.
// Results are advisory: the dialogue engine decides state transitions itself.
package intent

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"imobot-backend/internal/domain"
)

// Extractor proposes an intent for a message given the session it belongs to.
type Extractor interface {
	Extract(ctx context.Context, message string, session *domain.Session) (*Result, error)
}

// Sources of a Result.
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// Result is the structured guess of an Extractor. Every field may be empty.
type Result struct {
	Intent       Text `json:"intent"`
	NextState    Text `json:"next_state"`
	Response     Text `json:"response"`
	SearchMethod Text `json:"search_method"`
	VehicleBrand Text `json:"vehicle_brand"`
	VehicleModel Text `json:"vehicle_model"`
	VehicleYear  Text `json:"vehicle_year"`
	PartName     Text `json:"part_name"`
	Serial       Text `json:"serial"`
	Phone        Text `json:"phone"`
	Email        Text `json:"email"`
	Name         Text `json:"name"`

	Source string `json:"-"`
}

// Text is a string field that tolerates what language models actually emit:
// numbers become their decimal form, and null or placeholder words become "".
type Text string

func (t Text) String() string { return string(t) }

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if placeholder(s) {
			s = ""
		}
		*t = Text(s)
	case float64:
		*t = Text(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		*t = Text(strconv.FormatBool(x))
	default:
		*t = ""
	}
	return nil
}

func placeholder(s string) bool {
	switch strings.ToLower(s) {
	case "null", "none", "nil", "unknown", "n/a":
		return true
	}
	return false
}

// Pick returns the classifier value when present and the local value otherwise.
func Pick(classified Text, local string) string {
	if classified != "" {
		return string(classified)
	}
	return local
}
