package intent

import (
	"context"
	"strings"

	"imobot-backend/internal/domain"
)

// Local is the deterministic keyword-based Extractor used when the remote
// model is unavailable. It never returns an error.
type Local struct{}

// NewLocal returns a Local extractor.
func NewLocal() *Local { return &Local{} }

var (
	partSearchWords = []string{"vehicle", "car", "brake", "filter"}
	confirmWords    = []string{"yes", "correct", "oui"}
)

// Extract implements Extractor.
func (Local) Extract(_ context.Context, message string, session *domain.Session) (*Result, error) {
	return guess(message, session.State), nil
}

func guess(message string, state domain.State) *Result {
	m := strings.ToLower(message)
	r := &Result{Source: SourceLocal}
	switch state {
	case domain.StateWelcome:
		r.Intent = "welcome"
		r.NextState = Text(domain.StateSearchMethodSelection)
		r.Response = "Welcome! How would you like to search?\n1. By serial/part number\n2. By vehicle and part name"
	case domain.StateSearchMethodSelection:
		r.Intent = "method_selected"
		r.SearchMethod = domain.SearchBySerial
		if containsAny(m, partSearchWords) {
			r.SearchMethod = domain.SearchByPart
		}
		if strings.Contains(m, "vehicle") {
			r.NextState = Text(domain.StateCollectVehicleInfo)
			r.Response = "Please provide your vehicle details (brand, model, year)"
		} else {
			r.NextState = Text(domain.StateCollectSerial)
			r.Response = "Please provide the serial number"
		}
	case domain.StateCollectVehicleInfo:
		r.Intent = "vehicle_info"
		r.NextState = Text(domain.StateCollectVehicleInfo)
		r.Response = "I need your vehicle brand, model, and year (e.g., Toyota Corolla 2020)."
	case domain.StateConfirmVehicle:
		if containsAny(m, confirmWords) {
			r.Intent = "vehicle_confirmed"
			r.NextState = Text(domain.StateCollectPartName)
			r.Response = "Great! Now tell me which spare part you need."
		} else {
			r.Intent = "vehicle_rejected"
			r.NextState = Text(domain.StateCollectVehicleInfo)
			r.Response = "Okay, please re-enter your vehicle details (brand, model, year)."
		}
	case domain.StateCollectPartName:
		r.Intent = "part_name"
		r.PartName = Text(strings.TrimSpace(message))
		r.NextState = Text(domain.StateShowResults)
		r.Response = Text("Looking for " + message + "...")
	case domain.StateCollectSerial:
		r.Intent = "serial_number"
		r.Serial = Text(strings.TrimSpace(message))
		r.NextState = Text(domain.StateShowResults)
		r.Response = Text("Searching for part with serial " + message + "...")
	case domain.StateCollectContact:
		r.Intent = "contact_info"
		r.NextState = Text(domain.StateCompleted)
		r.Response = "Please share your phone or email so we can contact you."
	default:
		r.Intent = "unknown"
		r.NextState = Text(state)
		r.Response = "I understand. How can I help you find spare parts?"
	}
	return r
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
