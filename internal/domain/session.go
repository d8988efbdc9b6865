package domain

import (
	"strings"
	"sync"
)

// Session is one customer's in-progress conversation.
type Session struct {
	mu sync.Mutex

	ID              string    `json:"session_id"`
	State           State     `json:"state"`
	SearchMethod    string    `json:"search_method,omitempty"`
	VehicleBrand    string    `json:"vehicle_brand,omitempty"`
	VehicleModel    string    `json:"vehicle_model,omitempty"`
	VehicleYear     string    `json:"vehicle_year,omitempty"`
	PartName        string    `json:"part_name,omitempty"`
	SerialNumber    string    `json:"serial_number,omitempty"`
	SearchResults   []Product `json:"search_results,omitempty"`
	AwaitingContact bool      `json:"awaiting_contact"`
	RequestedPart   string    `json:"requested_part,omitempty"`

	Turns int `json:"-"`
}

// NewSession returns a session at the WELCOME state.
func NewSession(id string) *Session {
	return &Session{ID: id, State: StateWelcome}
}

// Lock serializes turns on the same session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases a lock taken with Lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// HasVehicle reports whether brand, model and year are all known.
func (s *Session) HasVehicle() bool {
	return s.VehicleBrand != "" && s.VehicleModel != "" && s.VehicleYear != ""
}

// MissingVehicleFields lists unknown vehicle fields in brand, model, year order.
func (s *Session) MissingVehicleFields() []string {
	var missing []string
	if s.VehicleBrand == "" {
		missing = append(missing, "brand")
	}
	if s.VehicleModel == "" {
		missing = append(missing, "model")
	}
	if s.VehicleYear == "" {
		missing = append(missing, "year")
	}
	return missing
}

// ClearVehicle forgets brand, model and year.
func (s *Session) ClearVehicle() {
	s.VehicleBrand = ""
	s.VehicleModel = ""
	s.VehicleYear = ""
}

// Reset clears everything collected for a search so a new one can start.
func (s *Session) Reset() {
	s.SearchMethod = ""
	s.ClearVehicle()
	s.PartName = ""
	s.SerialNumber = ""
	s.SearchResults = nil
	s.AwaitingContact = false
	s.RequestedPart = ""
}

// Vehicle returns a snapshot of the vehicle fields.
func (s *Session) Vehicle() VehicleInfo {
	return VehicleInfo{Brand: s.VehicleBrand, Model: s.VehicleModel, Year: s.VehicleYear}
}

// VehicleString formats the known vehicle fields, or "Unknown vehicle".
func (s *Session) VehicleString() string {
	return s.Vehicle().String()
}

// VehicleInfo is a brand/model/year triple.
type VehicleInfo struct {
	Brand string `json:"brand"`
	Model string `json:"model"`
	Year  string `json:"year"`
}

func (v VehicleInfo) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{v.Brand, v.Model, v.Year} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "Unknown vehicle"
	}
	return strings.Join(parts, " ")
}
