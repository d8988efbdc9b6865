package domain

import "fmt"

// State is the stage of a parts-lookup conversation.
type State string

const (
	StateWelcome               State = "welcome"
	StateSearchMethodSelection State = "search_method_selection"
	StateCollectVehicleInfo    State = "collect_vehicle_info"
	StateConfirmVehicle        State = "confirm_vehicle"
	StateCollectPartName       State = "collect_part_name"
	StateCollectSerial         State = "collect_serial"
	StateShowResults           State = "show_results"
	StateCollectContact        State = "collect_contact"
	StateCompleted             State = "completed"
)

// States lists every state in dialogue order.
var States = []State{
	StateWelcome,
	StateSearchMethodSelection,
	StateCollectVehicleInfo,
	StateConfirmVehicle,
	StateCollectPartName,
	StateCollectSerial,
	StateShowResults,
	StateCollectContact,
	StateCompleted,
}

func (s State) String() string { return string(s) }

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	for _, v := range States {
		if s == v {
			return true
		}
	}
	return false
}

// ParseState converts a raw value into a State.
func ParseState(v string) (State, error) {
	s := State(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown conversation state %q", v)
	}
	return s, nil
}

// Search methods chosen at SEARCH_METHOD_SELECTION.
const (
	SearchBySerial = "serial"
	SearchByPart   = "part"
)
