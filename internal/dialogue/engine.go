// Package dialogue implements the parts-lookup conversation: a table of
// per-state transition rules and the per-turn service around it.
package dialogue

import (
	"context"
	"log/slog"
	"strings"

	"imobot-backend/internal/domain"
	"imobot-backend/internal/extract"
	"imobot-backend/internal/intent"
)

// Inventory is what the engine needs from the parts database.
type Inventory interface {
	SearchBySerial(ctx context.Context, serial string) (*domain.Product, error)
	SearchPartsForVehicle(ctx context.Context, vehicle domain.VehicleInfo, partName string) ([]domain.Product, error)
	SaveContactRequest(ctx context.Context, req domain.ContactRequest) error
}

// Reply types.
const (
	ReplyText  = "text"
	ReplyParts = "parts"
)

// MaxListedParts is how many search results a reply shows.
const MaxListedParts = 5

// Reply is the engine's answer to one message.
type Reply struct {
	Type        string
	Text        string
	Suggestions []string
	Parts       []domain.Product
}

// Turn is the input of a single transition.
type Turn struct {
	Session *domain.Session
	Message string
	Guess   *intent.Result

	lower string
}

// Rule is one row of the transition table. Rules of a state are tried in
// order and the first whose Match accepts the turn is applied.
type Rule struct {
	Name  string
	Match func(t *Turn) bool
	Apply func(ctx context.Context, e *Engine, t *Turn) Reply
}

// Engine decides the next state and reply for a message.
type Engine struct {
	inventory Inventory
	logger    *slog.Logger
	table     map[domain.State][]Rule
}

// NewEngine returns an engine backed by inv.
func NewEngine(inv Inventory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{inventory: inv, logger: logger, table: transitions()}
}

// Rules returns the transition rules for state, in evaluation order.
func (e *Engine) Rules(state domain.State) []Rule {
	return e.table[state]
}

// Step applies the first matching rule for the session's state, mutating
// the session. guess may be nil. The classifier's next-state hint is never
// consulted.
func (e *Engine) Step(ctx context.Context, session *domain.Session, message string, guess *intent.Result) Reply {
	if guess == nil {
		guess = &intent.Result{}
	}
	t := &Turn{Session: session, Message: message, lower: strings.ToLower(message), Guess: guess}
	for _, r := range e.table[session.State] {
		if r.Match(t) {
			return r.Apply(ctx, e, t)
		}
	}
	// unknown state: start over
	e.logger.Warn("no transition for state, resetting", "session_id", session.ID, "state", session.State)
	session.Reset()
	session.State = domain.StateWelcome
	return welcome(ctx, e, t)
}

func always(*Turn) bool { return true }

func containing(words ...string) func(*Turn) bool {
	return func(t *Turn) bool {
		for _, w := range words {
			if strings.Contains(t.lower, w) {
				return true
			}
		}
		return false
	}
}

func transitions() map[domain.State][]Rule {
	return map[domain.State][]Rule{
		domain.StateWelcome: {
			{Name: "greet", Match: always, Apply: welcome},
		},
		domain.StateSearchMethodSelection: {
			{Name: "by-serial", Match: containing("serial", "number", "1"), Apply: chooseSerial},
			{Name: "by-vehicle", Match: always, Apply: chooseVehicle},
		},
		domain.StateCollectVehicleInfo: {
			{Name: "collect-vehicle", Match: always, Apply: collectVehicle},
		},
		domain.StateConfirmVehicle: {
			{Name: "confirmed", Match: containing("yes", "correct", "right", "oui", "ok"), Apply: confirmVehicle},
			{Name: "rejected", Match: always, Apply: rejectVehicle},
		},
		domain.StateCollectPartName: {
			{Name: "search-parts", Match: always, Apply: searchParts},
		},
		domain.StateCollectSerial: {
			{Name: "search-serial", Match: always, Apply: searchSerial},
		},
		domain.StateShowResults: {
			{Name: "order", Match: containing("order"), Apply: startOrder},
			{Name: "search-again", Match: containing("search another", "another part"), Apply: searchAgain},
			{Name: "stay", Match: always, Apply: stay},
		},
		domain.StateCollectContact: {
			{Name: "search-again", Match: containing("search another", "try another"), Apply: searchAgain},
			{Name: "collect-contact", Match: always, Apply: collectContact},
		},
		domain.StateCompleted: {
			{Name: "new-search", Match: containing("search", "part"), Apply: newSearch},
			{Name: "stay", Match: always, Apply: stay},
		},
	}
}

func welcome(_ context.Context, _ *Engine, t *Turn) Reply {
	t.Session.State = domain.StateSearchMethodSelection
	return text(welcomeText, methodSuggestions...)
}

func chooseSerial(_ context.Context, _ *Engine, t *Turn) Reply {
	t.Session.SearchMethod = domain.SearchBySerial
	t.Session.State = domain.StateCollectSerial
	return text(askSerialText)
}

func chooseVehicle(_ context.Context, _ *Engine, t *Turn) Reply {
	t.Session.SearchMethod = domain.SearchByPart
	t.Session.State = domain.StateCollectVehicleInfo
	return text(askVehicleText, vehicleSuggestions...)
}

func collectVehicle(_ context.Context, _ *Engine, t *Turn) Reply {
	s, g := t.Session, t.Guess
	found := extract.Vehicle(t.Message)
	if v := intent.Pick(g.VehicleBrand, found.Brand); v != "" {
		s.VehicleBrand = v
	}
	if v := intent.Pick(g.VehicleModel, found.Model); v != "" {
		s.VehicleModel = v
	}
	if v := intent.Pick(g.VehicleYear, found.Year); v != "" {
		s.VehicleYear = v
	}

	if s.HasVehicle() {
		s.State = domain.StateConfirmVehicle
		return text(confirmVehicleText(s.VehicleString()), confirmSuggestions...)
	}
	return text(missingVehicleText(s.MissingVehicleFields()))
}

func confirmVehicle(_ context.Context, _ *Engine, t *Turn) Reply {
	t.Session.State = domain.StateCollectPartName
	return text(askPartText, partSuggestions...)
}

func rejectVehicle(_ context.Context, _ *Engine, t *Turn) Reply {
	t.Session.ClearVehicle()
	t.Session.State = domain.StateCollectVehicleInfo
	return text(reenterVehicleText)
}

func searchParts(ctx context.Context, e *Engine, t *Turn) Reply {
	s := t.Session
	part := intent.Pick(t.Guess.PartName, strings.TrimSpace(t.Message))
	s.PartName = part

	results, err := e.inventory.SearchPartsForVehicle(ctx, s.Vehicle(), part)
	if err != nil {
		e.logger.Error("vehicle part search failed", "session_id", s.ID, "part", part, "error", err)
		results = nil
	}
	s.SearchResults = results
	s.State = domain.StateShowResults

	if len(results) == 0 {
		s.AwaitingContact = true
		s.RequestedPart = part
		s.State = domain.StateCollectContact
		return text(partNotFoundText(part, s.VehicleBrand, s.VehicleModel), notifySuggestions...)
	}
	return Reply{
		Type:        ReplyParts,
		Text:        resultsText(results),
		Suggestions: resultSuggestions,
		Parts:       firstN(results, MaxListedParts),
	}
}

func searchSerial(ctx context.Context, e *Engine, t *Turn) Reply {
	s := t.Session
	serial := strings.TrimSpace(t.Message)
	s.SerialNumber = serial

	product, err := e.inventory.SearchBySerial(ctx, serial)
	if err != nil {
		e.logger.Error("serial lookup failed", "session_id", s.ID, "serial", serial, "error", err)
		product = nil
	}
	if product == nil {
		s.SearchResults = nil
		s.AwaitingContact = true
		s.RequestedPart = serial
		s.State = domain.StateCollectContact
		return text(serialNotFoundText(serial), "Yes, contact me", "Try another serial")
	}

	s.SearchResults = []domain.Product{*product}
	s.State = domain.StateShowResults
	reply := Reply{Type: ReplyParts, Parts: s.SearchResults}
	if product.InStock() {
		reply.Text = serialInStockText(serial, *product)
		reply.Suggestions = []string{"Order now", "Search another part"}
		return reply
	}
	s.AwaitingContact = true
	s.RequestedPart = product.ProductName
	s.State = domain.StateCollectContact
	reply.Text = serialOutOfStockText(serial, *product)
	reply.Suggestions = []string{"Notify me when available", "Search another part"}
	return reply
}

func startOrder(_ context.Context, _ *Engine, t *Turn) Reply {
	s := t.Session
	if s.RequestedPart == "" && len(s.SearchResults) > 0 {
		s.RequestedPart = s.SearchResults[0].ProductName
	}
	s.AwaitingContact = true
	s.State = domain.StateCollectContact
	return text(orderContactText)
}

func searchAgain(_ context.Context, _ *Engine, t *Turn) Reply {
	s := t.Session
	s.AwaitingContact = false
	s.RequestedPart = ""
	s.State = domain.StateSearchMethodSelection
	return text(searchMenuText, methodSuggestions...)
}

func collectContact(ctx context.Context, e *Engine, t *Turn) Reply {
	s, g := t.Session, t.Guess
	found := extract.Contact(t.Message)
	// classifier values are only trusted when they look like a phone or email
	contact := extract.ContactInfo{
		Phone: intent.Pick(intent.Text(extract.Contact(g.Phone.String()).Phone), found.Phone),
		Email: intent.Pick(intent.Text(extract.Contact(g.Email.String()).Email), found.Email),
	}
	if contact.Empty() {
		return text(askContactText)
	}
	phone, email := contact.Phone, contact.Email

	requested := s.RequestedPart
	if requested == "" {
		requested = "Unknown part"
	}
	req := domain.ContactRequest{
		SessionID:     s.ID,
		CustomerName:  intent.Pick(g.Name, "Customer"),
		Phone:         phone,
		Email:         email,
		RequestedPart: requested,
		Vehicle:       s.Vehicle(),
	}
	if err := e.inventory.SaveContactRequest(ctx, req); err != nil {
		e.logger.Error("contact request not saved", "session_id", s.ID, "error", err)
		return text(askContactText)
	}
	s.AwaitingContact = false
	s.State = domain.StateCompleted
	return text(contactSavedText(phone, email), "Search another part", "Track an order")
}

func newSearch(_ context.Context, _ *Engine, t *Turn) Reply {
	t.Session.Reset()
	t.Session.State = domain.StateSearchMethodSelection
	return text(newSearchText, methodSuggestions...)
}

// stay keeps the current state. It answers with the remote model's reply for
// this turn when there is one, and with the state's own prompt otherwise.
func stay(_ context.Context, _ *Engine, t *Turn) Reply {
	var r Reply
	switch t.Session.State {
	case domain.StateShowResults:
		r = text(resultsPromptText, "Order now", "Search another part")
	default:
		r = text(completedPromptText, "Search another part", "Track an order")
	}
	if t.Guess.Source == intent.SourceRemote && t.Guess.Response != "" {
		r.Text = t.Guess.Response.String()
	}
	return r
}

func text(s string, suggestions ...string) Reply {
	if suggestions == nil {
		suggestions = []string{}
	}
	return Reply{Type: ReplyText, Text: s, Suggestions: suggestions}
}

func firstN(products []domain.Product, n int) []domain.Product {
	if len(products) > n {
		return products[:n]
	}
	return products
}
