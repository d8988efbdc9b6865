package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imobot-backend/internal/domain"
	"imobot-backend/internal/intent"
	"imobot-backend/internal/store"
)

type fakeInventory struct {
	mu       sync.Mutex
	products []domain.Product
	contacts []domain.ContactRequest
	err      error
	saveErr  error
}

func (f *fakeInventory) SearchBySerial(_ context.Context, serial string) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.products {
		if strings.EqualFold(p.InternalReference, serial) {
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeInventory) SearchPartsForVehicle(_ context.Context, v domain.VehicleInfo, part string) ([]domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.Product{}
	for _, p := range f.products {
		name := strings.ToLower(p.ProductName)
		if strings.Contains(name, strings.ToLower(v.Brand)) && strings.Contains(name, strings.ToLower(part)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeInventory) SaveContactRequest(_ context.Context, req domain.ContactRequest) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, req)
	return nil
}

type loggedMessage struct {
	role    string
	message string
	meta    map[string]any
}

type fakeRecorder struct {
	mu       sync.Mutex
	sessions map[string]string
	messages []loggedMessage
	err      error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{sessions: map[string]string{}}
}

func (f *fakeRecorder) SaveChatSession(_ context.Context, id, ip, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = ip
	return f.err
}

func (f *fakeRecorder) SaveMessage(_ context.Context, _ string, role, message string, meta map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, loggedMessage{role: role, message: message, meta: meta})
	return f.err
}

var (
	brakePadsInStock = domain.Product{InternalReference: "TY-BRK-001", ProductName: "Toyota Corolla brake pads", QuantityOnHand: 4, SalesPrice: 3500}
	oilFilterNoStock = domain.Product{InternalReference: "PG-FLT-010", ProductName: "Peugeot 308 oil filter", QuantityOnHand: 0, SalesPrice: 1200}
)

func newEngine(inv *fakeInventory) *Engine {
	return NewEngine(inv, nil)
}

func sessionAt(state domain.State) *domain.Session {
	s := domain.NewSession("s1")
	s.State = state
	return s
}

func TestEveryStateHasCatchAllRule(t *testing.T) {
	e := newEngine(&fakeInventory{})
	for _, st := range domain.States {
		rules := e.Rules(st)
		require.NotEmpty(t, rules, st)
		last := rules[len(rules)-1]
		assert.True(t, last.Match(&Turn{lower: "zzz"}), "state %s rule %s", st, last.Name)
	}
}

func TestWelcomeAlwaysAdvances(t *testing.T) {
	e := newEngine(&fakeInventory{})
	for _, msg := range []string{"hi", "serial", "Toyota Corolla 2020", "???"} {
		s := domain.NewSession("s1")
		r := e.Step(context.Background(), s, msg, nil)
		assert.Equal(t, domain.StateSearchMethodSelection, s.State, msg)
		assert.NotEmpty(t, r.Suggestions, msg)
		assert.Equal(t, ReplyText, r.Type)
	}
}

func TestSearchMethodSelection(t *testing.T) {
	tests := []struct {
		msg  string
		want domain.State
	}{
		{"Search by serial number", domain.StateCollectSerial},
		{"SERIAL please", domain.StateCollectSerial},
		{"part number", domain.StateCollectSerial},
		{"1", domain.StateCollectSerial},
		{"Search by vehicle", domain.StateCollectVehicleInfo},
		{"my car", domain.StateCollectVehicleInfo},
		{"whatever", domain.StateCollectVehicleInfo},
	}
	e := newEngine(&fakeInventory{})
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			s := sessionAt(domain.StateSearchMethodSelection)
			e.Step(context.Background(), s, tt.msg, nil)
			assert.Equal(t, tt.want, s.State)
		})
	}
}

func TestVehicleFieldsAccumulateAcrossTurns(t *testing.T) {
	ctx := context.Background()
	e := newEngine(&fakeInventory{})
	s := sessionAt(domain.StateCollectVehicleInfo)

	r := e.Step(ctx, s, "It's a Toyota", nil)
	assert.Equal(t, domain.StateCollectVehicleInfo, s.State)
	assert.Contains(t, r.Text, "model, year")

	r = e.Step(ctx, s, "the model is a corolla", &intent.Result{VehicleModel: "Corolla"})
	assert.Equal(t, domain.StateCollectVehicleInfo, s.State)
	assert.Contains(t, r.Text, "I still need the year")

	r = e.Step(ctx, s, "2020", nil)
	assert.Equal(t, domain.StateConfirmVehicle, s.State)
	assert.Contains(t, r.Text, "Toyota Corolla 2020")
	assert.Equal(t, confirmSuggestions, r.Suggestions)
}

func TestClassifierValueWinsOverExtractor(t *testing.T) {
	e := newEngine(&fakeInventory{})
	s := sessionAt(domain.StateCollectVehicleInfo)

	r := e.Step(context.Background(), s, "Toyota Corolla 2020", &intent.Result{VehicleModel: "Yaris"})
	assert.Equal(t, domain.StateConfirmVehicle, s.State)
	assert.Equal(t, "Yaris", s.VehicleModel)
	assert.Equal(t, "2020", s.VehicleYear)
	assert.Contains(t, r.Text, "Toyota Yaris 2020")
}

func TestConfirmVehicle(t *testing.T) {
	ctx := context.Background()
	e := newEngine(&fakeInventory{})
	withVehicle := func() *domain.Session {
		s := sessionAt(domain.StateConfirmVehicle)
		s.VehicleBrand, s.VehicleModel, s.VehicleYear = "Toyota", "Corolla", "2020"
		return s
	}

	s := withVehicle()
	e.Step(ctx, s, "No, let me re-enter", nil)
	assert.Equal(t, domain.StateCollectVehicleInfo, s.State)
	assert.False(t, s.HasVehicle())
	assert.Empty(t, s.VehicleBrand+s.VehicleModel+s.VehicleYear)

	s = withVehicle()
	r := e.Step(ctx, s, "Yes, correct", nil)
	assert.Equal(t, domain.StateCollectPartName, s.State)
	assert.Equal(t, domain.VehicleInfo{Brand: "Toyota", Model: "Corolla", Year: "2020"}, s.Vehicle())
	assert.Equal(t, partSuggestions, r.Suggestions)

	s = withVehicle()
	e.Step(ctx, s, "oui", nil)
	assert.Equal(t, domain.StateCollectPartName, s.State)
}

func TestSerialLookup(t *testing.T) {
	ctx := context.Background()
	e := newEngine(&fakeInventory{products: []domain.Product{brakePadsInStock, oilFilterNoStock}})

	t.Run("in stock", func(t *testing.T) {
		s := sessionAt(domain.StateCollectSerial)
		r := e.Step(ctx, s, "  ty-brk-001 ", nil)
		assert.Equal(t, domain.StateShowResults, s.State)
		assert.False(t, s.AwaitingContact)
		assert.Equal(t, "ty-brk-001", s.SerialNumber)
		assert.Equal(t, ReplyParts, r.Type)
		require.Len(t, r.Parts, 1)
		assert.Contains(t, r.Text, "3500.00 DZD")
	})

	t.Run("out of stock", func(t *testing.T) {
		s := sessionAt(domain.StateCollectSerial)
		r := e.Step(ctx, s, "PG-FLT-010", nil)
		assert.Equal(t, domain.StateCollectContact, s.State)
		assert.True(t, s.AwaitingContact)
		assert.Equal(t, oilFilterNoStock.ProductName, s.RequestedPart)
		assert.Contains(t, r.Text, "OUT OF STOCK")
	})

	t.Run("unknown", func(t *testing.T) {
		s := sessionAt(domain.StateCollectSerial)
		r := e.Step(ctx, s, "XX-000", nil)
		assert.Equal(t, domain.StateCollectContact, s.State)
		assert.True(t, s.AwaitingContact)
		assert.Equal(t, ReplyText, r.Type)
		assert.Contains(t, r.Text, "XX-000")
	})

	t.Run("lookup error is a miss", func(t *testing.T) {
		s := sessionAt(domain.StateCollectSerial)
		broken := newEngine(&fakeInventory{err: errors.New("db down")})
		broken.Step(ctx, s, "TY-BRK-001", nil)
		assert.Equal(t, domain.StateCollectContact, s.State)
	})
}

func TestPartSearch(t *testing.T) {
	ctx := context.Background()
	products := make([]domain.Product, 0, 7)
	for i := range 7 {
		products = append(products, domain.Product{
			InternalReference: fmt.Sprintf("TY-%03d", i),
			ProductName:       fmt.Sprintf("Toyota brake pads v%d", i),
			QuantityOnHand:    i,
			SalesPrice:        100,
		})
	}
	e := newEngine(&fakeInventory{products: products})
	vehicle := func() *domain.Session {
		s := sessionAt(domain.StateCollectPartName)
		s.VehicleBrand, s.VehicleModel, s.VehicleYear = "Toyota", "Corolla", "2020"
		return s
	}

	s := vehicle()
	r := e.Step(ctx, s, "I need brake pads", &intent.Result{PartName: "brake pads"})
	assert.Equal(t, domain.StateShowResults, s.State)
	assert.Equal(t, "brake pads", s.PartName)
	assert.Equal(t, ReplyParts, r.Type)
	assert.Len(t, r.Parts, MaxListedParts)
	assert.Len(t, s.SearchResults, 7)
	assert.Contains(t, r.Text, "I found 7 matching parts")
	assert.Contains(t, r.Text, "Serial: TY-004")
	assert.NotContains(t, r.Text, "Serial: TY-005")

	s = vehicle()
	r = e.Step(ctx, s, "alternator", nil)
	assert.Equal(t, domain.StateCollectContact, s.State)
	assert.True(t, s.AwaitingContact)
	assert.Equal(t, "alternator", s.RequestedPart)
	assert.Contains(t, r.Text, "couldn't find alternator for your Toyota Corolla")
}

func TestContactRoundTrip(t *testing.T) {
	ctx := context.Background()
	inv := &fakeInventory{}
	e := newEngine(inv)
	s := sessionAt(domain.StateCollectContact)
	s.RequestedPart = "alternator"
	s.AwaitingContact = true
	s.VehicleBrand, s.VehicleModel, s.VehicleYear = "Renault", "Clio", "2018"

	r := e.Step(ctx, s, "call me on 0555123456 or ali@example.dz", nil)
	assert.Equal(t, domain.StateCompleted, s.State)
	assert.False(t, s.AwaitingContact)
	require.Len(t, inv.contacts, 1)
	got := inv.contacts[0]
	assert.Equal(t, "0555123456", got.Phone)
	assert.Equal(t, "ali@example.dz", got.Email)
	assert.Equal(t, "alternator", got.RequestedPart)
	assert.Equal(t, "Customer", got.CustomerName)
	assert.Equal(t, "Clio", got.Vehicle.Model)
	assert.Contains(t, r.Text, "Phone: 0555123456")
	assert.Contains(t, r.Text, "Email: ali@example.dz")
}

func TestContactRejectsPlaceholderGuesses(t *testing.T) {
	inv := &fakeInventory{}
	e := newEngine(inv)
	s := sessionAt(domain.StateCollectContact)

	r := e.Step(context.Background(), s, "Yes, I want to be notified",
		&intent.Result{Phone: "extracted phone", Email: "extracted email", Source: intent.SourceRemote})
	assert.Equal(t, domain.StateCollectContact, s.State)
	assert.Equal(t, askContactText, r.Text)
	assert.Empty(t, inv.contacts)
}

func TestContactSaveFailureStays(t *testing.T) {
	e := newEngine(&fakeInventory{saveErr: errors.New("insert failed")})
	s := sessionAt(domain.StateCollectContact)

	e.Step(context.Background(), s, "0661000000", nil)
	assert.Equal(t, domain.StateCollectContact, s.State)
}

func TestShowResults(t *testing.T) {
	ctx := context.Background()
	e := newEngine(&fakeInventory{})
	withResults := func() *domain.Session {
		s := sessionAt(domain.StateShowResults)
		s.SearchResults = []domain.Product{brakePadsInStock}
		return s
	}

	s := withResults()
	e.Step(ctx, s, "Order now", nil)
	assert.Equal(t, domain.StateCollectContact, s.State)
	assert.Equal(t, brakePadsInStock.ProductName, s.RequestedPart)
	assert.True(t, s.AwaitingContact)

	s = withResults()
	r := e.Step(ctx, s, "Search another part", nil)
	assert.Equal(t, domain.StateSearchMethodSelection, s.State)
	assert.Equal(t, methodSuggestions, r.Suggestions)

	s = withResults()
	r = e.Step(ctx, s, "how much is shipping?", &intent.Result{Response: "Shipping is free.", Source: intent.SourceRemote})
	assert.Equal(t, domain.StateShowResults, s.State)
	assert.Equal(t, "Shipping is free.", r.Text)

	r = e.Step(ctx, s, "hmm", &intent.Result{Response: "I understand.", Source: intent.SourceLocal})
	assert.Equal(t, domain.StateShowResults, s.State)
	assert.Equal(t, resultsPromptText, r.Text)
}

func TestCompleted(t *testing.T) {
	ctx := context.Background()
	e := newEngine(&fakeInventory{})
	s := sessionAt(domain.StateCompleted)
	s.VehicleBrand, s.PartName, s.SerialNumber = "Kia", "battery", "KIA-1"
	s.SearchResults = []domain.Product{brakePadsInStock}

	r := e.Step(ctx, s, "thanks", nil)
	assert.Equal(t, domain.StateCompleted, s.State)
	assert.Equal(t, completedPromptText, r.Text)

	e.Step(ctx, s, "Search another part", nil)
	assert.Equal(t, domain.StateSearchMethodSelection, s.State)
	assert.Empty(t, s.VehicleBrand)
	assert.Empty(t, s.PartName)
	assert.Empty(t, s.SerialNumber)
	assert.Empty(t, s.SearchResults)
}

func TestUnknownStateRestarts(t *testing.T) {
	e := newEngine(&fakeInventory{})
	s := sessionAt(domain.State("bogus"))
	r := e.Step(context.Background(), s, "hello", nil)
	assert.Equal(t, domain.StateSearchMethodSelection, s.State)
	assert.NotEmpty(t, r.Suggestions)
}

func newService(inv *fakeInventory, rec *fakeRecorder, classifier intent.Extractor) *Service {
	return NewService(store.NewSessionStore(100, time.Minute), rec, classifier, newEngine(inv), nil)
}

func TestServiceRecordsEveryTurn(t *testing.T) {
	rec := newFakeRecorder()
	svc := newService(&fakeInventory{}, rec, intent.NewLocal())

	res, err := svc.Turn(context.Background(), TurnRequest{SessionID: "abc", Message: " hello ", UserIP: "10.1.1.1"})
	require.NoError(t, err)
	assert.Equal(t, "abc", res.SessionID)
	assert.Equal(t, domain.StateSearchMethodSelection, res.State)

	assert.Equal(t, "10.1.1.1", rec.sessions["abc"])
	require.Len(t, rec.messages, 2)
	assert.Equal(t, domain.RoleUser, rec.messages[0].role)
	assert.Equal(t, "hello", rec.messages[0].message)
	assert.Equal(t, domain.RoleAssistant, rec.messages[1].role)
	assert.Equal(t, res.Reply.Text, rec.messages[1].message)
	assert.Equal(t, "search_method_selection", rec.messages[1].meta["state"])
}

func TestServiceToleratesRecorderFailures(t *testing.T) {
	rec := newFakeRecorder()
	rec.err = errors.New("disk full")
	svc := newService(&fakeInventory{}, rec, intent.NewLocal())

	res, err := svc.Turn(context.Background(), TurnRequest{Message: "hi"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.SessionID, "s_"))
}

func TestServiceRejectsEmptyMessage(t *testing.T) {
	svc := newService(&fakeInventory{}, newFakeRecorder(), intent.NewLocal())
	_, err := svc.Turn(context.Background(), TurnRequest{SessionID: "x", Message: "   "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestServiceSerializesTurnsPerSession(t *testing.T) {
	sessions := store.NewSessionStore(100, time.Minute)
	svc := NewService(sessions, newFakeRecorder(), intent.NewLocal(), newEngine(&fakeInventory{}), nil)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Turn(context.Background(), TurnRequest{SessionID: "shared", Message: "thanks"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, ok := sessions.Get("shared")
	require.True(t, ok)
	assert.Equal(t, 20, s.Turns)
}

type downExtractor struct{}

func (downExtractor) Extract(context.Context, string, *domain.Session) (*intent.Result, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestEveryStateRepliesWhenClassifierIsDown(t *testing.T) {
	classifier := intent.NewBreaker(downExtractor{}, intent.NewLocal(), intent.BreakerOptions{Timeout: time.Second})
	inv := &fakeInventory{products: []domain.Product{brakePadsInStock}}
	successors := map[domain.State][]domain.State{
		domain.StateWelcome:               {domain.StateSearchMethodSelection},
		domain.StateSearchMethodSelection: {domain.StateCollectSerial, domain.StateCollectVehicleInfo},
		domain.StateCollectVehicleInfo:    {domain.StateCollectVehicleInfo, domain.StateConfirmVehicle},
		domain.StateConfirmVehicle:        {domain.StateCollectPartName, domain.StateCollectVehicleInfo},
		domain.StateCollectPartName:       {domain.StateShowResults, domain.StateCollectContact},
		domain.StateCollectSerial:         {domain.StateShowResults, domain.StateCollectContact},
		domain.StateShowResults:           {domain.StateShowResults, domain.StateCollectContact, domain.StateSearchMethodSelection},
		domain.StateCollectContact:        {domain.StateCollectContact, domain.StateCompleted, domain.StateSearchMethodSelection},
		domain.StateCompleted:             {domain.StateCompleted, domain.StateSearchMethodSelection},
	}
	messages := []string{"hello", "Toyota Corolla 2020", "yes", "brake pads", "TY-BRK-001", "order", "0555123456", "search"}

	for _, st := range domain.States {
		for _, msg := range messages {
			svc := newService(inv, newFakeRecorder(), classifier)
			s, _ := svc.sessions.GetOrCreate("s1")
			s.State = st
			s.VehicleBrand = "Toyota"

			res, err := svc.Turn(context.Background(), TurnRequest{SessionID: "s1", Message: msg})
			require.NoError(t, err, "state %s message %q", st, msg)
			assert.Contains(t, []string{ReplyText, ReplyParts}, res.Reply.Type)
			assert.NotEmpty(t, res.Reply.Text)
			assert.NotNil(t, res.Reply.Suggestions)
			assert.Contains(t, successors[st], res.State, "state %s message %q", st, msg)
		}
	}
}
