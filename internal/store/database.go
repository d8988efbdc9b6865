package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"imobot-backend/internal/db"
	"imobot-backend/internal/domain"
)

// Result limits of the inventory searches.
const (
	NameSearchLimit    = 10
	VehicleSearchLimit = 20
)

// DatabaseStore is the inventory gateway: product lookups plus the chat
// audit tables.
type DatabaseStore struct {
	db *db.DB
}

// NewDatabaseStore creates a new database store
func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database}
}

// The products table belongs to the ERP and its columns may be NULL.
const productColumns = `
	COALESCE(internal_reference, '') AS internal_reference,
	COALESCE(product_name, '') AS product_name,
	COALESCE(quantity_on_hand, 0) AS quantity_on_hand,
	COALESCE(sales_price, 0) AS sales_price`

// SearchBySerial returns the product whose reference equals serial ignoring
// case, or nil when there is none.
func (ds *DatabaseStore) SearchBySerial(ctx context.Context, serial string) (*domain.Product, error) {
	query := ds.db.Rebind(`
		SELECT ` + productColumns + `
		FROM products
		WHERE LOWER(internal_reference) = LOWER(?)
		ORDER BY CASE WHEN internal_reference = ? THEN 0 ELSE 1 END
		LIMIT 1
	`)
	var p domain.Product
	err := ds.db.GetContext(ctx, &p, query, serial, serial)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search by serial: %w", err)
	}
	return &p, nil
}

// SearchPartsByName returns products whose name contains query, exact name
// matches first, then by name.
func (ds *DatabaseStore) SearchPartsByName(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = NameSearchLimit
	}
	q := ds.db.Rebind(`
		SELECT ` + productColumns + `
		FROM products
		WHERE LOWER(product_name) LIKE LOWER(?) ESCAPE '\'
		ORDER BY
			CASE
				WHEN LOWER(product_name) = LOWER(?) THEN 0
				ELSE 1
			END,
			product_name
		LIMIT ?
	`)
	out := []domain.Product{}
	if err := ds.db.SelectContext(ctx, &out, q, containsPattern(query), query, limit); err != nil {
		return nil, fmt.Errorf("search parts by name: %w", err)
	}
	return out, nil
}

// SearchPartsForVehicle returns products whose name contains the combined
// "brand model part" terms. Rows matching the part rank first, then rows
// matching the brand, then by name.
func (ds *DatabaseStore) SearchPartsForVehicle(ctx context.Context, vehicle domain.VehicleInfo, partName string) ([]domain.Product, error) {
	terms := make([]string, 0, 3)
	for _, t := range []string{vehicle.Brand, vehicle.Model, partName} {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	partPattern, brandPattern := "%", "%"
	if partName != "" {
		partPattern = containsPattern(partName)
	}
	if vehicle.Brand != "" {
		brandPattern = containsPattern(vehicle.Brand)
	}

	q := ds.db.Rebind(`
		SELECT ` + productColumns + `
		FROM products
		WHERE LOWER(product_name) LIKE LOWER(?) ESCAPE '\'
		ORDER BY
			CASE
				WHEN LOWER(product_name) LIKE LOWER(?) ESCAPE '\' THEN 0
				WHEN LOWER(product_name) LIKE LOWER(?) ESCAPE '\' THEN 1
				ELSE 2
			END,
			product_name
		LIMIT ?
	`)
	out := []domain.Product{}
	err := ds.db.SelectContext(ctx, &out, q,
		containsPattern(strings.Join(terms, " ")), partPattern, brandPattern, VehicleSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search parts for vehicle: %w", err)
	}
	return out, nil
}

// SaveChatSession creates or updates the session row.
func (ds *DatabaseStore) SaveChatSession(ctx context.Context, sessionID, userIP, userAgent string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	query := ds.db.Rebind(`
		INSERT INTO chat_sessions (session_id, user_ip, user_agent, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (session_id)
		DO UPDATE SET
			user_ip = EXCLUDED.user_ip,
			user_agent = EXCLUDED.user_agent,
			updated_at = CURRENT_TIMESTAMP
	`)
	if _, err := ds.db.ExecContext(ctx, query, sessionID, userIP, userAgent); err != nil {
		return fmt.Errorf("failed to save chat session: %w", err)
	}
	return nil
}

// SaveMessage appends a turn to the chat log. metadata may be nil.
func (ds *DatabaseStore) SaveMessage(ctx context.Context, sessionID, role, message string, metadata map[string]any) error {
	var meta any
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode message metadata: %w", err)
		}
		meta = string(b)
	}
	query := ds.db.Rebind(`
		INSERT INTO chat_messages (session_id, role, message, metadata, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`)
	if _, err := ds.db.ExecContext(ctx, query, sessionID, role, message, meta, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// SaveContactRequest appends a contact request.
func (ds *DatabaseStore) SaveContactRequest(ctx context.Context, req domain.ContactRequest) error {
	vehicle, err := json.Marshal(req.Vehicle)
	if err != nil {
		return fmt.Errorf("encode vehicle info: %w", err)
	}
	query := ds.db.Rebind(`
		INSERT INTO contact_requests
			(session_id, customer_name, phone, email, requested_part, vehicle_info)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err = ds.db.ExecContext(ctx, query,
		req.SessionID, req.CustomerName, req.Phone, req.Email, req.RequestedPart, string(vehicle))
	if err != nil {
		return fmt.Errorf("failed to save contact request: %w", err)
	}
	return nil
}

type messageRow struct {
	SessionID string         `db:"session_id"`
	Role      string         `db:"role"`
	Message   string         `db:"message"`
	Metadata  sql.NullString `db:"metadata"`
	Timestamp time.Time      `db:"timestamp"`
}

// GetChatHistory returns the most recent limit messages of a session in
// chronological order.
func (ds *DatabaseStore) GetChatHistory(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 10
	}
	query := ds.db.Rebind(`
		SELECT session_id, role, message, metadata, timestamp
		FROM chat_messages
		WHERE session_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`)
	var rows []messageRow
	if err := ds.db.SelectContext(ctx, &rows, query, sessionID, limit); err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	out := make([]domain.ChatMessage, len(rows))
	for i, r := range rows {
		m := domain.ChatMessage{SessionID: r.SessionID, Role: r.Role, Message: r.Message, Timestamp: r.Timestamp}
		if r.Metadata.Valid && r.Metadata.String != "" {
			m.Metadata = json.RawMessage(r.Metadata.String)
		}
		out[len(rows)-1-i] = m
	}
	return out, nil
}

// Ping verifies database connectivity.
func (ds *DatabaseStore) Ping(ctx context.Context) error {
	return ds.db.HealthCheck(ctx)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
