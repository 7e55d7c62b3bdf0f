package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "libris/pkg/domain"
	audit "libris/pkg/platform/audit"
	txcontext "libris/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events land in the outbox table inside the same transaction as the
// ledger mutation they describe; the relay publishes them to Kafka and
// marks them done. Kafka is the source of truth for downstream consumers.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Payload is the JSON structure published to Kafka. Field names are the
// contract with consumers; keep them stable.
type Payload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
	BookID    string `json:"book_id,omitempty"`
	LoanID    string `json:"loan_id,omitempty"`
	Action    string `json:"action"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	// Category always derives from the action; eventCategories is the
	// source of truth.
	category := audit.AuditEvent(event.Action).Category()

	payload := Payload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    event.Action,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
		UserAgent: event.UserAgent,
	}
	if !event.UserID.IsNil() {
		payload.UserID = event.UserID.String()
	}
	if !event.BookID.IsNil() {
		payload.BookID = event.BookID.String()
	}
	if !event.LoanID.IsNil() {
		payload.LoanID = event.LoanID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Book-scoped events aggregate on the book so consumers can replay a
	// single title's history in order.
	aggregateType := "audit"
	aggregateID := eventID.String()
	if !event.BookID.IsNil() {
		aggregateType = "book"
		aggregateID = event.BookID.String()
	}

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByUser reads back published events for a user from the outbox.
// Intended for admin inspection, not as the consumer-facing query path.
func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	query := `
		SELECT payload
		FROM outbox
		WHERE payload ->> 'user_id' = $1
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload: %w", err)
		}
		events = append(events, eventFromPayload(p))
	}
	return events, rows.Err()
}

func eventFromPayload(p Payload) audit.Event {
	e := audit.Event{
		Category:  audit.EventCategory(p.Category),
		Action:    p.Action,
		Decision:  p.Decision,
		Reason:    p.Reason,
		RequestID: p.RequestID,
		ClientIP:  p.ClientIP,
		UserAgent: p.UserAgent,
	}
	if t, err := time.Parse(time.RFC3339Nano, p.Timestamp); err == nil {
		e.Timestamp = t
	}
	if p.UserID != "" {
		if uid, err := id.ParseUserID(p.UserID); err == nil {
			e.UserID = uid
		}
	}
	if p.BookID != "" {
		if bid, err := id.ParseBookID(p.BookID); err == nil {
			e.BookID = bid
		}
	}
	if p.LoanID != "" {
		if lid, err := id.ParseLoanID(p.LoanID); err == nil {
			e.LoanID = lid
		}
	}
	return e
}
