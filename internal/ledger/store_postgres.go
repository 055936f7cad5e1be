package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "medvault/pkg/domain"
	txcontext "medvault/pkg/platform/tx"
)

// PostgresStore persists the ledger in the ledger_events table. Sequence
// numbers are assigned explicitly (MAX+1) rather than via a serial column so
// rolled-back transactions cannot leave gaps; the engine's single-writer
// guarantee makes the read-then-insert safe.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) (Event, error) {
	exec := s.execer(ctx)

	var last sql.NullInt64
	row := exec.QueryRowContext(ctx, `SELECT MAX(seq) FROM ledger_events`)
	if err := row.Scan(&last); err != nil {
		return Event{}, fmt.Errorf("read last sequence: %w", err)
	}
	event.Seq = uint64(last.Int64) + 1

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	itemIDs, err := marshalItemIDs(event.ItemIDs)
	if err != nil {
		return Event{}, err
	}
	details, err := marshalRequestDetails(event.Request)
	if err != nil {
		return Event{}, err
	}

	query := `
		INSERT INTO ledger_events (
			seq, ts, kind, request_id, grant_id, requester_id,
			item_ids, expires_at, request_details, client
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = exec.ExecContext(ctx, query,
		int64(event.Seq),
		event.Timestamp,
		string(event.Kind),
		nullableUUID(uuid.UUID(event.RequestID)),
		nullableUUID(uuid.UUID(event.GrantID)),
		nullableUUID(uuid.UUID(event.Requester)),
		itemIDs,
		event.ExpiresAt,
		details,
		event.Client,
	)
	if err != nil {
		return Event{}, fmt.Errorf("insert ledger event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) ReadFrom(ctx context.Context, from uint64) (Iterator, error) {
	query := `
		SELECT seq, ts, kind, request_id, grant_id, requester_id,
		       item_ids, expires_at, request_details, client
		FROM ledger_events
		WHERE seq >= $1
		ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, query, int64(from))
	if err != nil {
		return nil, fmt.Errorf("query ledger events: %w", err)
	}
	return &rowsIterator{rows: rows}, nil
}

func (s *PostgresStore) LastSeq(ctx context.Context) (uint64, error) {
	var last sql.NullInt64
	row := s.execer(ctx).QueryRowContext(ctx, `SELECT MAX(seq) FROM ledger_events`)
	if err := row.Scan(&last); err != nil {
		return 0, fmt.Errorf("read last sequence: %w", err)
	}
	return uint64(last.Int64), nil
}

type rowsIterator struct {
	rows    *sql.Rows
	current Event
	err     error
}

func (it *rowsIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		it.err = err
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}

	var (
		event       Event
		seq         int64
		kind        string
		requestID   *uuid.UUID
		grantID     *uuid.UUID
		requesterID *uuid.UUID
		itemIDs     []byte
		details     []byte
	)
	if err := it.rows.Scan(&seq, &event.Timestamp, &kind,
		&requestID, &grantID, &requesterID,
		&itemIDs, &event.ExpiresAt, &details, &event.Client); err != nil {
		it.err = fmt.Errorf("scan ledger event: %w", err)
		return false
	}

	event.Seq = uint64(seq)
	event.Kind = EventKind(kind)
	if requestID != nil {
		event.RequestID = id.RequestID(*requestID)
	}
	if grantID != nil {
		event.GrantID = id.GrantID(*grantID)
	}
	if requesterID != nil {
		event.Requester = id.RequesterID(*requesterID)
	}
	if len(itemIDs) > 0 {
		ids, err := unmarshalItemIDs(itemIDs)
		if err != nil {
			it.err = err
			return false
		}
		event.ItemIDs = ids
	}
	if len(details) > 0 {
		req, err := unmarshalRequestDetails(details)
		if err != nil {
			it.err = err
			return false
		}
		event.Request = req
	}

	it.current = event
	return true
}

func (it *rowsIterator) Event() Event { return it.current }
func (it *rowsIterator) Err() error   { return it.err }
func (it *rowsIterator) Close() error { return it.rows.Close() }

func marshalItemIDs(ids []id.ItemID) ([]byte, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]string, len(ids))
	for i, itemID := range ids {
		out[i] = itemID.String()
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal item ids: %w", err)
	}
	return raw, nil
}

func unmarshalItemIDs(raw []byte) ([]id.ItemID, error) {
	var strs []string
	if err := json.Unmarshal(raw, &strs); err != nil {
		return nil, fmt.Errorf("unmarshal item ids: %w", err)
	}
	out := make([]id.ItemID, len(strs))
	for i, s := range strs {
		u, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("unmarshal item ids: %w", err)
		}
		out[i] = id.ItemID(u)
	}
	return out, nil
}

type requestDetailsRecord struct {
	RequesterName string              `json:"requester_name"`
	RequesterType string              `json:"requester_type"`
	Purpose       string              `json:"purpose"`
	Items         []requestItemRecord `json:"items"`
	Format        string              `json:"format,omitempty"`
	Validity      string              `json:"validity,omitempty"`
	Retention     string              `json:"retention,omitempty"`
}

type requestItemRecord struct {
	ItemID  string `json:"item_id"`
	Enabled bool   `json:"enabled"`
	Access  string `json:"access"`
}

func marshalRequestDetails(d *RequestDetails) ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	rec := requestDetailsRecord{
		RequesterName: d.RequesterName,
		RequesterType: string(d.RequesterType),
		Purpose:       d.Purpose,
		Items:         make([]requestItemRecord, len(d.Items)),
		Format:        d.Format,
		Validity:      d.Validity,
		Retention:     d.Retention,
	}
	for i, item := range d.Items {
		rec.Items[i] = requestItemRecord{
			ItemID:  item.ItemID.String(),
			Enabled: item.Enabled,
			Access:  string(item.Access),
		}
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal request details: %w", err)
	}
	return raw, nil
}

func unmarshalRequestDetails(raw []byte) (*RequestDetails, error) {
	var rec requestDetailsRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal request details: %w", err)
	}
	requesterType, err := id.ParseRequesterType(rec.RequesterType)
	if err != nil {
		return nil, fmt.Errorf("unmarshal request details: %w", err)
	}
	details := &RequestDetails{
		RequesterName: rec.RequesterName,
		RequesterType: requesterType,
		Purpose:       rec.Purpose,
		Items:         make([]RequestedItem, len(rec.Items)),
		Format:        rec.Format,
		Validity:      rec.Validity,
		Retention:     rec.Retention,
	}
	for i, item := range rec.Items {
		u, err := uuid.Parse(item.ItemID)
		if err != nil {
			return nil, fmt.Errorf("unmarshal request details: %w", err)
		}
		access, err := id.ParseAccessType(item.Access)
		if err != nil {
			return nil, fmt.Errorf("unmarshal request details: %w", err)
		}
		details.Items[i] = RequestedItem{
			ItemID:  id.ItemID(u),
			Enabled: item.Enabled,
			Access:  access,
		}
	}
	return details, nil
}

func nullableUUID(u uuid.UUID) *uuid.UUID {
	if u == uuid.Nil {
		return nil
	}
	return &u
}
