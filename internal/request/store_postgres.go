package request

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	id "medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
	txcontext "medvault/pkg/platform/tx"
)

// PostgresStore persists requests in the access_requests table. Requested
// items are stored as a JSONB document since they are only read back as a
// whole.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

type itemDoc struct {
	ItemID  string `json:"item_id"`
	Enabled bool   `json:"enabled"`
	Access  string `json:"access"`
}

func (s *PostgresStore) Create(ctx context.Context, req *DataAccessRequest) error {
	items, err := marshalItems(req.Items)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO access_requests (
			id, requester_id, requester_name, requester_type,
			purpose, items, format, validity, retention,
			created_at, status, decided_at, grant_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		uuid.UUID(req.Requester.ID),
		req.Requester.Name,
		string(req.Requester.Type),
		req.Purpose,
		items,
		req.Format,
		req.Validity,
		req.Retention,
		req.CreatedAt,
		string(req.Status),
		req.DecidedAt,
		grantIDOrNil(req.GrantID),
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, requestID id.RequestID) (*DataAccessRequest, error) {
	query := selectRequest + ` WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID))
	req, err := scanRequest(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

func (s *PostgresStore) Update(ctx context.Context, req *DataAccessRequest) error {
	query := `
		UPDATE access_requests
		SET status = $2, decided_at = $3, grant_id = $4
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		string(req.Status),
		req.DecidedAt,
		grantIDOrNil(req.GrantID),
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*DataAccessRequest, error) {
	query := selectRequest
	var args []any
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		raw, err := json.Marshal(statuses)
		if err != nil {
			return nil, fmt.Errorf("marshal status filter: %w", err)
		}
		query += ` WHERE status IN (SELECT jsonb_array_elements_text($1::jsonb))`
		args = append(args, raw)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var out []*DataAccessRequest
	for rows.Next() {
		req, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return out, nil
}

const selectRequest = `
	SELECT id, requester_id, requester_name, requester_type,
	       purpose, items, format, validity, retention,
	       created_at, status, decided_at, grant_id
	FROM access_requests
`

func scanRequest(scan func(dest ...any) error) (*DataAccessRequest, error) {
	var (
		req           DataAccessRequest
		rawID         uuid.UUID
		requesterID   uuid.UUID
		requesterType string
		items         []byte
		status        string
		grantID       *uuid.UUID
	)
	err := scan(&rawID, &requesterID, &req.Requester.Name, &requesterType,
		&req.Purpose, &items, &req.Format, &req.Validity, &req.Retention,
		&req.CreatedAt, &status, &req.DecidedAt, &grantID)
	if err != nil {
		return nil, err
	}
	req.ID = id.RequestID(rawID)
	req.Requester.ID = id.RequesterID(requesterID)
	req.Requester.Type = id.RequesterType(requesterType)
	req.Status = Status(status)
	if grantID != nil {
		g := id.GrantID(*grantID)
		req.GrantID = &g
	}
	parsed, err := unmarshalItems(items)
	if err != nil {
		return nil, err
	}
	req.Items = parsed
	return &req, nil
}

func marshalItems(items []RequestedItem) ([]byte, error) {
	docs := make([]itemDoc, len(items))
	for i, item := range items {
		docs[i] = itemDoc{
			ItemID:  item.ItemID.String(),
			Enabled: item.Enabled,
			Access:  string(item.Access),
		}
	}
	raw, err := json.Marshal(docs)
	if err != nil {
		return nil, fmt.Errorf("marshal requested items: %w", err)
	}
	return raw, nil
}

func unmarshalItems(raw []byte) ([]RequestedItem, error) {
	var docs []itemDoc
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("unmarshal requested items: %w", err)
	}
	items := make([]RequestedItem, len(docs))
	for i, doc := range docs {
		u, err := uuid.Parse(doc.ItemID)
		if err != nil {
			return nil, fmt.Errorf("unmarshal requested items: %w", err)
		}
		items[i] = RequestedItem{
			ItemID:  id.ItemID(u),
			Enabled: doc.Enabled,
			Access:  id.AccessType(doc.Access),
		}
	}
	return items, nil
}

func grantIDOrNil(g *id.GrantID) *uuid.UUID {
	if g == nil {
		return nil
	}
	u := uuid.UUID(*g)
	return &u
}
