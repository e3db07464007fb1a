package relaystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore backs Store with durable tables, for the long-term
// persistence concern the teacher's storage.Store interface was
// shaped for (AppendOperation/LoadOperations/SaveSnapshot) but never
// implemented against a real database in serroba-online-docs.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected *pgxpool.Pool. Callers
// are expected to have run the schema in Schema() against the target
// database beforehand.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema returns the DDL PostgresStore expects. cmd/wikicollab-relay
// runs this once at startup against DATABASE_URL.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS documents (
	doc_id TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS document_events (
	doc_id     TEXT NOT NULL REFERENCES documents(doc_id),
	seq        BIGINT NOT NULL,
	client_seq BIGINT NOT NULL,
	event_json JSONB NOT NULL,
	PRIMARY KEY (doc_id, seq)
);

CREATE TABLE IF NOT EXISTS document_snapshots (
	doc_id     TEXT PRIMARY KEY REFERENCES documents(doc_id),
	seq        BIGINT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`
}

func (p *PostgresStore) CreateDocument(ctx context.Context, docID string) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO documents (doc_id) VALUES ($1)`, docID)
	if isUniqueViolation(err) {
		return ErrDocumentExists
	}

	if err != nil {
		return fmt.Errorf("relaystore: insert document: %w", err)
	}

	return nil
}

func (p *PostgresStore) documentExists(ctx context.Context, docID string) (bool, error) {
	var exists bool

	err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE doc_id = $1)`, docID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("relaystore: check document exists: %w", err)
	}

	return exists, nil
}

func (p *PostgresStore) AppendEvent(ctx context.Context, docID string, event LoggedEvent) error {
	exists, err := p.documentExists(ctx, docID)
	if err != nil {
		return err
	}

	if !exists {
		return ErrDocumentNotFound
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO document_events (doc_id, seq, client_seq, event_json) VALUES ($1, $2, $3, $4)`,
		docID, event.Seq, event.ClientSeq, event.EventJSON)
	if err != nil {
		return fmt.Errorf("relaystore: insert event: %w", err)
	}

	return nil
}

func (p *PostgresStore) EventsSince(ctx context.Context, docID string, sinceSeq uint64) ([]LoggedEvent, error) {
	exists, err := p.documentExists(ctx, docID)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, ErrDocumentNotFound
	}

	rows, err := p.pool.Query(ctx,
		`SELECT seq, client_seq, event_json FROM document_events WHERE doc_id = $1 AND seq > $2 ORDER BY seq`,
		docID, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("relaystore: select events: %w", err)
	}
	defer rows.Close()

	var result []LoggedEvent

	for rows.Next() {
		var e LoggedEvent

		if err := rows.Scan(&e.Seq, &e.ClientSeq, &e.EventJSON); err != nil {
			return nil, fmt.Errorf("relaystore: scan event: %w", err)
		}

		result = append(result, e)
	}

	return result, rows.Err()
}

func (p *PostgresStore) LatestSeq(ctx context.Context, docID string) (uint64, error) {
	exists, err := p.documentExists(ctx, docID)
	if err != nil {
		return 0, err
	}

	if !exists {
		return 0, ErrDocumentNotFound
	}

	var seq *uint64

	err = p.pool.QueryRow(ctx,
		`SELECT MAX(seq) FROM document_events WHERE doc_id = $1`, docID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("relaystore: select latest seq: %w", err)
	}

	if seq == nil {
		return 0, nil
	}

	return *seq, nil
}

func (p *PostgresStore) SaveSnapshot(ctx context.Context, docID string, seq uint64, content string) error {
	exists, err := p.documentExists(ctx, docID)
	if err != nil {
		return err
	}

	if !exists {
		return ErrDocumentNotFound
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("relaystore: begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO document_snapshots (doc_id, seq, content, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doc_id) DO UPDATE SET seq = $2, content = $3, created_at = $4
	`, docID, seq, content, time.Now())
	if err != nil {
		return fmt.Errorf("relaystore: upsert snapshot: %w", err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM document_events WHERE doc_id = $1 AND seq <= $2`, docID, seq)
	if err != nil {
		return fmt.Errorf("relaystore: prune events: %w", err)
	}

	return tx.Commit(ctx)
}

func (p *PostgresStore) LoadSnapshot(ctx context.Context, docID string) (Snapshot, error) {
	exists, err := p.documentExists(ctx, docID)
	if err != nil {
		return Snapshot{}, err
	}

	if !exists {
		return Snapshot{}, ErrDocumentNotFound
	}

	var s Snapshot

	err = p.pool.QueryRow(ctx,
		`SELECT seq, content, created_at FROM document_snapshots WHERE doc_id = $1`, docID,
	).Scan(&s.Seq, &s.Content, &s.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, ErrSnapshotNotFound
	}

	if err != nil {
		return Snapshot{}, fmt.Errorf("relaystore: select snapshot: %w", err)
	}

	return s, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && pgErrCode(err) == "23505"
}

// pgErrCode extracts a Postgres SQLSTATE code from err, returning ""
// if err isn't a *pgconn.PgError. Kept as a narrow helper so callers
// never need to import pgconn directly for this one check.
func pgErrCode(err error) string {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState()
	}

	return ""
}

var _ Store = (*PostgresStore)(nil)
