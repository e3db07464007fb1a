// Package relaystore persists the authoritative event log a relay
// sequences for a document, plus periodic content snapshots so a
// reconnecting client doesn't have to replay the log from seq 0.
//
// This is infrastructure for the reference relay (cmd/wikicollab-relay),
// not the session core: internal/ot and internal/session never import
// it. The core only ever sees events after a relay has sequenced them.
package relaystore

import (
	"context"
	"errors"
	"time"
)

// Common errors, matching the sentinel-error convention the OT core
// itself uses (internal/ot.ErrOutsideDocument and friends).
var (
	ErrDocumentNotFound = errors.New("relaystore: document not found")
	ErrDocumentExists   = errors.New("relaystore: document already exists")
	ErrSnapshotNotFound = errors.New("relaystore: snapshot not found")
)

// LoggedEvent is one sequenced entry in a document's event log: the
// wire-encoded ot.Event (already JSON via ot.MarshalEvent) tagged with
// the seq the relay assigned it and the client_seq of the ClientEdit
// that produced it, if any.
type LoggedEvent struct {
	Seq       uint64
	ClientSeq uint64
	EventJSON []byte
}

// Snapshot is a point-in-time capture of a document's content, used to
// bound how much of the log a store needs to keep around.
type Snapshot struct {
	Seq       uint64
	Content   string
	CreatedAt time.Time
}

// Store persists one relay's worth of documents: their event logs and
// periodic snapshots. Implementations back it with memory, Redis, or
// Postgres depending on how durable and how shared the deployment
// needs to be.
type Store interface {
	// CreateDocument registers a new, empty document. Returns
	// ErrDocumentExists if docID is already registered.
	CreateDocument(ctx context.Context, docID string) error

	// AppendEvent appends a sequenced event to docID's log. Returns
	// ErrDocumentNotFound if docID was never created.
	AppendEvent(ctx context.Context, docID string, event LoggedEvent) error

	// EventsSince returns every logged event with Seq > sinceSeq, in
	// seq order. Returns ErrDocumentNotFound if docID was never
	// created.
	EventsSince(ctx context.Context, docID string, sinceSeq uint64) ([]LoggedEvent, error)

	// LatestSeq returns the highest seq still held in docID's log, or
	// 0 if the log is empty. Events pruned by SaveSnapshot are not
	// counted, so after a snapshot that covers every logged event it
	// returns 0. Returns ErrDocumentNotFound if docID was never
	// created.
	LatestSeq(ctx context.Context, docID string) (uint64, error)

	// SaveSnapshot records content as of seq, superseding any
	// earlier snapshot. Returns ErrDocumentNotFound if docID was
	// never created.
	SaveSnapshot(ctx context.Context, docID string, seq uint64, content string) error

	// LoadSnapshot returns the latest snapshot for docID. Returns
	// ErrSnapshotNotFound if docID exists but has never been
	// snapshotted, or ErrDocumentNotFound if it doesn't exist.
	LoadSnapshot(ctx context.Context, docID string) (Snapshot, error)
}
