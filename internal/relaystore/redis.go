package relaystore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs Store with Redis lists (the event log, one
// RPUSH-ed entry per append) and hashes (the snapshot), the way
// sumanthd032-CollabText's main.go reaches for redis.Client to fan
// messages out across relay processes rather than keeping everything
// in one process's memory.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-connected *redis.Client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func logKey(docID string) string      { return "wikicollab:doc:" + docID + ":log" }
func snapshotKey(docID string) string { return "wikicollab:doc:" + docID + ":snapshot" }
func existsKey(docID string) string   { return "wikicollab:doc:" + docID + ":exists" }

func (r *RedisStore) CreateDocument(ctx context.Context, docID string) error {
	set, err := r.client.SetNX(ctx, existsKey(docID), "1", 0).Result()
	if err != nil {
		return fmt.Errorf("relaystore: redis SETNX: %w", err)
	}

	if !set {
		return ErrDocumentExists
	}

	return nil
}

func (r *RedisStore) exists(ctx context.Context, docID string) (bool, error) {
	n, err := r.client.Exists(ctx, existsKey(docID)).Result()
	if err != nil {
		return false, fmt.Errorf("relaystore: redis EXISTS: %w", err)
	}

	return n > 0, nil
}

func (r *RedisStore) AppendEvent(ctx context.Context, docID string, event LoggedEvent) error {
	ok, err := r.exists(ctx, docID)
	if err != nil {
		return err
	}

	if !ok {
		return ErrDocumentNotFound
	}

	entry := fmt.Sprintf("%d\t%d\t%s", event.Seq, event.ClientSeq, event.EventJSON)

	if err := r.client.RPush(ctx, logKey(docID), entry).Err(); err != nil {
		return fmt.Errorf("relaystore: redis RPUSH: %w", err)
	}

	return nil
}

func (r *RedisStore) EventsSince(ctx context.Context, docID string, sinceSeq uint64) ([]LoggedEvent, error) {
	ok, err := r.exists(ctx, docID)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrDocumentNotFound
	}

	raw, err := r.client.LRange(ctx, logKey(docID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("relaystore: redis LRANGE: %w", err)
	}

	var result []LoggedEvent

	for _, line := range raw {
		event, err := decodeLogEntry(line)
		if err != nil {
			return nil, err
		}

		if event.Seq > sinceSeq {
			result = append(result, event)
		}
	}

	return result, nil
}

func (r *RedisStore) LatestSeq(ctx context.Context, docID string) (uint64, error) {
	ok, err := r.exists(ctx, docID)
	if err != nil {
		return 0, err
	}

	if !ok {
		return 0, ErrDocumentNotFound
	}

	last, err := r.client.LIndex(ctx, logKey(docID), -1).Result()
	if err == redis.Nil {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("relaystore: redis LINDEX: %w", err)
	}

	event, err := decodeLogEntry(last)
	if err != nil {
		return 0, err
	}

	return event.Seq, nil
}

func (r *RedisStore) SaveSnapshot(ctx context.Context, docID string, seq uint64, content string) error {
	ok, err := r.exists(ctx, docID)
	if err != nil {
		return err
	}

	if !ok {
		return ErrDocumentNotFound
	}

	fields := map[string]any{
		"seq":        seq,
		"content":    content,
		"created_at": time.Now().Format(time.RFC3339Nano),
	}

	if err := r.client.HSet(ctx, snapshotKey(docID), fields).Err(); err != nil {
		return fmt.Errorf("relaystore: redis HSET: %w", err)
	}

	return r.pruneLog(ctx, docID, seq)
}

// pruneLog drops logged events now covered by a snapshot at seq. Redis
// lists have no conditional trim, so this reads the whole list back, keeps
// what's still needed, and rewrites it -- acceptable for a log that's
// already bounded by how often snapshots run.
func (r *RedisStore) pruneLog(ctx context.Context, docID string, seq uint64) error {
	raw, err := r.client.LRange(ctx, logKey(docID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("relaystore: redis LRANGE: %w", err)
	}

	var kept []string

	for _, line := range raw {
		event, err := decodeLogEntry(line)
		if err != nil {
			return err
		}

		if event.Seq > seq {
			kept = append(kept, line)
		}
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, logKey(docID))

	if len(kept) > 0 {
		args := make([]any, len(kept))
		for i, k := range kept {
			args[i] = k
		}

		pipe.RPush(ctx, logKey(docID), args...)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("relaystore: redis prune pipeline: %w", err)
	}

	return nil
}

func (r *RedisStore) LoadSnapshot(ctx context.Context, docID string) (Snapshot, error) {
	ok, err := r.exists(ctx, docID)
	if err != nil {
		return Snapshot{}, err
	}

	if !ok {
		return Snapshot{}, ErrDocumentNotFound
	}

	values, err := r.client.HGetAll(ctx, snapshotKey(docID)).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("relaystore: redis HGETALL: %w", err)
	}

	if len(values) == 0 {
		return Snapshot{}, ErrSnapshotNotFound
	}

	seq, err := strconv.ParseUint(values["seq"], 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("relaystore: decode snapshot seq: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, values["created_at"])
	if err != nil {
		return Snapshot{}, fmt.Errorf("relaystore: decode snapshot created_at: %w", err)
	}

	return Snapshot{Seq: seq, Content: values["content"], CreatedAt: createdAt}, nil
}

func decodeLogEntry(line string) (LoggedEvent, error) {
	var seq, clientSeq uint64

	var rest string

	n, err := fmt.Sscanf(line, "%d\t%d\t", &seq, &clientSeq)
	if err != nil || n != 2 {
		return LoggedEvent{}, fmt.Errorf("relaystore: malformed log entry %q: %w", line, err)
	}

	idx := indexOfThirdField(line)
	rest = line[idx:]

	return LoggedEvent{Seq: seq, ClientSeq: clientSeq, EventJSON: []byte(rest)}, nil
}

func indexOfThirdField(line string) int {
	tabs := 0

	for i, c := range line {
		if c == '\t' {
			tabs++

			if tabs == 2 {
				return i + 1
			}
		}
	}

	return len(line)
}

var _ Store = (*RedisStore)(nil)
