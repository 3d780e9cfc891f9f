package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/studydeck/internal/apperror"
	"github.com/sakif/studydeck/internal/repository"
)

var _ repository.Snapshotter = (*DB)(nil)

// SnapshotInfo describes one stored snapshot without its payload.
type SnapshotInfo struct {
	Kind      string
	Scope     int64
	ItemCount int
	SyncedAt  time.Time
}

// SaveSnapshot replaces the snapshot of (kind, scope) with items, which must encode
// as a JSON array.
func (db *DB) SaveSnapshot(ctx context.Context, kind string, scope int64, items any) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s snapshot: %w", kind, err)
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(payload, &elems); err != nil {
		return fmt.Errorf("sqlite: %s snapshot is not a list: %w", kind, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO snapshots (kind, scope, payload, item_count, synced_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(kind, scope) DO UPDATE SET
			payload = excluded.payload,
			item_count = excluded.item_count,
			synced_at = excluded.synced_at`,
		kind, scope, string(payload), len(elems), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving %s snapshot for scope %d: %w", kind, scope, err)
	}
	return nil
}

// LoadSnapshot decodes the snapshot of (kind, scope) into out. It returns
// apperror.ErrNotFound when that collection was never synced.
func (db *DB) LoadSnapshot(ctx context.Context, kind string, scope int64, out any) error {
	var payload string
	err := db.conn.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE kind = ? AND scope = ?`, kind, scope,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound(kind+" snapshot for scope", scope)
		}
		return fmt.Errorf("sqlite: loading %s snapshot for scope %d: %w", kind, scope, err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return apperror.DecodeFailure(kind+" snapshot", err)
	}
	return nil
}

// Snapshots lists every stored snapshot, most recently synced first.
func (db *DB) Snapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT kind, scope, item_count, synced_at FROM snapshots ORDER BY synced_at DESC, kind, scope`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var s SnapshotInfo
		if err := rows.Scan(&s.Kind, &s.Scope, &s.ItemCount, &s.SyncedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snapshot row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snapshots: %w", err)
	}
	return out, nil
}

// DeleteSnapshot forgets (kind, scope). Deleting a missing snapshot is not an error.
func (db *DB) DeleteSnapshot(ctx context.Context, kind string, scope int64) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM snapshots WHERE kind = ? AND scope = ?`, kind, scope)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s snapshot for scope %d: %w", kind, scope, err)
	}
	return nil
}
