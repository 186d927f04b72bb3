// Package journal keeps an append-only SQLite audit log of handled messages.
// It records traffic only; the state store is never rebuilt from it.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mattjoyce/aoproc/internal/log"
	"github.com/mattjoyce/aoproc/internal/process"
)

const (
	// maxDataBytes caps the stored response data (List replies can be large).
	maxDataBytes = 4 * 1024

	// DefaultRecentLimit is used when Recent is called with limit <= 0.
	DefaultRecentLimit = 50

	observeTimeout = 5 * time.Second

	// timeLayout is fixed-width so created_at sorts lexically in time order.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the journal database at path, creating it if needed.
// ":memory:" gives a private in-memory journal.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db, logger: log.WithComponent("journal")}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores rec. Missing ID or timestamp are filled in.
func (j *Journal) Append(ctx context.Context, rec process.Record) error {
	if rec.Kind == "" {
		return fmt.Errorf("record kind is empty")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}

	var messageID, action any
	if rec.MessageID != "" {
		messageID = rec.MessageID
	}
	if rec.Action != "" {
		action = rec.Action
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO message_log(id, kind, message_id, sender, action, response_action, response_data, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.Kind, messageID, rec.From, action, rec.ResponseAction, truncate(rec.ResponseData), rec.At.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("append journal record: %w", err)
	}
	return nil
}

// Observe appends rec, logging rather than returning failures.
func (j *Journal) Observe(rec process.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
	defer cancel()
	if err := j.Append(ctx, rec); err != nil {
		j.logger.Error("failed to journal record", "error", err, "kind", rec.Kind)
	}
}

var _ process.Observer = (*Journal)(nil)

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]process.Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, kind, message_id, sender, action, response_action, response_data, created_at
FROM message_log
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	out := make([]process.Record, 0, limit)
	for rows.Next() {
		var (
			rec        process.Record
			messageID  sql.NullString
			action     sql.NullString
			createdAtS string
		)
		if err := rows.Scan(&rec.ID, &rec.Kind, &messageID, &rec.From, &action, &rec.ResponseAction, &rec.ResponseData, &createdAtS); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		rec.MessageID = messageID.String
		rec.Action = action.String
		if t, err := time.Parse(timeLayout, createdAtS); err == nil {
			rec.At = t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return out, nil
}

// Count returns the number of stored records.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM message_log;").Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

// Prune deletes records older than retention and returns how many went.
func (j *Journal) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().Add(-retention).Format(timeLayout)
	res, err := j.db.ExecContext(ctx, "DELETE FROM message_log WHERE created_at < ?;", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return n, nil
}

// RunPruner prunes on every tick until ctx is done.
func (j *Journal) RunPruner(ctx context.Context, retention, every time.Duration) {
	if retention <= 0 || every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.Prune(ctx, retention)
			if err != nil {
				j.logger.Warn("journal prune failed", "error", err)
				continue
			}
			if n > 0 {
				j.logger.Info("journal pruned", "removed", n)
			}
		}
	}
}

// truncate cuts s to at most maxDataBytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxDataBytes {
		return s
	}
	n := maxDataBytes
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
