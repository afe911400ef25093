package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
)

// AppendLog inserts an audit entry and returns its id.
func AppendLog(ctx context.Context, q db.Querier, entry *model.LogEntry) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`INSERT INTO logs (timestamp_millis, user_id, operation, target_item_id, note)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		entry.TimestampMillis, entry.UserID, entry.Operation, entry.TargetItemID, nullString(entry.Note),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("appending log entry: %w", err)
	}
	entry.ID = id
	return id, nil
}

// LogFilter narrows ListLogs. Zero values are ignored.
type LogFilter struct {
	ItemID    int64
	UserID    string
	Operation string
	Limit     int
}

// ListLogs returns log entries newest first.
func ListLogs(ctx context.Context, q db.Querier, f LogFilter) ([]model.LogEntry, error) {
	query := `SELECT id, timestamp_millis, user_id, operation, target_item_id, note FROM logs`
	var where []string
	var args []any

	if f.ItemID != 0 {
		where = append(where, "target_item_id = ?")
		args = append(args, f.ItemID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.Operation != "" {
		where = append(where, "operation = ?")
		args = append(args, f.Operation)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing logs: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var target sql.NullInt64
		var note sql.NullString
		if err := rows.Scan(&e.ID, &e.TimestampMillis, &e.UserID, &e.Operation, &target, &note); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		if target.Valid {
			e.TargetItemID = &target.Int64
		}
		e.Note = note.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LatestLog returns the most recent entry for an item and operation.
func LatestLog(ctx context.Context, q db.Querier, itemID int64, operation string) (*model.LogEntry, error) {
	entries, err := ListLogs(ctx, q, LogFilter{ItemID: itemID, Operation: operation, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}
