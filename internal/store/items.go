package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
)

const itemColumns = `id, list_id, status, holder, note, purpose`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var holder, note, purpose sql.NullString
	if err := row.Scan(&item.ID, &item.ListID, &item.Status, &holder, &note, &purpose); err != nil {
		return nil, err
	}
	item.Holder = holder.String
	item.Note = note.String
	item.Purpose = purpose.String
	return item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateItems inserts count items into the list with consecutive ids
// starting after the list's insertion counter. The first brokenCount items
// are created SCRAPPED, the rest AVAILABLE. Callers must hold the lock of
// the list's category and synchronize aggregates afterwards.
func CreateItems(ctx context.Context, q db.Querier, listID int64, count, brokenCount int, holder, note string) ([]int64, error) {
	var lastSeq int64
	err := q.QueryRowContext(ctx, `SELECT item_seq FROM item_lists WHERE id = ?`, listID).Scan(&lastSeq)
	if err == sql.ErrNoRows {
		return nil, model.Errorf(model.KindNotFound, "list %d not found", listID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading item sequence: %w", err)
	}

	base := model.NextSeq(lastSeq)
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		id := model.DeriveChildID(listID, base+int64(i))
		status := model.StatusAvailable
		if i < brokenCount {
			status = model.StatusScrapped
		}

		_, err := q.ExecContext(ctx,
			`INSERT INTO items (id, list_id, status, holder, note) VALUES (?, ?, ?, ?, ?)`,
			id, listID, status, nullString(holder), nullString(note),
		)
		if db.IsUniqueViolation(err) {
			return nil, model.WrapError(model.KindIDCollision,
				fmt.Sprintf("item id %d is already taken", id), err)
		}
		if err != nil {
			return nil, fmt.Errorf("creating item %d: %w", id, err)
		}
		ids = append(ids, id)
	}

	if len(ids) > 0 {
		last := ids[len(ids)-1]
		_, err = q.ExecContext(ctx,
			`UPDATE item_lists SET item_seq = ? WHERE id = ?`, last%model.ChildFanout, listID,
		)
		if err != nil {
			return nil, fmt.Errorf("advancing item sequence: %w", err)
		}
	}

	return ids, nil
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, q db.Querier, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns the items of a list, optionally filtered by status.
func ListItems(ctx context.Context, q db.Querier, listID int64, status *model.ItemStatus) ([]model.Item, error) {
	var rows *sql.Rows
	var err error

	if status != nil {
		rows, err = q.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items WHERE list_id = ? AND status = ? ORDER BY id`,
			listID, *status,
		)
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT `+itemColumns+` FROM items WHERE list_id = ? ORDER BY id`, listID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem writes the item's mutable fields.
func UpdateItem(ctx context.Context, q db.Querier, item *model.Item) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET status = ?, holder = ?, note = ?, purpose = ? WHERE id = ?`,
		item.Status, nullString(item.Holder), nullString(item.Note), nullString(item.Purpose), item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// GetItemDetail returns the item joined with its list name. Missing holder
// and note are reported with their default placeholders.
func GetItemDetail(ctx context.Context, q db.Querier, id int64) (*model.ItemDetail, error) {
	d := &model.ItemDetail{}
	var holder, note, purpose sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT i.id, i.list_id, l.name, i.status, i.holder, i.note, i.purpose
		 FROM items i
		 JOIN item_lists l ON l.id = i.list_id
		 WHERE i.id = ?`, id,
	).Scan(&d.ID, &d.ListID, &d.ListName, &d.Status, &holder, &note, &purpose)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item detail: %w", err)
	}

	d.StatusLabel = d.Status.Label()
	d.Holder = holder.String
	if d.Holder == "" {
		d.Holder = model.DefaultHolder
	}
	d.Note = note.String
	if d.Note == "" {
		d.Note = model.DefaultNote
	}
	d.Purpose = purpose.String
	return d, nil
}
