package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
)

const listColumns = `id, category_id, name, total, free, broken, item_seq`

func scanList(row interface{ Scan(...any) error }) (*model.List, error) {
	l := &model.List{}
	if err := row.Scan(&l.ID, &l.CategoryID, &l.Name, &l.Total, &l.Free, &l.Broken, &l.ItemSeq); err != nil {
		return nil, err
	}
	return l, nil
}

// CreateList inserts a list under the category, deriving its id from the
// category's insertion counter, and advances the counter. Callers must hold
// the category lock.
func CreateList(ctx context.Context, q db.Querier, categoryID int64, name string) (*model.List, error) {
	var lastSeq int64
	err := q.QueryRowContext(ctx, `SELECT list_seq FROM categories WHERE id = ?`, categoryID).Scan(&lastSeq)
	if err == sql.ErrNoRows {
		return nil, model.Errorf(model.KindNotFound, "category %d not found", categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading list sequence: %w", err)
	}

	id := model.DeriveChildID(categoryID, model.NextSeq(lastSeq))

	_, err = q.ExecContext(ctx,
		`INSERT INTO item_lists (id, category_id, name) VALUES (?, ?, ?)`,
		id, categoryID, name,
	)
	if db.IsUniqueViolation(err) {
		return nil, model.WrapError(model.KindIDCollision,
			fmt.Sprintf("list id %d or name %q is already taken", id, name), err)
	}
	if err != nil {
		return nil, fmt.Errorf("creating list: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE categories SET list_seq = ? WHERE id = ?`, id%model.ChildFanout, categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("advancing list sequence: %w", err)
	}

	return &model.List{ID: id, CategoryID: categoryID, Name: name}, nil
}

// GetList returns a list by ID.
func GetList(ctx context.Context, q db.Querier, id int64) (*model.List, error) {
	l, err := scanList(q.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM item_lists WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting list: %w", err)
	}
	return l, nil
}

// GetListByName returns a list by its unique name.
func GetListByName(ctx context.Context, q db.Querier, name string) (*model.List, error) {
	l, err := scanList(q.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM item_lists WHERE name = ?`, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting list by name: %w", err)
	}
	return l, nil
}

// ListLists returns the lists of a category, or all lists when categoryID
// is zero.
func ListLists(ctx context.Context, q db.Querier, categoryID int64) ([]model.List, error) {
	var rows *sql.Rows
	var err error

	if categoryID != 0 {
		rows, err = q.QueryContext(ctx,
			`SELECT `+listColumns+` FROM item_lists WHERE category_id = ? ORDER BY id`, categoryID,
		)
	} else {
		rows, err = q.QueryContext(ctx, `SELECT `+listColumns+` FROM item_lists ORDER BY id`)
	}
	if err != nil {
		return nil, fmt.Errorf("listing lists: %w", err)
	}
	defer rows.Close()

	var lists []model.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}
