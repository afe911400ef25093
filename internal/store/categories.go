package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
)

const categoryColumns = `id, name, total, list_seq`

func scanCategory(row interface{ Scan(...any) error }) (*model.Category, error) {
	c := &model.Category{}
	if err := row.Scan(&c.ID, &c.Name, &c.Total, &c.ListSeq); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCategory allocates the next category id (max + 1) and inserts the
// category. Callers must hold the category allocation lock.
func CreateCategory(ctx context.Context, q db.Querier, name string) (*model.Category, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM categories`).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("allocating category id: %w", err)
	}

	_, err = q.ExecContext(ctx, `INSERT INTO categories (id, name) VALUES (?, ?)`, id, name)
	if db.IsUniqueViolation(err) {
		return nil, model.WrapError(model.KindIDCollision,
			fmt.Sprintf("category id %d or name %q is already taken", id, name), err)
	}
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}

	return &model.Category{ID: id, Name: name}, nil
}

// GetCategory returns a category by ID.
func GetCategory(ctx context.Context, q db.Querier, id int64) (*model.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// GetCategoryByName returns a category by its unique name.
func GetCategoryByName(ctx context.Context, q db.Querier, name string) (*model.Category, error) {
	c, err := scanCategory(q.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category by name: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by id.
func ListCategories(ctx context.Context, q db.Querier) ([]model.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, *c)
	}
	return categories, rows.Err()
}
