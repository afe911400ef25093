package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
)

// SyncAggregates recomputes the list's total, free and broken counts from its
// item rows, then the parent category's total from its lists. It must run in
// the same transaction as the item writes that triggered it.
func SyncAggregates(ctx context.Context, q db.Querier, listID int64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE item_lists SET
		     total  = (SELECT COUNT(*) FROM items WHERE list_id = ?),
		     free   = (SELECT COUNT(*) FROM items WHERE list_id = ? AND status = ?),
		     broken = (SELECT COUNT(*) FROM items WHERE list_id = ? AND status = ?)
		 WHERE id = ?`,
		listID, listID, model.StatusAvailable, listID, model.StatusScrapped, listID,
	)
	if err != nil {
		return fmt.Errorf("syncing list counts: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	var categoryID int64
	err = q.QueryRowContext(ctx, `SELECT category_id FROM item_lists WHERE id = ?`, listID).Scan(&categoryID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding list category: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE categories SET
		     total = (SELECT COALESCE(SUM(total), 0) FROM item_lists WHERE category_id = ?)
		 WHERE id = ?`,
		categoryID, categoryID,
	)
	if err != nil {
		return fmt.Errorf("syncing category total: %w", err)
	}
	return nil
}
