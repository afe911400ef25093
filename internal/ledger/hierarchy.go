package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
	"github.com/acdb/stockroom/internal/store"
)

// AddCategory creates a category. If one with the same name exists, it is
// returned unchanged.
func (l *Ledger) AddCategory(ctx context.Context, actorID, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Errorf(model.KindInvalidInput, "category name is required")
	}

	var result *model.Category
	err := l.runTx(ctx, "add_category", func(ctx context.Context, tx *db.Tx) error {
		if _, err := requireAdmin(ctx, tx, actorID); err != nil {
			return err
		}
		if err := tx.Lock(ctx, db.ScopeCategories, 0); err != nil {
			return err
		}

		existing, err := store.GetCategoryByName(ctx, tx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		c, err := store.CreateCategory(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err := store.AppendLog(ctx, tx, &model.LogEntry{
			TimestampMillis: l.nowMillis(),
			UserID:          actorID,
			Operation:       model.OpAddCategory,
			Note:            fmt.Sprintf("%d %s", c.ID, c.Name),
		}); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("category added", "category_id", result.ID, "name", result.Name, "user_id", actorID)
	return result, nil
}

// AddList creates a list under a category. List names are unique across the
// inventory; an existing list with the same name is returned unchanged.
func (l *Ledger) AddList(ctx context.Context, actorID, name string, categoryID int64) (*model.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.Errorf(model.KindInvalidInput, "list name is required")
	}
	if categoryID <= 0 {
		return nil, model.Errorf(model.KindInvalidInput, "invalid category id %d", categoryID)
	}

	var result *model.List
	err := l.runTx(ctx, "add_list", func(ctx context.Context, tx *db.Tx) error {
		if _, err := requireAdmin(ctx, tx, actorID); err != nil {
			return err
		}
		if err := tx.Lock(ctx, db.ScopeListNames, 0); err != nil {
			return err
		}
		if err := tx.Lock(ctx, db.ScopeCategory, categoryID); err != nil {
			return err
		}

		existing, err := store.GetListByName(ctx, tx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		list, err := store.CreateList(ctx, tx, categoryID, name)
		if err != nil {
			return err
		}
		if _, err := store.AppendLog(ctx, tx, &model.LogEntry{
			TimestampMillis: l.nowMillis(),
			UserID:          actorID,
			Operation:       model.OpAddList,
			Note:            fmt.Sprintf("%d %s", list.ID, list.Name),
		}); err != nil {
			return err
		}
		result = list
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("list added", "list_id", result.ID, "category_id", result.CategoryID, "name", result.Name, "user_id", actorID)
	return result, nil
}

// NewItems describes a batch for AddItems.
type NewItems struct {
	ListID      int64
	Count       int
	BrokenCount int
	Holder      string
	Note        string
}

// AddItems creates a batch of items in a list and returns their ids. The
// first BrokenCount items are created SCRAPPED. Aggregates are synchronized
// once for the batch.
func (l *Ledger) AddItems(ctx context.Context, actorID string, batch NewItems) ([]int64, error) {
	if batch.Count < 1 {
		return nil, model.Errorf(model.KindInvalidInput, "count must be at least 1")
	}
	if batch.Count > model.ChildFanout-1 {
		return nil, model.Errorf(model.KindInvalidInput, "count must be at most %d", model.ChildFanout-1)
	}
	if batch.BrokenCount < 0 || batch.BrokenCount > batch.Count {
		return nil, model.Errorf(model.KindInvalidInput, "broken count must be between 0 and %d", batch.Count)
	}
	holder := strings.TrimSpace(batch.Holder)
	if holder == "" {
		holder = model.DefaultHolder
	}
	note := strings.TrimSpace(batch.Note)
	if note == "" {
		note = model.DefaultNote
	}

	var ids []int64
	err := l.runTx(ctx, "add_items", func(ctx context.Context, tx *db.Tx) error {
		if _, err := requireAdmin(ctx, tx, actorID); err != nil {
			return err
		}

		list, err := store.GetList(ctx, tx, batch.ListID)
		if err != nil {
			return err
		}
		if list == nil {
			return model.Errorf(model.KindNotFound, "list %d not found", batch.ListID)
		}
		if err := tx.Lock(ctx, db.ScopeCategory, list.CategoryID); err != nil {
			return err
		}

		ids, err = store.CreateItems(ctx, tx, list.ID, batch.Count, batch.BrokenCount, holder, note)
		if err != nil {
			return err
		}
		if err := store.SyncAggregates(ctx, tx, list.ID); err != nil {
			return err
		}
		_, err = store.AppendLog(ctx, tx, &model.LogEntry{
			TimestampMillis: l.nowMillis(),
			UserID:          actorID,
			Operation:       model.OpAddItem,
			Note:            fmt.Sprintf("%d x%d (%d broken) %d-%d", list.ID, len(ids), batch.BrokenCount, ids[0], ids[len(ids)-1]),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("items added", "list_id", batch.ListID, "count", len(ids), "broken", batch.BrokenCount, "user_id", actorID)
	return ids, nil
}
