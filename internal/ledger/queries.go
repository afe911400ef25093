package ledger

import (
	"context"

	"github.com/acdb/stockroom/internal/model"
	"github.com/acdb/stockroom/internal/store"
)

// GetCategories returns every category.
func (l *Ledger) GetCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := store.ListCategories(ctx, l.db)
	if err != nil {
		return nil, l.read(ctx, "get_categories", err)
	}
	return categories, nil
}

// GetLists returns the lists of a category.
func (l *Ledger) GetLists(ctx context.Context, categoryID int64) ([]model.List, error) {
	c, err := store.GetCategory(ctx, l.db, categoryID)
	if err != nil {
		return nil, l.read(ctx, "get_lists", err)
	}
	if c == nil {
		return nil, model.Errorf(model.KindNotFound, "category %d not found", categoryID)
	}

	lists, err := store.ListLists(ctx, l.db, categoryID)
	if err != nil {
		return nil, l.read(ctx, "get_lists", err)
	}
	return lists, nil
}

// GetList returns a single list.
func (l *Ledger) GetList(ctx context.Context, listID int64) (*model.List, error) {
	list, err := store.GetList(ctx, l.db, listID)
	if err != nil {
		return nil, l.read(ctx, "get_list", err)
	}
	if list == nil {
		return nil, model.Errorf(model.KindNotFound, "list %d not found", listID)
	}
	return list, nil
}

// GetItems returns the items of a list.
func (l *Ledger) GetItems(ctx context.Context, listID int64) ([]model.Item, error) {
	if _, err := l.GetList(ctx, listID); err != nil {
		return nil, err
	}
	items, err := store.ListItems(ctx, l.db, listID, nil)
	if err != nil {
		return nil, l.read(ctx, "get_items", err)
	}
	return items, nil
}

// GetItemDetail returns an item with its list name and status label.
func (l *Ledger) GetItemDetail(ctx context.Context, itemID int64) (*model.ItemDetail, error) {
	d, err := store.GetItemDetail(ctx, l.db, itemID)
	if err != nil {
		return nil, l.read(ctx, "get_item_detail", err)
	}
	if d == nil {
		return nil, model.Errorf(model.KindNotFound, "item %d not found", itemID)
	}
	return d, nil
}

// GetItemHistory returns an item's audit entries, newest first.
func (l *Ledger) GetItemHistory(ctx context.Context, itemID int64, limit int) ([]model.LogEntry, error) {
	entries, err := store.ListLogs(ctx, l.db, store.LogFilter{ItemID: itemID, Limit: limit})
	if err != nil {
		return nil, l.read(ctx, "get_item_history", err)
	}
	return entries, nil
}

// GetMember returns a member by user id.
func (l *Ledger) GetMember(ctx context.Context, userID string) (*model.Member, error) {
	m, err := store.GetMember(ctx, l.db, userID)
	if err != nil {
		return nil, l.read(ctx, "get_member", err)
	}
	if m == nil {
		return nil, model.Errorf(model.KindNotFound, "member %s not found", userID)
	}
	return m, nil
}
