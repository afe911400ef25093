package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
	"github.com/acdb/stockroom/internal/store"
)

// StateChange is one status transition written by SetItemState. Nil fields
// are left unchanged on the item. LogNote is recorded on the log entry only;
// when it is nil the entry takes Note instead.
type StateChange struct {
	ItemID    int64
	UserID    string
	Operation string
	Status    model.ItemStatus
	Holder    *string
	Note      *string
	Purpose   *string
	LogNote   *string
}

func ptr(s string) *string { return &s }

// SetItemState writes a status transition without policy checks: it appends
// the log entry, updates the item if it still exists and resynchronizes the
// item's list and category. A vanished item is not an error.
func (l *Ledger) SetItemState(ctx context.Context, change StateChange) error {
	if !change.Status.Valid() || change.Status == model.StatusUnknown {
		return model.Errorf(model.KindInvalidInput, "invalid status %d", change.Status)
	}
	if change.Operation == "" {
		return model.Errorf(model.KindInvalidInput, "operation is required")
	}

	return l.runTx(ctx, "set_state", func(ctx context.Context, tx *db.Tx) error {
		if _, err := lockItem(ctx, tx, change.ItemID); err != nil {
			return err
		}
		_, err := l.setItemState(ctx, tx, change)
		return err
	})
}

// setItemState is the single write path for item transitions.
func (l *Ledger) setItemState(ctx context.Context, tx *db.Tx, change StateChange) (*model.Item, error) {
	entry := &model.LogEntry{
		TimestampMillis: l.nowMillis(),
		UserID:          change.UserID,
		Operation:       change.Operation,
		TargetItemID:    &change.ItemID,
	}
	switch {
	case change.LogNote != nil:
		entry.Note = *change.LogNote
	case change.Note != nil:
		entry.Note = *change.Note
	}
	if _, err := store.AppendLog(ctx, tx, entry); err != nil {
		return nil, err
	}

	item, err := store.GetItem(ctx, tx, change.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	item.Status = change.Status
	if change.Holder != nil {
		item.Holder = *change.Holder
	}
	if change.Note != nil {
		item.Note = *change.Note
	}
	if change.Purpose != nil {
		item.Purpose = *change.Purpose
	}
	if err := store.UpdateItem(ctx, tx, item); err != nil {
		return nil, err
	}
	if err := store.SyncAggregates(ctx, tx, item.ListID); err != nil {
		return nil, err
	}
	return item, nil
}

// lockItem takes the lock of the item's category and returns the item as
// read under that lock, or nil if it does not exist.
func lockItem(ctx context.Context, tx *db.Tx, itemID int64) (*model.Item, error) {
	item, err := store.GetItem(ctx, tx, itemID)
	if err != nil || item == nil {
		return nil, err
	}
	list, err := store.GetList(ctx, tx, item.ListID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, fmt.Errorf("item %d references missing list %d", itemID, item.ListID)
	}
	if err := tx.Lock(ctx, db.ScopeCategory, list.CategoryID); err != nil {
		return nil, err
	}
	return store.GetItem(ctx, tx, itemID)
}

// transition loads the item and member under lock, lets decide validate the
// request and choose a change, and applies it.
func (l *Ledger) transition(ctx context.Context, op string, itemID int64, userID string,
	decide func(ctx context.Context, tx *db.Tx, item *model.Item, member *model.Member) (StateChange, error),
) (*model.Item, error) {
	var result *model.Item
	err := l.runTx(ctx, op, func(ctx context.Context, tx *db.Tx) error {
		item, err := lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return model.Errorf(model.KindNotFound, "item %d not found", itemID)
		}
		member, err := requireMember(ctx, tx, userID)
		if err != nil {
			return err
		}

		change, err := decide(ctx, tx, item, member)
		if err != nil {
			return err
		}
		change.ItemID = itemID
		change.UserID = userID

		result, err = l.setItemState(ctx, tx, change)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyItem records a member's application to borrow an item. The note is
// kept as the application's purpose; the item's own note is left alone.
func (l *Ledger) ApplyItem(ctx context.Context, itemID int64, userID, note string) (*model.Item, error) {
	note = strings.TrimSpace(note)
	item, err := l.transition(ctx, "apply", itemID, userID,
		func(_ context.Context, _ *db.Tx, item *model.Item, _ *model.Member) (StateChange, error) {
			switch {
			case item.Status == model.StatusScrapped:
				return StateChange{}, model.Errorf(model.KindAlreadyScrapped, "item %d has been scrapped", item.ID)
			case item.Status == model.StatusApplying:
				return StateChange{}, model.Errorf(model.KindAlreadyApplying, "item %d already has a pending application", item.ID)
			case !model.CanTransition(item.Status, model.StatusApplying):
				return StateChange{}, model.Errorf(model.KindInvalidTransition, "item %d is %s and cannot be applied for", item.ID, item.Status.Label())
			}
			return StateChange{
				Operation: model.OpApply,
				Status:    model.StatusApplying,
				Purpose:   ptr(note),
				LogNote:   ptr(note),
			}, nil
		})
	if err != nil {
		return nil, err
	}

	l.logger.Info("item applied for", "item_id", itemID, "user_id", userID)
	return item, nil
}

// ReturnItem returns an item to the warehouse. The caller must be the holder
// or an admin. The result is a confirmation for the caller.
func (l *Ledger) ReturnItem(ctx context.Context, itemID int64, userID string) (string, error) {
	var helped bool
	var listName string

	_, err := l.transition(ctx, "return", itemID, userID,
		func(ctx context.Context, tx *db.Tx, item *model.Item, member *model.Member) (StateChange, error) {
			switch item.Status {
			case model.StatusScrapped:
				return StateChange{}, model.Errorf(model.KindAlreadyScrapped, "item %d has been scrapped", item.ID)
			case model.StatusApplying:
				return StateChange{}, model.Errorf(model.KindAlreadyApplying, "item %d has a pending application", item.ID)
			case model.StatusAvailable:
				return StateChange{}, model.Errorf(model.KindNotHeld, "item %d is not lent out", item.ID)
			}

			holds := member.Holds(item.Holder)
			if !holds && !member.IsAdmin {
				return StateChange{}, model.Errorf(model.KindPermissionDenied, "you are not the holder of item %d", item.ID)
			}
			if !model.CanTransition(item.Status, model.StatusAvailable) {
				return StateChange{}, model.Errorf(model.KindInvalidTransition, "item %d is %s and cannot be returned", item.ID, item.Status.Label())
			}
			helped = !holds

			list, err := store.GetList(ctx, tx, item.ListID)
			if err != nil {
				return StateChange{}, err
			}
			if list != nil {
				listName = list.Name
			}

			return StateChange{
				Operation: model.OpReturn,
				Status:    model.StatusAvailable,
				Holder:    ptr(model.HolderWarehouse),
				Purpose:   ptr(""),
			}, nil
		})
	if err != nil {
		return "", err
	}

	l.logger.Info("item returned", "item_id", itemID, "user_id", userID, "on_behalf", helped)
	if helped {
		return fmt.Sprintf("You helped return %s (item %d)", listName, itemID), nil
	}
	return fmt.Sprintf("You returned %s (item %d)", listName, itemID), nil
}

// ApproveApplication lends an item under application to its applicant.
func (l *Ledger) ApproveApplication(ctx context.Context, itemID int64, adminID string) (*model.Item, error) {
	item, err := l.transition(ctx, "approve", itemID, adminID,
		func(ctx context.Context, tx *db.Tx, item *model.Item, member *model.Member) (StateChange, error) {
			if !member.IsAdmin {
				return StateChange{}, model.Errorf(model.KindPermissionDenied, "only admins can approve applications")
			}
			if item.Status != model.StatusApplying {
				return StateChange{}, model.Errorf(model.KindInvalidTransition, "item %d has no pending application", item.ID)
			}

			applicant, err := applicantName(ctx, tx, item.ID)
			if err != nil {
				return StateChange{}, err
			}
			return StateChange{
				Operation: model.OpApprove,
				Status:    model.StatusLent,
				Holder:    ptr(applicant),
				LogNote:   ptr(item.Purpose),
			}, nil
		})
	if err != nil {
		return nil, err
	}

	l.logger.Info("application approved", "item_id", itemID, "holder", item.Holder, "user_id", adminID)
	return item, nil
}

// applicantName resolves the display name of whoever last applied for the
// item, falling back to the user id.
func applicantName(ctx context.Context, q db.Querier, itemID int64) (string, error) {
	entry, err := store.LatestLog(ctx, q, itemID, model.OpApply)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return model.DefaultHolder, nil
	}
	m, err := store.GetMember(ctx, q, entry.UserID)
	if err != nil {
		return "", err
	}
	if m == nil || m.DisplayName == "" {
		return entry.UserID, nil
	}
	return m.DisplayName, nil
}

// RejectApplication puts an item under application back on the shelf.
func (l *Ledger) RejectApplication(ctx context.Context, itemID int64, adminID, reason string) (*model.Item, error) {
	item, err := l.transition(ctx, "reject", itemID, adminID,
		func(_ context.Context, _ *db.Tx, item *model.Item, member *model.Member) (StateChange, error) {
			if !member.IsAdmin {
				return StateChange{}, model.Errorf(model.KindPermissionDenied, "only admins can reject applications")
			}
			if item.Status != model.StatusApplying {
				return StateChange{}, model.Errorf(model.KindInvalidTransition, "item %d has no pending application", item.ID)
			}
			return StateChange{
				Operation: model.OpReject,
				Status:    model.StatusAvailable,
				Purpose:   ptr(""),
				LogNote:   ptr(strings.TrimSpace(reason)),
			}, nil
		})
	if err != nil {
		return nil, err
	}

	l.logger.Info("application rejected", "item_id", itemID, "user_id", adminID)
	return item, nil
}

// LendItem lends an available item directly to holder.
func (l *Ledger) LendItem(ctx context.Context, itemID int64, adminID, holder, note string) (*model.Item, error) {
	holder = strings.TrimSpace(holder)
	if holder == "" {
		return nil, model.Errorf(model.KindInvalidInput, "holder is required")
	}

	item, err := l.transition(ctx, "lend", itemID, adminID,
		func(_ context.Context, _ *db.Tx, item *model.Item, member *model.Member) (StateChange, error) {
			if !member.IsAdmin {
				return StateChange{}, model.Errorf(model.KindPermissionDenied, "only admins can lend items")
			}
			if err := checkFrom(item, model.StatusLent, "lent"); err != nil {
				return StateChange{}, err
			}
			return StateChange{
				Operation: model.OpLend,
				Status:    model.StatusLent,
				Holder:    ptr(holder),
				LogNote:   ptr(strings.TrimSpace(note)),
			}, nil
		})
	if err != nil {
		return nil, err
	}

	l.logger.Info("item lent", "item_id", itemID, "holder", holder, "user_id", adminID)
	return item, nil
}

// RepairItem sends an available item to repair.
func (l *Ledger) RepairItem(ctx context.Context, itemID int64, adminID, note string) (*model.Item, error) {
	item, err := l.transition(ctx, "repair", itemID, adminID,
		func(_ context.Context, _ *db.Tx, item *model.Item, member *model.Member) (StateChange, error) {
			if !member.IsAdmin {
				return StateChange{}, model.Errorf(model.KindPermissionDenied, "only admins can send items to repair")
			}
			if err := checkFrom(item, model.StatusRepairing, "sent to repair"); err != nil {
				return StateChange{}, err
			}
			return StateChange{
				Operation: model.OpRepair,
				Status:    model.StatusRepairing,
				Holder:    ptr(model.HolderRepair),
				LogNote:   ptr(strings.TrimSpace(note)),
			}, nil
		})
	if err != nil {
		return nil, err
	}

	l.logger.Info("item sent to repair", "item_id", itemID, "user_id", adminID)
	return item, nil
}

// ScrapItem retires an available or repairing item for good.
func (l *Ledger) ScrapItem(ctx context.Context, itemID int64, adminID, note string) (*model.Item, error) {
	item, err := l.transition(ctx, "scrap", itemID, adminID,
		func(_ context.Context, _ *db.Tx, item *model.Item, member *model.Member) (StateChange, error) {
			if !member.IsAdmin {
				return StateChange{}, model.Errorf(model.KindPermissionDenied, "only admins can scrap items")
			}
			if err := checkFrom(item, model.StatusScrapped, "scrapped"); err != nil {
				return StateChange{}, err
			}
			return StateChange{
				Operation: model.OpScrap,
				Status:    model.StatusScrapped,
				LogNote:   ptr(strings.TrimSpace(note)),
			}, nil
		})
	if err != nil {
		return nil, err
	}

	l.logger.Info("item scrapped", "item_id", itemID, "user_id", adminID)
	return item, nil
}

// checkFrom reports the state-specific failure for moving item to target.
func checkFrom(item *model.Item, target model.ItemStatus, verb string) error {
	switch {
	case item.Status == model.StatusScrapped:
		return model.Errorf(model.KindAlreadyScrapped, "item %d has been scrapped", item.ID)
	case item.Status == model.StatusApplying:
		return model.Errorf(model.KindAlreadyApplying, "item %d has a pending application", item.ID)
	case !model.CanTransition(item.Status, target):
		return model.Errorf(model.KindInvalidTransition, "item %d is %s and cannot be %s", item.ID, item.Status.Label(), verb)
	}
	return nil
}
