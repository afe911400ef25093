// Package command turns chat messages into ledger operations and renders the
// outcome as a plain-text reply.
package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/acdb/stockroom/internal/ledger"
	"github.com/acdb/stockroom/internal/model"
)

// Inventory is the ledger surface the dispatcher drives.
type Inventory interface {
	AddCategory(ctx context.Context, actorID, name string) (*model.Category, error)
	AddList(ctx context.Context, actorID, name string, categoryID int64) (*model.List, error)
	AddItems(ctx context.Context, actorID string, batch ledger.NewItems) ([]int64, error)
	ApplyItem(ctx context.Context, itemID int64, userID, note string) (*model.Item, error)
	ReturnItem(ctx context.Context, itemID int64, userID string) (string, error)
	ApproveApplication(ctx context.Context, itemID int64, adminID string) (*model.Item, error)
	RejectApplication(ctx context.Context, itemID int64, adminID, reason string) (*model.Item, error)
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetLists(ctx context.Context, categoryID int64) ([]model.List, error)
	GetItemDetail(ctx context.Context, itemID int64) (*model.ItemDetail, error)
	GetItemHistory(ctx context.Context, itemID int64, limit int) ([]model.LogEntry, error)
}

// Dispatcher parses commands and runs them against an Inventory.
type Dispatcher struct {
	Inventory Inventory
}

// HelpText lists the supported commands.
const HelpText = `Commands:
  help                                   show this message
  categories                             list categories
  lists <category id>                    list item types in a category
  search <item id>                       show an item
  history <item id>                      show an item's recent history
  apply <item id> [purpose]              apply to borrow an item
  return <item id>                       return an item
  approve <item id>                      approve an application (admin)
  reject <item id> [reason]              reject an application (admin)
  add category <name>                    add a category (admin)
  add list <category id> <name>          add an item type (admin)
  add item <list id> <count> [broken] [holder] [note]
                                         add items (admin)`

const historyLimit = 10

// Dispatch runs one command for userID. The reply is always suitable to send
// back to the user; err is non-nil when the command failed, with the reply
// carrying its message.
func (d *Dispatcher) Dispatch(ctx context.Context, userID, input string) (string, error) {
	reply, err := d.dispatch(ctx, userID, strings.Fields(input))
	if err != nil {
		return model.Message(err), err
	}
	return reply, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, userID string, args []string) (string, error) {
	if len(args) == 0 {
		return HelpText, nil
	}

	verb := strings.ToLower(args[0])
	rest := args[1:]

	switch verb {
	case "help", "?":
		return HelpText, nil
	case "categories":
		return d.categories(ctx)
	case "lists":
		id, err := parseID(rest, 0, "category")
		if err != nil {
			return "", err
		}
		return d.lists(ctx, id)
	case "search", "info":
		id, err := parseID(rest, 0, "item")
		if err != nil {
			return "", err
		}
		return d.search(ctx, id)
	case "history":
		id, err := parseID(rest, 0, "item")
		if err != nil {
			return "", err
		}
		return d.history(ctx, id)
	case "apply":
		id, err := parseID(rest, 0, "item")
		if err != nil {
			return "", err
		}
		item, err := d.Inventory.ApplyItem(ctx, id, userID, strings.Join(rest[1:], " "))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("You applied for item %d, waiting for approval", item.ID), nil
	case "return":
		id, err := parseID(rest, 0, "item")
		if err != nil {
			return "", err
		}
		return d.Inventory.ReturnItem(ctx, id, userID)
	case "approve":
		id, err := parseID(rest, 0, "item")
		if err != nil {
			return "", err
		}
		item, err := d.Inventory.ApproveApplication(ctx, id, userID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Item %d is now lent to %s", item.ID, item.Holder), nil
	case "reject":
		id, err := parseID(rest, 0, "item")
		if err != nil {
			return "", err
		}
		if _, err := d.Inventory.RejectApplication(ctx, id, userID, strings.Join(rest[1:], " ")); err != nil {
			return "", err
		}
		return fmt.Sprintf("Application for item %d rejected", id), nil
	case "add":
		return d.add(ctx, userID, rest)
	case "delete", "remove":
		if len(rest) == 0 {
			return "", model.Errorf(model.KindInvalidInput, "usage: delete {item|list|category} <id>")
		}
		object, err := parseObject(rest[0])
		if err != nil {
			return "", err
		}
		return "", model.Errorf(model.KindInvalidInput, "deleting a %s is not supported", object)
	}

	return "", model.Errorf(model.KindInvalidInput, "unknown command %q, send help for usage", args[0])
}

func (d *Dispatcher) add(ctx context.Context, userID string, args []string) (string, error) {
	if len(args) == 0 {
		return "", model.Errorf(model.KindInvalidInput, "usage: add {item|list|category} ...")
	}
	object, err := parseObject(args[0])
	if err != nil {
		return "", err
	}
	args = args[1:]

	switch object {
	case "category":
		c, err := d.Inventory.AddCategory(ctx, userID, strings.Join(args, " "))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Category %s has id %d", c.Name, c.ID), nil

	case "list":
		categoryID, err := parseID(args, 0, "category")
		if err != nil {
			return "", err
		}
		l, err := d.Inventory.AddList(ctx, userID, strings.Join(args[1:], " "), categoryID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("List %s has id %d", l.Name, l.ID), nil

	default:
		listID, err := parseID(args, 0, "list")
		if err != nil {
			return "", err
		}
		batch := ledger.NewItems{ListID: listID}
		if batch.Count, err = parseCount(args, 1, "count", true); err != nil {
			return "", err
		}
		if batch.BrokenCount, err = parseCount(args, 2, "broken count", false); err != nil {
			return "", err
		}
		if len(args) > 3 {
			batch.Holder = args[3]
		}
		if len(args) > 4 {
			batch.Note = strings.Join(args[4:], " ")
		}

		ids, err := d.Inventory.AddItems(ctx, userID, batch)
		if err != nil {
			return "", err
		}
		if len(ids) == 1 {
			return fmt.Sprintf("Added item %d", ids[0]), nil
		}
		return fmt.Sprintf("Added %d items, %d to %d", len(ids), ids[0], ids[len(ids)-1]), nil
	}
}

func (d *Dispatcher) categories(ctx context.Context) (string, error) {
	categories, err := d.Inventory.GetCategories(ctx)
	if err != nil {
		return "", err
	}
	if len(categories) == 0 {
		return "No categories yet", nil
	}

	var b strings.Builder
	for i, c := range categories {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d %s (%d items)", c.ID, c.Name, c.Total)
	}
	return b.String(), nil
}

func (d *Dispatcher) lists(ctx context.Context, categoryID int64) (string, error) {
	lists, err := d.Inventory.GetLists(ctx, categoryID)
	if err != nil {
		return "", err
	}
	if len(lists) == 0 {
		return fmt.Sprintf("Category %d has no lists", categoryID), nil
	}

	var b strings.Builder
	for i, l := range lists {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d %s: %d total, %d free, %d broken", l.ID, l.Name, l.Total, l.Free, l.Broken)
	}
	return b.String(), nil
}

func (d *Dispatcher) search(ctx context.Context, itemID int64) (string, error) {
	item, err := d.Inventory.GetItemDetail(ctx, itemID)
	if err != nil {
		return "", err
	}

	s := fmt.Sprintf("%s (item %d)\nstatus: %s\nholder: %s\nnote: %s",
		item.ListName, item.ID, item.StatusLabel, item.Holder, item.Note)
	if item.Purpose != "" {
		s += "\npurpose: " + item.Purpose
	}
	return s, nil
}

func (d *Dispatcher) history(ctx context.Context, itemID int64) (string, error) {
	entries, err := d.Inventory.GetItemHistory(ctx, itemID, historyLimit)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return fmt.Sprintf("No history for item %d", itemID), nil
	}

	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d %s by %s", e.TimestampMillis, e.Operation, e.UserID)
		if e.Note != "" {
			fmt.Fprintf(&b, ": %s", e.Note)
		}
	}
	return b.String(), nil
}

func parseObject(s string) (string, error) {
	switch strings.ToLower(s) {
	case "item", "items":
		return "item", nil
	case "list", "lists":
		return "list", nil
	case "category", "categories":
		return "category", nil
	}
	return "", model.Errorf(model.KindInvalidInput, "unknown object type %q, expected item, list or category", s)
}

func parseID(args []string, i int, what string) (int64, error) {
	if len(args) <= i {
		return 0, model.Errorf(model.KindInvalidInput, "missing %s id", what)
	}
	id, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Errorf(model.KindInvalidInput, "invalid %s id %q", what, args[i])
	}
	return id, nil
}

func parseCount(args []string, i int, what string, required bool) (int, error) {
	if len(args) <= i {
		if required {
			return 0, model.Errorf(model.KindInvalidInput, "missing %s", what)
		}
		return 0, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, model.Errorf(model.KindInvalidInput, "invalid %s %q", what, args[i])
	}
	return n, nil
}
