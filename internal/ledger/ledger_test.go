package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
	"github.com/acdb/stockroom/internal/store"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestLedger returns a ledger over a fresh database with three members:
// "admin" (Admin, admin), "ana" (Ana) and "bob" (Bob).
func newTestLedger(t *testing.T) (*Ledger, *db.DB) {
	t.Helper()

	database := db.NewTestDB(t)
	ctx := context.Background()
	for _, m := range []model.Member{
		{UserID: "admin", DisplayName: "Admin", IsAdmin: true},
		{UserID: "ana", DisplayName: "Ana"},
		{UserID: "bob", DisplayName: "Bob"},
	} {
		if err := store.UpsertMember(ctx, database, &m); err != nil {
			t.Fatalf("seeding member %s: %v", m.UserID, err)
		}
	}

	l := New(database, Options{
		MaxRetries:   5,
		RetryBackoff: time.Millisecond,
		Now:          func() time.Time { return fixedNow },
	})
	return l, database
}

// seedMotors creates categories 1-3, list 3001 "Motor" and items
// 3001001 (scrapped), 3001002 and 3001003.
func seedMotors(t *testing.T, l *Ledger) {
	t.Helper()
	ctx := context.Background()

	for _, name := range []string{"Tools", "Cables", "Electronics"} {
		if _, err := l.AddCategory(ctx, "admin", name); err != nil {
			t.Fatalf("AddCategory(%q): %v", name, err)
		}
	}
	if _, err := l.AddList(ctx, "admin", "Motor", 3); err != nil {
		t.Fatalf("AddList: %v", err)
	}
	if _, err := l.AddItems(ctx, "admin", NewItems{ListID: 3001, Count: 3, BrokenCount: 1, Holder: model.HolderWarehouse}); err != nil {
		t.Fatalf("AddItems: %v", err)
	}
}

// checkAggregates verifies every list and category count against a fresh
// count over the item rows.
func checkAggregates(t *testing.T, d *db.DB) {
	t.Helper()
	ctx := context.Background()

	lists, err := store.ListLists(ctx, d, 0)
	if err != nil {
		t.Fatalf("ListLists: %v", err)
	}
	sums := map[int64]int{}
	for _, l := range lists {
		var total, free, broken int
		err := d.QueryRowContext(ctx,
			`SELECT COUNT(*),
			        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
			 FROM items WHERE list_id = ?`,
			model.StatusAvailable, model.StatusScrapped, l.ID,
		).Scan(&total, &free, &broken)
		if err != nil {
			t.Fatalf("counting items: %v", err)
		}
		if l.Total != total || l.Free != free || l.Broken != broken {
			t.Errorf("list %d: stored %d/%d/%d, counted %d/%d/%d",
				l.ID, l.Total, l.Free, l.Broken, total, free, broken)
		}
		sums[l.CategoryID] += l.Total
	}

	categories, err := store.ListCategories(ctx, d)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	for _, c := range categories {
		if c.Total != sums[c.ID] {
			t.Errorf("category %d: stored total %d, sum of lists %d", c.ID, c.Total, sums[c.ID])
		}
	}
}

func countLogs(t *testing.T, d *db.DB, itemID int64) int {
	t.Helper()
	entries, err := store.ListLogs(context.Background(), d, store.LogFilter{ItemID: itemID})
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	return len(entries)
}

func getItem(t *testing.T, d *db.DB, id int64) *model.Item {
	t.Helper()
	item, err := store.GetItem(context.Background(), d, id)
	if err != nil || item == nil {
		t.Fatalf("GetItem(%d) = %v, %v", id, item, err)
	}
	return item
}

func TestAddListDerivesIDs(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	for _, name := range []string{"Tools", "Cables", "Electronics"} {
		l.AddCategory(ctx, "admin", name)
	}

	motor, err := l.AddList(ctx, "admin", "Motor", 3)
	if err != nil {
		t.Fatalf("AddList: %v", err)
	}
	battery, err := l.AddList(ctx, "admin", "Battery", 3)
	if err != nil {
		t.Fatalf("AddList: %v", err)
	}
	if motor.ID != 3001 || battery.ID != 3002 {
		t.Errorf("expected 3001, 3002, got %d, %d", motor.ID, battery.ID)
	}

	again, err := l.AddList(ctx, "admin", "Motor", 3)
	if err != nil {
		t.Fatalf("AddList again: %v", err)
	}
	if again.ID != 3001 {
		t.Errorf("expected existing list 3001, got %d", again.ID)
	}
	lists, _ := l.GetLists(ctx, 3)
	if len(lists) != 2 {
		t.Errorf("expected 2 lists, got %d", len(lists))
	}

	_, err = l.AddList(ctx, "admin", "Orphan", 9)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound for missing category, got %v", err)
	}
}

func TestAddCategoryIdempotent(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	first, err := l.AddCategory(ctx, "admin", "Tools")
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.AddCategory(ctx, "admin", " Tools ")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != 1 || second.ID != 1 {
		t.Errorf("expected id 1 twice, got %d, %d", first.ID, second.ID)
	}

	categories, _ := l.GetCategories(ctx)
	if len(categories) != 1 {
		t.Errorf("expected 1 category, got %d", len(categories))
	}

	if _, err := l.AddCategory(ctx, "admin", "  "); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected InvalidInput for blank name, got %v", err)
	}
}

func TestAddItemsBatch(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	wantStatus := map[int64]model.ItemStatus{
		3001001: model.StatusScrapped,
		3001002: model.StatusAvailable,
		3001003: model.StatusAvailable,
	}
	for id, want := range wantStatus {
		item := getItem(t, d, id)
		if item.Status != want {
			t.Errorf("item %d: expected %v, got %v", id, want, item.Status)
		}
		if item.Holder != model.HolderWarehouse {
			t.Errorf("item %d: expected holder warehouse, got %q", id, item.Holder)
		}
	}

	list, err := l.GetList(ctx, 3001)
	if err != nil {
		t.Fatal(err)
	}
	if list.Total != 3 || list.Free != 2 || list.Broken != 1 {
		t.Errorf("expected 3/2/1, got %d/%d/%d", list.Total, list.Free, list.Broken)
	}
	checkAggregates(t, d)
}

func TestAddItemsDefaultsAndValidation(t *testing.T) {
	l, _ := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	ids, err := l.AddItems(ctx, "admin", NewItems{ListID: 3001, Count: 1})
	if err != nil {
		t.Fatal(err)
	}
	detail, _ := l.GetItemDetail(ctx, ids[0])
	if detail.Holder != model.DefaultHolder || detail.Note != model.DefaultNote {
		t.Errorf("expected default holder and note, got %q/%q", detail.Holder, detail.Note)
	}

	tests := []struct {
		name  string
		batch NewItems
		want  error
	}{
		{"zero count", NewItems{ListID: 3001, Count: 0}, model.ErrInvalidInput},
		{"negative broken", NewItems{ListID: 3001, Count: 2, BrokenCount: -1}, model.ErrInvalidInput},
		{"too many broken", NewItems{ListID: 3001, Count: 2, BrokenCount: 3}, model.ErrInvalidInput},
		{"count above fanout", NewItems{ListID: 3001, Count: model.ChildFanout}, model.ErrInvalidInput},
		{"missing list", NewItems{ListID: 9999, Count: 1}, model.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.AddItems(ctx, "admin", tt.batch); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	list, _ := l.GetList(ctx, 3001)
	if list.Total != 4 {
		t.Errorf("rejected batches changed the list: total %d", list.Total)
	}
}

func TestAdminOnlyOperations(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	if _, err := l.AddCategory(ctx, "ana", "Secret"); !errors.Is(err, model.ErrPermissionDenied) {
		t.Errorf("AddCategory: expected PermissionDenied, got %v", err)
	}
	if _, err := l.AddList(ctx, "ana", "Secret", 3); !errors.Is(err, model.ErrPermissionDenied) {
		t.Errorf("AddList: expected PermissionDenied, got %v", err)
	}
	if _, err := l.AddItems(ctx, "ana", NewItems{ListID: 3001, Count: 1}); !errors.Is(err, model.ErrPermissionDenied) {
		t.Errorf("AddItems: expected PermissionDenied, got %v", err)
	}
	if _, err := l.ScrapItem(ctx, 3001002, "ana", ""); !errors.Is(err, model.ErrPermissionDenied) {
		t.Errorf("ScrapItem: expected PermissionDenied, got %v", err)
	}
	if _, err := l.AddCategory(ctx, "ghost", "Secret"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("AddCategory by unknown member: expected NotFound, got %v", err)
	}

	categories, _ := l.GetCategories(ctx)
	if len(categories) != 3 {
		t.Errorf("expected no new category, got %d", len(categories))
	}
	list, _ := l.GetList(ctx, 3001)
	if list.Total != 3 {
		t.Errorf("expected no new items, got total %d", list.Total)
	}
	if getItem(t, d, 3001002).Status != model.StatusAvailable {
		t.Error("item should not have been scrapped")
	}
}

func TestApplyScrappedItem(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	_, err := l.ApplyItem(ctx, 3001001, "ana", "demo day")
	if !errors.Is(err, model.ErrAlreadyScrapped) {
		t.Fatalf("expected AlreadyScrapped, got %v", err)
	}
	if n := countLogs(t, d, 3001001); n != 0 {
		t.Errorf("expected no log entries, got %d", n)
	}
	list, _ := l.GetList(ctx, 3001)
	if list.Free != 2 || list.Broken != 1 {
		t.Errorf("aggregates changed: %d free, %d broken", list.Free, list.Broken)
	}
}

func TestApplyApproveReturn(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	item, err := l.ApplyItem(ctx, 3001002, "ana", "line follower")
	if err != nil {
		t.Fatalf("ApplyItem: %v", err)
	}
	if item.Status != model.StatusApplying || item.Purpose != "line follower" {
		t.Errorf("unexpected item after apply: %+v", item)
	}
	if item.Holder != model.HolderWarehouse {
		t.Errorf("apply should not change the holder, got %q", item.Holder)
	}
	checkAggregates(t, d)

	if _, err := l.ApplyItem(ctx, 3001002, "bob", ""); !errors.Is(err, model.ErrAlreadyApplying) {
		t.Errorf("second apply: expected AlreadyApplying, got %v", err)
	}

	item, err = l.ApproveApplication(ctx, 3001002, "admin")
	if err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}
	if item.Status != model.StatusLent || item.Holder != "Ana" {
		t.Errorf("expected lent to Ana, got %v/%q", item.Status, item.Holder)
	}

	msg, err := l.ReturnItem(ctx, 3001002, "ana")
	if err != nil {
		t.Fatalf("ReturnItem: %v", err)
	}
	if msg != "You returned Motor (item 3001002)" {
		t.Errorf("unexpected message %q", msg)
	}
	item = getItem(t, d, 3001002)
	if item.Status != model.StatusAvailable || item.Holder != model.HolderWarehouse {
		t.Errorf("expected available in warehouse, got %v/%q", item.Status, item.Holder)
	}
	checkAggregates(t, d)

	// A second return reports that nobody holds the item.
	logsBefore := countLogs(t, d, 3001002)
	if _, err := l.ReturnItem(ctx, 3001002, "ana"); !errors.Is(err, model.ErrNotHeld) {
		t.Errorf("second return: expected NotHeld, got %v", err)
	}
	if n := countLogs(t, d, 3001002); n != logsBefore {
		t.Errorf("second return wrote a log entry")
	}

	history, _ := l.GetItemHistory(ctx, 3001002, 0)
	ops := make([]string, len(history))
	for i, e := range history {
		ops[i] = e.Operation
		if e.TimestampMillis != fixedNow.UnixMilli() {
			t.Errorf("unexpected timestamp %d", e.TimestampMillis)
		}
	}
	want := []string{model.OpReturn, model.OpApprove, model.OpApply}
	if fmt.Sprint(ops) != fmt.Sprint(want) {
		t.Errorf("history = %v, want %v", ops, want)
	}
}

func TestReturnPermissionDenied(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	if _, err := l.LendItem(ctx, 3001002, "admin", "Ana", "workshop"); err != nil {
		t.Fatalf("LendItem: %v", err)
	}
	logsBefore := countLogs(t, d, 3001002)

	_, err := l.ReturnItem(ctx, 3001002, "bob")
	if !errors.Is(err, model.ErrPermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if n := countLogs(t, d, 3001002); n != logsBefore {
		t.Errorf("expected no new log entry, got %d, had %d", n, logsBefore)
	}
	item := getItem(t, d, 3001002)
	if item.Status != model.StatusLent || item.Holder != "Ana" {
		t.Errorf("item changed: %v/%q", item.Status, item.Holder)
	}

	msg, err := l.ReturnItem(ctx, 3001002, "admin")
	if err != nil {
		t.Fatalf("admin ReturnItem: %v", err)
	}
	if msg != "You helped return Motor (item 3001002)" {
		t.Errorf("unexpected message %q", msg)
	}
	checkAggregates(t, d)
}

func TestReturnFailures(t *testing.T) {
	l, _ := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	if _, err := l.ApplyItem(ctx, 3001003, "ana", ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		itemID int64
		userID string
		want   error
	}{
		{"missing item", 3001999, "ana", model.ErrNotFound},
		{"missing member", 3001002, "ghost", model.ErrNotFound},
		{"scrapped", 3001001, "admin", model.ErrAlreadyScrapped},
		{"applying", 3001003, "ana", model.ErrAlreadyApplying},
		{"available", 3001002, "admin", model.ErrNotHeld},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.ReturnItem(ctx, tt.itemID, tt.userID); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRejectApplication(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	if _, err := l.RejectApplication(ctx, 3001002, "admin", ""); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("reject without application: expected InvalidTransition, got %v", err)
	}

	l.ApplyItem(ctx, 3001002, "bob", "robot arm")
	item, err := l.RejectApplication(ctx, 3001002, "admin", "reserved for the contest")
	if err != nil {
		t.Fatalf("RejectApplication: %v", err)
	}
	if item.Status != model.StatusAvailable || item.Purpose != "" {
		t.Errorf("unexpected item after reject: %+v", item)
	}
	checkAggregates(t, d)
}

func TestRepairAndScrap(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	item, err := l.RepairItem(ctx, 3001002, "admin", "bearing noise")
	if err != nil {
		t.Fatalf("RepairItem: %v", err)
	}
	if item.Status != model.StatusRepairing || item.Holder != model.HolderRepair {
		t.Errorf("unexpected item after repair: %+v", item)
	}

	item, err = l.ScrapItem(ctx, 3001002, "admin", "beyond repair")
	if err != nil {
		t.Fatalf("ScrapItem: %v", err)
	}
	if item.Status != model.StatusScrapped {
		t.Errorf("expected scrapped, got %v", item.Status)
	}
	if _, err := l.ScrapItem(ctx, 3001002, "admin", ""); !errors.Is(err, model.ErrAlreadyScrapped) {
		t.Errorf("expected AlreadyScrapped, got %v", err)
	}

	l.LendItem(ctx, 3001003, "admin", "Bob", "")
	if _, err := l.ScrapItem(ctx, 3001003, "admin", ""); !errors.Is(err, model.ErrInvalidTransition) {
		t.Errorf("scrap lent item: expected InvalidTransition, got %v", err)
	}
	if _, err := l.LendItem(ctx, 3001003, "admin", "", ""); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("lend without holder: expected InvalidInput, got %v", err)
	}

	list, _ := l.GetList(ctx, 3001)
	if list.Broken != 2 || list.Free != 0 {
		t.Errorf("expected 2 broken 0 free, got %d/%d", list.Broken, list.Free)
	}
	checkAggregates(t, d)
}

func TestSetItemStateVanishedItem(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	err := l.SetItemState(ctx, StateChange{
		ItemID:    3001777,
		UserID:    "admin",
		Operation: model.OpLend,
		Status:    model.StatusLent,
	})
	if err != nil {
		t.Fatalf("SetItemState on missing item: %v", err)
	}
	if n := countLogs(t, d, 3001777); n != 1 {
		t.Errorf("expected the log entry to be written, got %d", n)
	}

	holder := "Bob"
	err = l.SetItemState(ctx, StateChange{
		ItemID:    3001003,
		UserID:    "admin",
		Operation: model.OpLend,
		Status:    model.StatusLent,
		Holder:    &holder,
	})
	if err != nil {
		t.Fatal(err)
	}
	if item := getItem(t, d, 3001003); item.Holder != "Bob" || item.Status != model.StatusLent {
		t.Errorf("unexpected item %+v", item)
	}
	checkAggregates(t, d)

	err = l.SetItemState(ctx, StateChange{ItemID: 3001003, UserID: "admin", Operation: model.OpLend, Status: model.StatusUnknown})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("expected InvalidInput for unknown status, got %v", err)
	}
}

func TestConcurrentAddItems(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	const workers, perWorker = 8, 5
	var wg sync.WaitGroup
	results := make([][]int64, workers)
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			results[w], errs[w] = l.AddItems(ctx, "admin", NewItems{ListID: 3001, Count: perWorker})
		}(w)
	}
	wg.Wait()

	seen := map[int64]bool{}
	for w := 0; w < workers; w++ {
		if errs[w] != nil {
			t.Fatalf("worker %d: %v", w, errs[w])
		}
		for _, id := range results[w] {
			if seen[id] {
				t.Errorf("duplicate item id %d", id)
			}
			seen[id] = true
		}
	}

	list, _ := l.GetList(ctx, 3001)
	if list.Total != 3+workers*perWorker {
		t.Errorf("expected total %d, got %d", 3+workers*perWorker, list.Total)
	}
	checkAggregates(t, d)
}

func TestConcurrentReturns(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	ids, err := l.AddItems(ctx, "admin", NewItems{ListID: 3001, Count: 10})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if _, err := l.LendItem(ctx, id, "admin", "Ana", ""); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := l.ReturnItem(ctx, id, "ana"); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("ReturnItem: %v", err)
	}

	list, _ := l.GetList(ctx, 3001)
	if list.Free != 12 {
		t.Errorf("expected 12 free, got %d", list.Free)
	}
	checkAggregates(t, d)
}

func TestAddItemsIDCeiling(t *testing.T) {
	l, _ := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	// Suffixes 4 through 999 fill the list's id space.
	ids, err := l.AddItems(ctx, "admin", NewItems{ListID: 3001, Count: 996})
	if err != nil {
		t.Fatal(err)
	}
	if last := ids[len(ids)-1]; last != 3001999 {
		t.Fatalf("expected last id 3001999, got %d", last)
	}

	ids, err = l.AddItems(ctx, "admin", NewItems{ListID: 3001, Count: 1})
	if err != nil {
		t.Fatal(err)
	}
	if ids[0] != 3002000 {
		t.Errorf("expected spill-over id 3002000, got %d", ids[0])
	}

	_, err = l.AddItems(ctx, "admin", NewItems{ListID: 3001, Count: 1})
	if !errors.Is(err, model.ErrIDCollision) {
		t.Errorf("expected IDCollision after wrap-around, got %v", err)
	}
}

func TestListIDCeiling(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	// Pretend 999 lists were inserted.
	if _, err := d.ExecContext(ctx, `UPDATE categories SET list_seq = 999 WHERE id = 3`); err != nil {
		t.Fatal(err)
	}
	list, err := l.AddList(ctx, "admin", "Thousandth", 3)
	if err != nil {
		t.Fatal(err)
	}
	if list.ID != 4000 {
		t.Errorf("expected id 4000, got %d", list.ID)
	}

	// The counter wrapped, so the next list reuses suffix 1.
	if _, err := l.AddList(ctx, "admin", "Wrapped", 3); !errors.Is(err, model.ErrIDCollision) {
		t.Errorf("expected IDCollision, got %v", err)
	}
}

func TestQueriesNotFound(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := l.GetItemDetail(ctx, 1); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetItemDetail: expected NotFound, got %v", err)
	}
	if _, err := l.GetLists(ctx, 1); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetLists: expected NotFound, got %v", err)
	}
	if _, err := l.GetItems(ctx, 1001); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetItems: expected NotFound, got %v", err)
	}
	if _, err := l.GetMember(ctx, "ghost"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("GetMember: expected NotFound, got %v", err)
	}
}

type retryRecorder struct {
	mu       sync.Mutex
	retries  int
	outcomes []string
}

func (r *retryRecorder) RecordOperation(_, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *retryRecorder) RecordRetry(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries++
}

func TestRunTxRetriesConflicts(t *testing.T) {
	database := db.NewTestDB(t)
	rec := &retryRecorder{}
	l := New(database, Options{MaxRetries: 2, RetryBackoff: time.Millisecond, Metrics: rec})
	ctx := context.Background()

	calls := 0
	err := l.runTx(ctx, "flaky", func(context.Context, *db.Tx) error {
		calls++
		if calls < 3 {
			return model.Errorf(model.KindConflict, "busy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if rec.retries != 2 {
		t.Errorf("expected 2 retries, got %d", rec.retries)
	}

	calls = 0
	err = l.runTx(ctx, "flaky", func(context.Context, *db.Tx) error {
		calls++
		return model.Errorf(model.KindConflict, "busy")
	})
	if !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected Conflict after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}

	err = l.runTx(ctx, "flaky", func(context.Context, *db.Tx) error {
		return errors.New("disk on fire")
	})
	if !errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("expected StoreUnavailable, got %v", err)
	}
	if got := rec.outcomes[len(rec.outcomes)-1]; got != string(model.KindStoreUnavailable) {
		t.Errorf("last outcome = %q", got)
	}
}

func TestRunTxTimeoutIsConflict(t *testing.T) {
	database := db.NewTestDB(t)
	l := New(database, Options{TxTimeout: 20 * time.Millisecond, MaxRetries: 0})

	err := l.runTx(context.Background(), "slow", func(ctx context.Context, _ *db.Tx) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, model.ErrConflict) {
		t.Errorf("expected Conflict on timeout, got %v", err)
	}
}

func TestLifecycleKeepsItemNote(t *testing.T) {
	l, d := newTestLedger(t)
	seedMotors(t, l)
	ctx := context.Background()

	ids, err := l.AddItems(ctx, "admin", NewItems{ListID: 3001, Count: 2, Note: "cracked housing"})
	if err != nil {
		t.Fatal(err)
	}
	first, second := ids[0], ids[1]

	if _, err := l.ApplyItem(ctx, first, "ana", "demo day"); err != nil {
		t.Fatalf("ApplyItem: %v", err)
	}
	if _, err := l.ApproveApplication(ctx, first, "admin"); err != nil {
		t.Fatalf("ApproveApplication: %v", err)
	}
	if _, err := l.ReturnItem(ctx, first, "ana"); err != nil {
		t.Fatalf("ReturnItem: %v", err)
	}

	if _, err := l.ApplyItem(ctx, second, "bob", "soldering class"); err != nil {
		t.Fatalf("ApplyItem: %v", err)
	}
	if _, err := l.RejectApplication(ctx, second, "admin", "not now"); err != nil {
		t.Fatalf("RejectApplication: %v", err)
	}
	if _, err := l.LendItem(ctx, second, "admin", "Bob", "for the expo"); err != nil {
		t.Fatalf("LendItem: %v", err)
	}

	for _, id := range ids {
		item := getItem(t, d, id)
		if item.Note != "cracked housing" {
			t.Errorf("item %d: note = %q, want the note it was added with", id, item.Note)
		}
	}
	if item := getItem(t, d, first); item.Purpose != "" {
		t.Errorf("purpose should be cleared on return, got %q", item.Purpose)
	}

	tests := []struct {
		itemID int64
		want   []string
	}{
		{first, []string{model.OpReturn + ":", model.OpApprove + ":demo day", model.OpApply + ":demo day"}},
		{second, []string{model.OpLend + ":for the expo", model.OpReject + ":not now", model.OpApply + ":soldering class"}},
	}
	for _, tt := range tests {
		history, err := l.GetItemHistory(ctx, tt.itemID, 0)
		if err != nil {
			t.Fatal(err)
		}
		got := make([]string, len(history))
		for i, e := range history {
			got[i] = e.Operation + ":" + e.Note
		}
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("item %d history = %v, want %v", tt.itemID, got, tt.want)
		}
	}
}

func TestCanceledContext(t *testing.T) {
	database := db.NewTestDB(t)
	rec := &retryRecorder{}
	l := New(database, Options{Metrics: rec})
	if err := store.UpsertMember(context.Background(), database, &model.Member{UserID: "admin", IsAdmin: true}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.GetCategories(ctx)
	if !errors.Is(err, model.ErrCanceled) || !errors.Is(err, context.Canceled) {
		t.Errorf("GetCategories: expected Canceled, got %v", err)
	}

	_, err = l.AddCategory(ctx, "admin", "Tools")
	if !errors.Is(err, model.ErrCanceled) {
		t.Errorf("AddCategory: expected Canceled, got %v", err)
	}
	if errors.Is(err, model.ErrStoreUnavailable) {
		t.Errorf("cancellation reported as a storage failure: %v", err)
	}
	if got := rec.outcomes[len(rec.outcomes)-1]; got != string(model.KindCanceled) {
		t.Errorf("last outcome = %q", got)
	}

	categories, err := l.GetCategories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(categories) != 0 {
		t.Errorf("canceled AddCategory wrote %d categories", len(categories))
	}
}

func TestRunTxCanceledDuringBackoff(t *testing.T) {
	database := db.NewTestDB(t)
	l := New(database, Options{MaxRetries: 3, RetryBackoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	err := l.runTx(ctx, "flaky", func(context.Context, *db.Tx) error {
		calls++
		cancel()
		return model.Errorf(model.KindConflict, "busy")
	})
	if !errors.Is(err, model.ErrCanceled) {
		t.Errorf("expected Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected no retry after cancel, got %d attempts", calls)
	}
}

func TestConcurrentAddListSameName(t *testing.T) {
	l, d := newTestLedger(t)
	ctx := context.Background()

	for _, name := range []string{"Tools", "Cables", "Electronics"} {
		if _, err := l.AddCategory(ctx, "admin", name); err != nil {
			t.Fatal(err)
		}
	}

	const workers = 6
	var wg sync.WaitGroup
	results := make([]*model.List, workers)
	errs := make([]error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			results[w], errs[w] = l.AddList(ctx, "admin", "Servo", int64(w%3+1))
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		if errs[w] != nil {
			t.Fatalf("worker %d: %v", w, errs[w])
		}
		if results[w].ID != results[0].ID {
			t.Errorf("worker %d got list %d, worker 0 got %d", w, results[w].ID, results[0].ID)
		}
	}

	var n int
	if err := d.QueryRowContext(ctx, `SELECT COUNT(*) FROM item_lists WHERE name = ?`, "Servo").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected one Servo list, got %d", n)
	}
}
