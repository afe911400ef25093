package store

import (
	"context"
	"testing"

	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/model"
)

func TestAppendAndListLogs(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := int64(1001001)
	entries := []model.LogEntry{
		{TimestampMillis: 1, UserID: "u1", Operation: model.OpApply, TargetItemID: &item, Note: "demo"},
		{TimestampMillis: 2, UserID: "admin", Operation: model.OpApprove, TargetItemID: &item},
		{TimestampMillis: 3, UserID: "admin", Operation: model.OpAddCategory, Note: "Tools"},
	}
	for i := range entries {
		id, err := AppendLog(ctx, database, &entries[i])
		if err != nil {
			t.Fatalf("AppendLog: %v", err)
		}
		if id != int64(i+1) {
			t.Errorf("expected id %d, got %d", i+1, id)
		}
	}

	history, err := ListLogs(ctx, database, LogFilter{ItemID: item})
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries for item, got %d", len(history))
	}
	if history[0].Operation != model.OpApprove {
		t.Errorf("expected newest first, got %q", history[0].Operation)
	}

	byUser, _ := ListLogs(ctx, database, LogFilter{UserID: "admin", Limit: 1})
	if len(byUser) != 1 || byUser[0].Operation != model.OpAddCategory {
		t.Errorf("unexpected user filter result: %+v", byUser)
	}
	if byUser[0].TargetItemID != nil {
		t.Errorf("expected nil target, got %v", *byUser[0].TargetItemID)
	}

	latest, err := LatestLog(ctx, database, item, model.OpApply)
	if err != nil {
		t.Fatalf("LatestLog: %v", err)
	}
	if latest == nil || latest.UserID != "u1" || latest.Note != "demo" {
		t.Errorf("unexpected latest apply: %+v", latest)
	}

	none, err := LatestLog(ctx, database, item, model.OpScrap)
	if err != nil || none != nil {
		t.Errorf("expected nil, nil, got %+v, %v", none, err)
	}
}
