package history

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestStore_RecordAndList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Join(dir, DBFileName)); err != nil {
		t.Fatalf("数据库文件未创建: %v", err)
	}

	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []*Run{
		{RunID: "run-1", StartedAt: base, Duration: 1.5, Cards: 3, FirstRun: true},
		{RunID: "run-2", StartedAt: base.Add(time.Hour), Cards: 3, Added: []string{"d"}, Removed: []string{"a"}, Dropped: 2},
		{RunID: "run-3", StartedAt: base.Add(2 * time.Hour), Cards: 3},
	}
	for _, r := range runs {
		if _, err := store.Record(ctx, r); err != nil {
			t.Fatalf("Record(%s) error = %v", r.RunID, err)
		}
		if r.ID == 0 {
			t.Errorf("Record(%s) 未设置ID", r.RunID)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"全部", 0, []string{"run-3", "run-2", "run-1"}},
		{"最近两次", 2, []string{"run-3", "run-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.limit)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			var ids []string
			for _, r := range got {
				ids = append(ids, r.RunID)
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("List(%d) = %v, want %v", tt.limit, ids, tt.want)
			}
		})
	}

	got, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	second := got[1]
	if !reflect.DeepEqual(second.Added, []string{"d"}) || !reflect.DeepEqual(second.Removed, []string{"a"}) {
		t.Errorf("Added/Removed = %v/%v", second.Added, second.Removed)
	}
	if second.Dropped != 2 || !second.StartedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("run-2 = %+v", second)
	}
	if first := got[2]; !first.FirstRun || first.Duration != 1.5 || len(first.Added) != 0 {
		t.Errorf("run-1 = %+v", first)
	}
}

func TestStore_ListSameSecond(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	// 先写入较晚的记录,排序不能依赖ID
	for _, r := range []*Run{
		{RunID: "later", StartedAt: base.Add(100 * time.Millisecond)},
		{RunID: "earlier", StartedAt: base},
	} {
		if _, err := store.Record(ctx, r); err != nil {
			t.Fatalf("Record(%s) error = %v", r.RunID, err)
		}
	}

	got, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].RunID != "later" || got[1].RunID != "earlier" {
		t.Fatalf("List() 顺序错误: %+v", got)
	}
	if !got[0].StartedAt.Equal(base.Add(100 * time.Millisecond)) {
		t.Errorf("StartedAt = %v", got[0].StartedAt)
	}
}

func TestStore_DuplicateRunID(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	run := &Run{RunID: "same", StartedAt: time.Now()}
	if _, err := store.Record(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Record(context.Background(), &Run{RunID: "same", StartedAt: time.Now()}); err == nil {
		t.Error("重复的run_id应返回错误")
	}
}

func TestStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Record(context.Background(), &Run{RunID: "persisted", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	store, err = Open(dir)
	if err != nil {
		t.Fatalf("重新打开失败: %v", err)
	}
	defer store.Close()
	runs, err := store.List(context.Background(), 0)
	if err != nil || len(runs) != 1 || runs[0].RunID != "persisted" {
		t.Errorf("List() = %v, %v", runs, err)
	}
}
