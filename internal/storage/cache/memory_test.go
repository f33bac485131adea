package cache

import (
	"context"
	"testing"
)

func TestMemoryStore_Set_Get_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Set(ctx, "rec-1/original", "file:///tmp/a.png", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	uri, ok, err := s.Get(ctx, "rec-1/original")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if uri != "file:///tmp/a.png" {
		t.Errorf("Get: got %q", uri)
	}
	if err := s.Delete(ctx, "rec-1/original"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "rec-1/original"); ok {
		t.Error("Get after Delete should miss")
	}
}

func TestMemoryStore_Get_Miss(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("Get missing: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStore_Delete_Missing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete missing should be a no-op: %v", err)
	}
}

func TestMemoryStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.Set(ctx, "rec-1/original", "u1", 0)
	_ = s.Set(ctx, "rec-1/ab12", "u2", 0)
	_ = s.Set(ctx, "rec-2/original", "u3", 0)

	if err := s.DeletePrefix(ctx, "rec-1/"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "rec-1/original"); ok {
		t.Error("rec-1/original should be gone")
	}
	if _, ok, _ := s.Get(ctx, "rec-1/ab12"); ok {
		t.Error("rec-1/ab12 should be gone")
	}
	if _, ok, _ := s.Get(ctx, "rec-2/original"); !ok {
		t.Error("rec-2/original should survive")
	}
}

// 过期用纳秒时间戳判断，短 TTL 测试易抖动，此处不覆盖过期路径
