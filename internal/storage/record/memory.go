package record

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "attachment-platform/pkg/errors"
)

// MemoryStore 内存附件记录仓库实现
type MemoryStore struct {
	records map[string]*FileRecord
	mu      sync.RWMutex
}

// NewMemoryStore 创建新的内存附件记录仓库
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*FileRecord),
	}
}

// scopeKey 槽位唯一性作用域：同 (owner_type, owner_id) 为一个作用域，无主记录共用空作用域
func scopeKey(ownerType, ownerID string) string {
	return ownerType + "\x00" + ownerID
}

// occupant 返回作用域内占用 slot 的记录，排除 excludeID；无占用者返回 nil。调用方须持锁。
func (s *MemoryStore) occupant(scope, slot, excludeID string) *FileRecord {
	for _, rec := range s.records {
		if rec.ID == excludeID || rec.Slot == nil {
			continue
		}
		if scopeKey(rec.OwnerType, rec.OwnerID) == scope && *rec.Slot == slot {
			return rec
		}
	}
	return nil
}

// Create 创建附件记录
func (s *MemoryStore) Create(ctx context.Context, rec *FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("record with ID %s already exists", rec.ID)
	}
	if rec.Slot != nil {
		scope := scopeKey(rec.OwnerType, rec.OwnerID)
		if g := s.occupant(scope, *rec.Slot, rec.ID); g != nil {
			return pkgerrors.Wrapf(pkgerrors.ErrSlotOccupied, "slot %q held by %s", *rec.Slot, g.ID)
		}
	}

	now := time.Now().Unix()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.records[rec.ID] = rec.Clone()
	return nil
}

// Get 根据 ID 获取附件记录；返回拷贝，修改需经 Update/AssignSlot 持久化
func (s *MemoryStore) Get(ctx context.Context, id string) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "record %s", id)
	}
	return rec.Clone(), nil
}

// Update 更新附件记录（不改变槽位）
func (s *MemoryStore) Update(ctx context.Context, rec *FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.records[rec.ID]
	if !exists {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "record %s", rec.ID)
	}

	next := rec.Clone()
	next.Slot = cur.Slot // 槽位只通过 AssignSlot 修改
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().Unix()
	s.records[rec.ID] = next
	return nil
}

// Delete 根据 ID 删除附件记录
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "record %s", id)
	}
	delete(s.records, id)
	return nil
}

// GetBySlot 获取槽位占用者；owner 为 nil 时查无主记录
func (s *MemoryStore) GetBySlot(ctx context.Context, slot string, owner *Owner) (*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scope := scopeKey("", "")
	if owner != nil {
		scope = scopeKey(owner.Type, owner.ID)
	}
	if rec := s.occupant(scope, slot, ""); rec != nil {
		return rec.Clone(), nil
	}
	return nil, nil
}

// AssignSlot 检查后赋值，检查与赋值在同一临界区内
func (s *MemoryStore) AssignSlot(ctx context.Context, id string, slot *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return pkgerrors.Wrapf(pkgerrors.ErrNotFound, "record %s", id)
	}

	if slot != nil {
		scope := scopeKey(rec.OwnerType, rec.OwnerID)
		if g := s.occupant(scope, *slot, id); g != nil {
			return pkgerrors.Wrapf(pkgerrors.ErrSlotOccupied, "slot %q held by %s", *slot, g.ID)
		}
		v := *slot
		rec.Slot = &v
	} else {
		rec.Slot = nil
	}
	rec.UpdatedAt = time.Now().Unix()
	return nil
}

// List 按条件列出附件记录
func (s *MemoryStore) List(ctx context.Context, filter *Filter) ([]*FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*FileRecord

	for _, rec := range s.records {
		if filter != nil {
			// 过滤属主
			if filter.Owner != nil {
				if rec.OwnerType != filter.Owner.Type || rec.OwnerID != filter.Owner.ID {
					continue
				}
			} else if filter.Unattached {
				if rec.Owner() != nil {
					continue
				}
			}

			// 过滤 MIME 类型
			if len(filter.MimeTypes) > 0 {
				found := false
				for _, mt := range filter.MimeTypes {
					if rec.MimeType == mt {
						found = true
						break
					}
				}
				if !found {
					continue
				}
			}

			// 过滤槽位
			if len(filter.Slots) > 0 {
				if rec.Slot == nil {
					continue
				}
				found := false
				for _, slot := range filter.Slots {
					if *rec.Slot == slot {
						found = true
						break
					}
				}
				if !found {
					continue
				}
			}
		}

		results = append(results, rec.Clone())
	}

	return results, nil
}

// Close 关闭存储连接
func (s *MemoryStore) Close() error {
	return nil
}
