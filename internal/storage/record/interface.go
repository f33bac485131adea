package record

import (
	"context"
)

// Store 附件记录仓库接口
type Store interface {
	// Create 创建附件记录；槽位占用冲突时返回 errors.ErrSlotOccupied
	Create(ctx context.Context, rec *FileRecord) error
	// Get 根据 ID 获取附件记录
	Get(ctx context.Context, id string) (*FileRecord, error)
	// Update 更新附件记录（不含槽位，槽位走 AssignSlot）
	Update(ctx context.Context, rec *FileRecord) error
	// Delete 根据 ID 删除附件记录
	Delete(ctx context.Context, id string) error
	// GetBySlot 获取槽位占用者；owner 为 nil 时查无主记录；无占用者返回 (nil, nil)
	GetBySlot(ctx context.Context, slot string, owner *Owner) (*FileRecord, error)
	// AssignSlot 检查后赋值：slot 非 nil 且同 owner 下已被其他记录占用时返回
	// errors.ErrSlotOccupied，不做任何修改；slot 为 nil 表示腾空。
	// 检查与赋值在同一临界区/事务内完成。
	AssignSlot(ctx context.Context, id string, slot *string) error
	// List 按条件列出附件记录
	List(ctx context.Context, filter *Filter) ([]*FileRecord, error)
	// Close 关闭存储连接
	Close() error
}

// FileRecord 附件记录元数据
type FileRecord struct {
	ID         string            `json:"id"`          // 记录唯一标识
	MimeType   string            `json:"mime_type"`   // MIME 类型
	Slot       *string           `json:"slot"`        // 槽位键，nil 表示未挂载
	OwnerType  string            `json:"owner_type"`  // 属主类型标签，空表示无主
	OwnerID    string            `json:"owner_id"`    // 属主 ID
	Attributes map[string]string `json:"attributes"`  // 处理器/驱动附加元数据
	CreatedAt  int64             `json:"created_at"`  // 创建时间
	UpdatedAt  int64             `json:"updated_at"`  // 更新时间
}

// Owner 属主引用：(类型标签, ID) 二元组
type Owner struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Owner 返回记录属主，无主返回 nil
func (r *FileRecord) Owner() *Owner {
	if r.OwnerType == "" && r.OwnerID == "" {
		return nil
	}
	return &Owner{Type: r.OwnerType, ID: r.OwnerID}
}

// Attached 是否占用槽位
func (r *FileRecord) Attached() bool {
	return r.Slot != nil
}

// Clone 拷贝记录（Attributes 独立）
func (r *FileRecord) Clone() *FileRecord {
	out := *r
	if r.Slot != nil {
		s := *r.Slot
		out.Slot = &s
	}
	if r.Attributes != nil {
		out.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			out.Attributes[k] = v
		}
	}
	return &out
}

// Filter 过滤条件
type Filter struct {
	Owner      *Owner   `json:"owner"`      // 指定属主；nil 时不按属主过滤
	Unattached bool     `json:"unattached"` // true 时仅返回无主记录（与 Owner 互斥）
	MimeTypes  []string `json:"mime_types"` // MIME 类型列表
	Slots      []string `json:"slots"`      // 槽位列表
}
