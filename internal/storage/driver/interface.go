package driver

import (
	"context"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/storage/record"
)

// Driver 文件驱动接口：负责原件与变体的物理存取。
// 变体由 (记录 ID, 变体键) 寻址，变体键见 artifact.VariantKey。
type Driver interface {
	// Has 检查指定变体是否已物化
	Has(ctx context.Context, rec *record.FileRecord, opts artifact.Options) (bool, error)
	// TempOriginal 取回原件的临时副本，用于派生变体
	TempOriginal(ctx context.Context, rec *record.FileRecord) (*artifact.Artifact, error)
	// SaveFile 持久化产物到指定变体位
	SaveFile(ctx context.Context, art *artifact.Artifact, rec *record.FileRecord, opts artifact.Options) error
	// Delete 删除指定变体；不存在时不报错
	Delete(ctx context.Context, rec *record.FileRecord, opts artifact.Options) error
	// PublicURI 返回可达 URI；仅在 Has 为真后有效
	PublicURI(ctx context.Context, rec *record.FileRecord, opts artifact.Options) (string, error)
	// ModificationKey 选项中标记“仅派生变体”的键名
	ModificationKey() string
	// Close 关闭驱动
	Close() error
}
