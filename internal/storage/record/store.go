package record

import (
	"context"
	"fmt"

	"attachment-platform/pkg/config"
)

// NewStore 根据配置创建附件记录仓库
func NewStore(ctx context.Context, cfg config.RecordConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(ctx, cfg.DSN, cfg.PoolSize)
	default:
		return nil, fmt.Errorf("不支持的记录仓库类型: %s", cfg.Type)
	}
}
