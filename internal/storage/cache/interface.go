package cache

import (
	"context"
	"time"
)

// Store 公开 URI 备忘缓存接口。未命中不是错误，由第二个返回值表达。
// 键形如 记录ID/变体键，记录销毁时按前缀整体失效。
type Store interface {
	// Set 写入 URI，ttl<=0 表示不过期
	Set(ctx context.Context, key, uri string, ttl time.Duration) error
	// Get 读取 URI，未命中或已过期返回 ok=false
	Get(ctx context.Context, key string) (uri string, ok bool, err error)
	// Delete 失效单个键，键不存在时为幂等空操作
	Delete(ctx context.Context, key string) error
	// DeletePrefix 失效指定前缀下的全部键
	DeletePrefix(ctx context.Context, prefix string) error
	// Close 关闭缓存连接
	Close() error
}
