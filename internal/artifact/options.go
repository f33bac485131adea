package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// OriginalKey 空变换选项对应的变体键：原始产物
const OriginalKey = "original"

// Options 变换选项，决定变体身份；空映射表示原始产物
type Options map[string]string

// IsOriginal 是否指向原始产物
func (o Options) IsOriginal() bool {
	return len(o) == 0
}

// Clone 拷贝选项
func (o Options) Clone() Options {
	if o == nil {
		return nil
	}
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// VariantKey 由选项推导变体键：空选项为 original，否则取排序序列化的
// sha256 前 16 个十六进制字符。同一记录同一键至多缓存一份持久产物。
func VariantKey(opts Options) string {
	if len(opts) == 0 {
		return OriginalKey
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(opts[k])
		b.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}
