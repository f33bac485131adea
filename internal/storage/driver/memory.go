// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package driver

import (
	"context"
	"fmt"
	"sync"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/storage/record"
	"attachment-platform/pkg/errors"
)

// MemoryDriver 内存文件驱动实现，键为 记录ID/变体键
type MemoryDriver struct {
	variants map[string]*artifact.Artifact
	mu       sync.RWMutex
}

// NewMemoryDriver 创建新的内存文件驱动
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		variants: make(map[string]*artifact.Artifact),
	}
}

func variantAddr(rec *record.FileRecord, opts artifact.Options) string {
	return rec.ID + "/" + artifact.VariantKey(opts)
}

// Has 检查指定变体是否已物化
func (d *MemoryDriver) Has(ctx context.Context, rec *record.FileRecord, opts artifact.Options) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, exists := d.variants[variantAddr(rec, opts)]
	return exists, nil
}

// TempOriginal 取回原件的临时副本
func (d *MemoryDriver) TempOriginal(ctx context.Context, rec *record.FileRecord) (*artifact.Artifact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	art, exists := d.variants[rec.ID+"/"+artifact.OriginalKey]
	if !exists {
		return nil, errors.Wrapf(errors.ErrNotFound, "记录 %s 无原件", rec.ID)
	}
	return art.Clone(), nil
}

// SaveFile 持久化产物到指定变体位
func (d *MemoryDriver) SaveFile(ctx context.Context, art *artifact.Artifact, rec *record.FileRecord, opts artifact.Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.variants[variantAddr(rec, opts)] = art.Clone()
	return nil
}

// Delete 删除指定变体；不存在时不报错
func (d *MemoryDriver) Delete(ctx context.Context, rec *record.FileRecord, opts artifact.Options) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.variants, variantAddr(rec, opts))
	return nil
}

// PublicURI 返回可达 URI；仅在 Has 为真后有效
func (d *MemoryDriver) PublicURI(ctx context.Context, rec *record.FileRecord, opts artifact.Options) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	addr := variantAddr(rec, opts)
	if _, exists := d.variants[addr]; !exists {
		return "", errors.Wrapf(errors.ErrNotFound, "变体 %s 未物化", addr)
	}
	return fmt.Sprintf("memory://%s", addr), nil
}

// ModificationKey 实现 Driver
func (d *MemoryDriver) ModificationKey() string {
	return "modification"
}

// Close 关闭驱动
func (d *MemoryDriver) Close() error {
	return nil
}
