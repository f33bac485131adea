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
	"mime"
	"net/url"
	"os"
	"path/filepath"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/storage/record"
	"attachment-platform/pkg/errors"
)

// LocalDriver 本地文件系统驱动。变体落盘为 baseDir/<记录ID>/<变体键><扩展名>；
// publicURL 为空时回退到 file:// 绝对路径。
type LocalDriver struct {
	baseDir   string
	publicURL string
}

// NewLocalDriver 创建本地文件驱动，baseDir 不存在时自动创建
func NewLocalDriver(baseDir, publicURL string) (*LocalDriver, error) {
	if baseDir == "" {
		baseDir = "data/attachments"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &LocalDriver{baseDir: baseDir, publicURL: publicURL}, nil
}

// extByMime 按 MIME 推断扩展名，未知类型用 .bin
func extByMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func (d *LocalDriver) variantPath(rec *record.FileRecord, opts artifact.Options) string {
	name := artifact.VariantKey(opts) + extByMime(rec.MimeType)
	return filepath.Join(d.baseDir, rec.ID, name)
}

// Has 检查指定变体是否已落盘
func (d *LocalDriver) Has(ctx context.Context, rec *record.FileRecord, opts artifact.Options) (bool, error) {
	_, err := os.Stat(d.variantPath(rec, opts))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("检查变体失败: %w", err)
}

// TempOriginal 取回原件的临时副本
func (d *LocalDriver) TempOriginal(ctx context.Context, rec *record.FileRecord) (*artifact.Artifact, error) {
	path := d.variantPath(rec, nil)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "记录 %s 无原件", rec.ID)
		}
		return nil, fmt.Errorf("读取原件失败: %w", err)
	}
	return artifact.New(filepath.Base(path), data, rec.MimeType), nil
}

// SaveFile 持久化产物到指定变体位
func (d *LocalDriver) SaveFile(ctx context.Context, art *artifact.Artifact, rec *record.FileRecord, opts artifact.Options) error {
	path := d.variantPath(rec, opts)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建记录目录失败: %w", err)
	}
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return fmt.Errorf("写入变体失败: %w", err)
	}
	return nil
}

// Delete 删除指定变体；不存在时不报错
func (d *LocalDriver) Delete(ctx context.Context, rec *record.FileRecord, opts artifact.Options) error {
	path := d.variantPath(rec, opts)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除变体失败: %w", err)
	}
	// 记录目录空了就顺带收掉，失败无所谓
	_ = os.Remove(filepath.Dir(path))
	return nil
}

// PublicURI 返回可达 URI；仅在 Has 为真后有效
func (d *LocalDriver) PublicURI(ctx context.Context, rec *record.FileRecord, opts artifact.Options) (string, error) {
	rel := rec.ID + "/" + artifact.VariantKey(opts) + extByMime(rec.MimeType)
	if d.publicURL != "" {
		u, err := url.Parse(d.publicURL)
		if err != nil {
			return "", fmt.Errorf("解析公开地址失败: %w", err)
		}
		u.Path = filepath.ToSlash(filepath.Join(u.Path, rel))
		return u.String(), nil
	}
	abs, err := filepath.Abs(filepath.Join(d.baseDir, filepath.FromSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("解析本地路径失败: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: abs}).String(), nil
}

// ModificationKey 实现 Driver
func (d *LocalDriver) ModificationKey() string {
	return "modification"
}

// Close 关闭驱动
func (d *LocalDriver) Close() error {
	return nil
}
