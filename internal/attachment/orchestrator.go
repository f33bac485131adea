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

// Package attachment 附件编排核心：保存、槽位换位、变体懒物化与批量执行。
// 处理器 Abort 在本层收敛为零值结果 + nil error，不作为错误向外传播。
package attachment

import (
	"context"
	"log/slog"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/fetch"
	"attachment-platform/internal/pipeline"
	"attachment-platform/internal/storage/cache"
	"attachment-platform/internal/storage/driver"
	"attachment-platform/internal/storage/record"
	"attachment-platform/pkg/errors"
	"attachment-platform/pkg/metrics"
	"attachment-platform/pkg/utils"
)

// Deps 编排器依赖
type Deps struct {
	Records  record.Store
	Drivers  *driver.Registry
	URICache cache.Store        // nil 时使用内存缓存
	Pipeline *pipeline.Pipeline // nil 时使用空流水线
	Fetcher  fetch.Fetcher      // SaveFromURI 需要
	Logger   *slog.Logger
	CacheTTL time.Duration // URI 备忘过期时间，<=0 不过期
}

// Orchestrator 附件编排器
type Orchestrator struct {
	records  record.Store
	drivers  *driver.Registry
	drv      driver.Driver
	uriCache cache.Store
	pipeline *pipeline.Pipeline
	fetcher  fetch.Fetcher
	logger   *slog.Logger
	cacheTTL time.Duration
}

// New 创建编排器；未配置任何驱动时返回 errors.ErrNoDriver
func New(deps Deps) (*Orchestrator, error) {
	if deps.Records == nil {
		return nil, errors.Wrap(errors.ErrInvalidArg, "缺少记录仓库")
	}
	if deps.Drivers == nil || deps.Drivers.Empty() {
		return nil, errors.ErrNoDriver
	}
	drv, err := deps.Drivers.Default()
	if err != nil {
		return nil, err
	}
	if deps.URICache == nil {
		deps.URICache = cache.NewMemoryStore()
	}
	if deps.Pipeline == nil {
		deps.Pipeline = pipeline.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{
		records:  deps.Records,
		drivers:  deps.Drivers,
		drv:      drv,
		uriCache: deps.URICache,
		pipeline: deps.Pipeline,
		fetcher:  deps.Fetcher,
		logger:   deps.Logger,
		cacheTTL: deps.CacheTTL,
	}, nil
}

// UseDriver 返回绑定到指定具名驱动的编排器副本，原编排器不受影响
func (o *Orchestrator) UseDriver(name string) (*Orchestrator, error) {
	drv, err := o.drivers.Get(name)
	if err != nil {
		return nil, err
	}
	bound := *o
	bound.drv = drv
	return &bound, nil
}

// SaveOptions 保存选项
type SaveOptions struct {
	Name       string            // 产物名，空则沿用 artifact.Name
	MimeType   string            // 覆盖 MIME，空则用产物自带（或嗅探结果）
	Owner      *record.Owner     // 属主，nil 表示无主
	Slot       string            // 非空时保存后挂载到该槽位（占用者被挤出）
	Attributes map[string]string // 合并进记录 Attributes
	Variant    artifact.Options  // 保存事件派发选项，决定默认变体
}

// SaveFromArtifact 保存产物：前置校验事件 Abort 时返回 (nil, nil)，
// 不落任何记录与文件。
func (o *Orchestrator) SaveFromArtifact(ctx context.Context, art *artifact.Artifact, opts SaveOptions) (*record.FileRecord, error) {
	if art == nil || len(art.Data) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidArg, "产物为空")
	}

	outcome, err := o.pipeline.Dispatch(ctx, art, pipeline.EventBeforeSave, opts.Variant)
	if err != nil {
		metrics.SaveTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	if outcome.Aborted() {
		metrics.SaveTotal.WithLabelValues("aborted").Inc()
		o.logger.Debug("保存被前置校验拒绝", "name", art.Name)
		return nil, nil
	}
	art = outcome.Artifact()

	mimeType := opts.MimeType
	if mimeType == "" {
		mimeType = art.MimeType
	}
	if opts.Name != "" {
		art = art.Clone()
		art.Name = opts.Name
	}

	rec := &record.FileRecord{
		ID:         uuid.NewString(),
		MimeType:   mimeType,
		Attributes: mergeAttributes(art.Metadata, opts.Attributes),
	}
	if opts.Owner != nil {
		rec.OwnerType = opts.Owner.Type
		rec.OwnerID = opts.Owner.ID
	}
	if err := o.records.Create(ctx, rec); err != nil {
		metrics.SaveTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if err := o.drv.SaveFile(ctx, art, rec, nil); err != nil {
		// 原件落盘失败时回收刚建的记录
		_ = o.records.Delete(ctx, rec.ID)
		metrics.SaveTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if opts.Slot != "" {
		moved, err := o.MoveToSlot(ctx, rec, opts.Slot)
		if err != nil {
			return nil, err
		}
		if moved != nil {
			rec = moved
		}
	}

	// 保存事件产出默认变体；Abort 只跳过变体，原件保持有效
	saveOut, err := o.pipeline.Dispatch(ctx, art, pipeline.EventSave, opts.Variant)
	if err != nil {
		return nil, err
	}
	if !saveOut.Aborted() && saveOut.Artifact() != art {
		if err := o.drv.SaveFile(ctx, saveOut.Artifact(), rec, opts.Variant); err != nil {
			return nil, err
		}
	}

	metrics.SaveTotal.WithLabelValues("created").Inc()
	o.logger.Info("附件已保存", "id", rec.ID, "mime", rec.MimeType, "slot", opts.Slot)
	return rec, nil
}

// SaveFromURI 抓取远程内容后保存；抓取失败包装 errors.ErrFetchFailed
func (o *Orchestrator) SaveFromURI(ctx context.Context, uri string, opts SaveOptions) (*record.FileRecord, error) {
	if o.fetcher == nil {
		return nil, errors.Wrap(errors.ErrInvalidArg, "未配置抓取器")
	}
	data, err := o.fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		if u, perr := url.Parse(uri); perr == nil {
			name = path.Base(u.Path)
		}
	}
	return o.SaveFromArtifact(ctx, artifact.New(name, data, opts.MimeType), opts)
}

// PublicURI 返回指定变体的可达 URI，必要时懒物化：
// 原件喂入保存事件流水线，产出写回驱动。物化期间 Abort 返回 ("", nil)。
func (o *Orchestrator) PublicURI(ctx context.Context, rec *record.FileRecord, opts artifact.Options) (string, error) {
	if rec == nil {
		return "", errors.Wrap(errors.ErrInvalidArg, "记录为空")
	}
	key := uriCacheKey(rec, opts)
	if uri, ok, err := o.uriCache.Get(ctx, key); err == nil && ok {
		metrics.URICacheHitTotal.Inc()
		return uri, nil
	}

	has, err := o.drv.Has(ctx, rec, opts)
	if err != nil {
		return "", err
	}
	if !has {
		if opts.IsOriginal() {
			return "", errors.Wrapf(errors.ErrNotFound, "记录 %s 原件缺失", rec.ID)
		}
		orig, err := o.drv.TempOriginal(ctx, rec)
		if err != nil {
			return "", err
		}
		outcome, err := o.pipeline.Dispatch(ctx, orig, pipeline.EventSave, opts)
		if err != nil {
			return "", err
		}
		if outcome.Aborted() {
			return "", nil
		}
		if err := o.drv.SaveFile(ctx, outcome.Artifact(), rec, opts); err != nil {
			return "", err
		}
		metrics.VariantMaterializeTotal.Inc()
		o.logger.Debug("变体已物化", "id", rec.ID, "variant", artifact.VariantKey(opts))
	}

	uri, err := o.drv.PublicURI(ctx, rec, opts)
	if err != nil {
		return "", err
	}
	_ = o.uriCache.Set(ctx, key, uri, o.cacheTTL)
	return uri, nil
}

// Delete 删除变体：删除事件 Abort 时整体空操作。opts 不含驱动的
// ModificationKey 时销毁记录本身并整体失效 URI 备忘。
func (o *Orchestrator) Delete(ctx context.Context, rec *record.FileRecord, opts artifact.Options) error {
	if rec == nil {
		return errors.Wrap(errors.ErrInvalidArg, "记录为空")
	}
	probe := &artifact.Artifact{Name: rec.ID, MimeType: rec.MimeType, Metadata: utils.CloneStringMap(rec.Attributes)}
	outcome, err := o.pipeline.Dispatch(ctx, probe, pipeline.EventDelete, opts)
	if err != nil {
		return err
	}
	if outcome.Aborted() {
		o.logger.Debug("删除被处理器拒绝", "id", rec.ID)
		return nil
	}

	if err := o.drv.Delete(ctx, rec, opts); err != nil {
		return err
	}

	if _, onlyVariant := opts[o.drv.ModificationKey()]; onlyVariant {
		_ = o.uriCache.Delete(ctx, uriCacheKey(rec, opts))
		metrics.DeleteTotal.WithLabelValues("variant").Inc()
		return nil
	}

	if err := o.records.Delete(ctx, rec.ID); err != nil && !errors.Is(err, errors.ErrNotFound) {
		return err
	}
	_ = o.uriCache.DeletePrefix(ctx, rec.ID+"/")
	metrics.DeleteTotal.WithLabelValues("original").Inc()
	o.logger.Info("附件已删除", "id", rec.ID)
	return nil
}

// GetFilesFor 列出属主的附件记录；owner 为 nil 时列出无主记录。
// mimeTypes 与 slots 非空时按其过滤（任一匹配即保留）。
func (o *Orchestrator) GetFilesFor(ctx context.Context, owner *record.Owner, mimeTypes, slots []string) ([]*record.FileRecord, error) {
	return o.records.List(ctx, &record.Filter{
		Owner:      owner,
		Unattached: owner == nil,
		MimeTypes:  mimeTypes,
		Slots:      slots,
	})
}

// GetByID 按记录 ID 获取
func (o *Orchestrator) GetByID(ctx context.Context, id string) (*record.FileRecord, error) {
	return o.records.Get(ctx, id)
}

// GetBySlot 获取槽位占用者；空槽返回 (nil, nil)
func (o *Orchestrator) GetBySlot(ctx context.Context, slot string, owner *record.Owner) (*record.FileRecord, error) {
	return o.records.GetBySlot(ctx, slot, owner)
}

// DeleteByID 按记录 ID 删除
func (o *Orchestrator) DeleteByID(ctx context.Context, id string, opts artifact.Options) error {
	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return err
	}
	return o.Delete(ctx, rec, opts)
}

// DeleteBySlot 删除槽位占用者；空槽为空操作
func (o *Orchestrator) DeleteBySlot(ctx context.Context, slot string, owner *record.Owner, opts artifact.Options) error {
	rec, err := o.records.GetBySlot(ctx, slot, owner)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	return o.Delete(ctx, rec, opts)
}

// PublicURIByID 按记录 ID 取公开 URI
func (o *Orchestrator) PublicURIByID(ctx context.Context, id string, opts artifact.Options) (string, error) {
	rec, err := o.records.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return o.PublicURI(ctx, rec, opts)
}

// PublicURIBySlot 按槽位取公开 URI；空槽返回 errors.ErrNotFound
func (o *Orchestrator) PublicURIBySlot(ctx context.Context, slot string, owner *record.Owner, opts artifact.Options) (string, error) {
	rec, err := o.records.GetBySlot(ctx, slot, owner)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", errors.Wrapf(errors.ErrNotFound, "槽位 %s 为空", slot)
	}
	return o.PublicURI(ctx, rec, opts)
}

func uriCacheKey(rec *record.FileRecord, opts artifact.Options) string {
	return rec.ID + "/" + artifact.VariantKey(opts)
}

func mergeAttributes(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
