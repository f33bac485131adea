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

package app

import (
	"context"
	"fmt"
	"time"

	"attachment-platform/internal/attachment"
	"attachment-platform/internal/fetch"
	"attachment-platform/internal/pipeline"
	"attachment-platform/internal/pipeline/processors"
	"attachment-platform/internal/storage/cache"
	"attachment-platform/internal/storage/driver"
	"attachment-platform/internal/storage/record"
	"attachment-platform/pkg/config"
	pkgerrors "attachment-platform/pkg/errors"
	"attachment-platform/pkg/log"
)

// Bootstrap 统一初始化：供 api 复用，避免在 cmd 内写装配逻辑
type Bootstrap struct {
	Config       *config.Config
	Logger       *log.Logger
	RecordStore  record.Store
	Drivers      *driver.Registry
	URICache     cache.Store
	Pipeline     *pipeline.Pipeline
	Fetcher      fetch.Fetcher
	Orchestrator *attachment.Orchestrator
}

// NewBootstrap 根据配置创建 Bootstrap（日志/记录仓库/驱动/缓存/流水线/编排器）
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	ctx := context.Background()

	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	recordStore, err := record.NewStore(ctx, cfg.Storage.Record)
	if err != nil {
		return nil, fmt.Errorf("初始化记录仓库失败: %w", err)
	}

	drivers, err := driver.NewRegistry(cfg.Storage.Drivers, cfg.Storage.Default)
	if err != nil {
		return nil, fmt.Errorf("初始化文件驱动失败: %w", err)
	}
	if drivers.Empty() {
		// 未配置任何驱动属于致命配置错误，不做静默兜底
		return nil, fmt.Errorf("初始化文件驱动失败: %w", pkgerrors.ErrNoDriver)
	}

	uriCache, err := cache.NewCache(ctx, cfg.Storage.Cache)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}

	pl := pipeline.New()
	if cfg.Pipeline.MaxFileSize > 0 {
		pl.Register(processors.NewMaxSize(cfg.Pipeline.MaxFileSize), []pipeline.Event{pipeline.EventBeforeSave})
	}
	if cfg.Pipeline.PDFValidate {
		pl.Register(processors.NewPDFValidate(), []pipeline.Event{pipeline.EventBeforeSave}, "application/pdf")
	}

	fetcher := fetch.New(cfg.Fetch)

	var cacheTTL time.Duration
	if cfg.Storage.Cache.TTL != "" {
		if d, err := time.ParseDuration(cfg.Storage.Cache.TTL); err == nil && d > 0 {
			cacheTTL = d
		}
	}

	orch, err := attachment.New(attachment.Deps{
		Records:  recordStore,
		Drivers:  drivers,
		URICache: uriCache,
		Pipeline: pl,
		Fetcher:  fetcher,
		Logger:   logger.Logger,
		CacheTTL: cacheTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化编排器失败: %w", err)
	}

	return &Bootstrap{
		Config:       cfg,
		Logger:       logger,
		RecordStore:  recordStore,
		Drivers:      drivers,
		URICache:     uriCache,
		Pipeline:     pl,
		Fetcher:      fetcher,
		Orchestrator: orch,
	}, nil
}

// Close 释放 Bootstrap 持有的连接
func (b *Bootstrap) Close() error {
	var firstErr error
	if b.RecordStore != nil {
		if err := b.RecordStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.Drivers != nil {
		if err := b.Drivers.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if b.URICache != nil {
		if err := b.URICache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
