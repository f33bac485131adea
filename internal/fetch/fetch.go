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

// Package fetch 远程 URI 抓取原语
package fetch

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"attachment-platform/pkg/config"
	"attachment-platform/pkg/errors"
	"attachment-platform/pkg/metrics"
	"attachment-platform/pkg/utils"
)

// Fetcher 抓取接口，供编排器与批量执行器消费
type Fetcher interface {
	// Fetch 抓取 uri 的完整内容；任何失败都包装 errors.ErrFetchFailed
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// HTTPFetcher 基于 resty 的抓取实现，可选令牌桶限流与大小上限
type HTTPFetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
	maxSize int64
}

// New 根据配置创建抓取器
func New(cfg config.FetchConfig) *HTTPFetcher {
	client := resty.New()
	if cfg.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
			client.SetTimeout(d)
		}
	}

	var limiter *rate.Limiter
	if cfg.QPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.QPS), utils.DefaultInt(cfg.Burst, 1))
	}

	return &HTTPFetcher{
		client:  client,
		limiter: limiter,
		maxSize: cfg.MaxSize,
	}
}

// Fetch 抓取 uri 的完整内容
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrapf(errors.ErrFetchFailed, "等待限流失败: %v", err)
		}
	}

	start := time.Now()
	resp, err := f.client.R().SetContext(ctx).Get(uri)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, errors.Wrapf(errors.ErrFetchFailed, "抓取 %s 失败: %v", uri, err)
	}
	if !resp.IsSuccess() {
		return nil, errors.Wrapf(errors.ErrFetchFailed, "抓取 %s 返回状态码 %d", uri, resp.StatusCode())
	}

	body := resp.Body()
	if f.maxSize > 0 && int64(len(body)) > f.maxSize {
		return nil, errors.Wrapf(errors.ErrFetchFailed, "抓取 %s 内容超过上限 %d 字节", uri, f.maxSize)
	}
	return body, nil
}
