package processors

import (
	"context"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/pipeline"
)

// MaxSize 大小校验处理器：超过阈值的产物在保存前被拒绝
type MaxSize struct {
	limit int64
}

// NewMaxSize 创建大小校验处理器，limit 为字节上限
func NewMaxSize(limit int64) *MaxSize {
	return &MaxSize{limit: limit}
}

// Name 实现 pipeline.Processor
func (m *MaxSize) Name() string { return "validate.maxsize" }

// Handle 实现 pipeline.Processor
func (m *MaxSize) Handle(ctx context.Context, art *artifact.Artifact, event pipeline.Event, opts artifact.Options) (pipeline.Outcome, error) {
	if m.limit > 0 && art.Size() > m.limit {
		return pipeline.Abort(), nil
	}
	return pipeline.Continue(art), nil
}
