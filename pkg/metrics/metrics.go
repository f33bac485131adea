package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		SaveTotal, DeleteTotal, MoveTotal,
		VariantMaterializeTotal, URICacheHitTotal,
		BatchOpTotal, BatchRetryTotal,
		FetchDuration,
	)
}

// SaveTotal 附件保存总数（按结果）
var SaveTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "attach_save_total",
		Help: "附件保存总数（按结果）",
	},
	[]string{"result"}, // created | aborted | failed
)

// DeleteTotal 删除总数（按目标：original | variant）
var DeleteTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "attach_delete_total",
		Help: "删除总数（按目标）",
	},
	[]string{"target"},
)

// MoveTotal 槽位移动总数（按结果：direct | swap | aborted）
var MoveTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "attach_move_total",
		Help: "槽位移动总数（按结果）",
	},
	[]string{"result"},
)

// VariantMaterializeTotal 变体懒生成次数
var VariantMaterializeTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "attach_variant_materialize_total",
		Help: "变体懒生成次数",
	},
)

// URICacheHitTotal 公开 URI 命中缓存次数
var URICacheHitTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "attach_uri_cache_hit_total",
		Help: "公开 URI 命中缓存次数",
	},
)

// BatchOpTotal 批量槽位操作总数（按操作类型）
var BatchOpTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "attach_batch_op_total",
		Help: "批量槽位操作总数（按操作类型）",
	},
	[]string{"op"}, // delete | move | import | upload
)

// BatchRetryTotal 批量操作驱逐重试次数
var BatchRetryTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "attach_batch_retry_total",
		Help: "批量操作驱逐重试次数",
	},
)

// FetchDuration 远程抓取耗时（秒）
var FetchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "attach_fetch_duration_seconds",
		Help:    "远程抓取耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
