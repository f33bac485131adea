package http

import (
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hzconfig "github.com/cloudwego/hertz/pkg/common/config"

	"attachment-platform/internal/api/http/middleware"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	rateLimit  app.HandlerFunc
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{
		handler:    handler,
		middleware: mw,
	}
}

// UseRateLimit 为附件路由启用进程级限流；qps <=0 不生效。
// 需在 Build 之前调用。
func (r *Router) UseRateLimit(qps float64, burst int) {
	if qps > 0 {
		r.rateLimit = r.middleware.RateLimit(qps, burst)
	}
}

// Build 构建 Hertz Server 并注册路由，opts 可注入 tracer 等服务级选项
func (r *Router) Build(addr string, opts ...hzconfig.Option) *server.Hertz {
	allOpts := append([]hzconfig.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(allOpts...)
	r.setupRoutes(h)
	return h
}

// setupRoutes 设置路由
func (r *Router) setupRoutes(h *server.Hertz) {
	api := h.Group("/api")

	api.GET("/health", r.handler.HealthCheck)
	api.GET("/metrics", r.handler.Metrics)

	groupMW := []app.HandlerFunc{r.middleware.CORS()}
	if r.rateLimit != nil {
		groupMW = append(groupMW, r.rateLimit)
	}
	attachments := api.Group("/attachments", groupMW...)
	{
		attachments.POST("/upload", r.handler.Upload)
		attachments.POST("/import", r.handler.Import)
		attachments.POST("/batch", r.handler.Batch)
		attachments.GET("", r.handler.List)
		attachments.GET("/:id", r.handler.Get)
		attachments.GET("/:id/uri", r.handler.PublicURI)
		attachments.POST("/:id/move", r.handler.Move)
		attachments.DELETE("/:id", r.handler.Delete)
	}
}
