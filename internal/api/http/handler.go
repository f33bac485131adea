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

package http

import (
	"bytes"
	"context"
	"io"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	appsvc "attachment-platform/internal/app"
	"attachment-platform/pkg/errors"
	"attachment-platform/pkg/metrics"
)

// Handler HTTP 处理器，仅依赖 AttachmentService 门面
type Handler struct {
	service appsvc.AttachmentService
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(service appsvc.AttachmentService) *Handler {
	return &Handler{service: service}
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]string{"status": "ok"})
}

// Metrics Prometheus 指标
// GET /api/metrics
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// Upload 上传附件（multipart 表单：file 必填；owner_type/owner_id/slot/name/mime_type 可选）
// POST /api/attachments/upload
func (h *Handler) Upload(c context.Context, ctx *app.RequestContext) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	name := ctx.PostForm("name")
	if name == "" {
		name = fh.Filename
	}
	info, err := h.service.Upload(c, appsvc.UploadInput{
		Name:      name,
		MimeType:  ctx.PostForm("mime_type"),
		Data:      data,
		OwnerType: ctx.PostForm("owner_type"),
		OwnerID:   ctx.PostForm("owner_id"),
		Slot:      ctx.PostForm("slot"),
	})
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	if info == nil {
		ctx.JSON(consts.StatusUnprocessableEntity, map[string]string{"error": "保存被处理器拒绝"})
		return
	}
	ctx.JSON(consts.StatusCreated, info)
}

// importRequest 远程导入请求体
type importRequest struct {
	URI       string `json:"uri"`
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	OwnerType string `json:"owner_type"`
	OwnerID   string `json:"owner_id"`
	Slot      string `json:"slot"`
}

// Import 按 URI 导入附件
// POST /api/attachments/import
func (h *Handler) Import(c context.Context, ctx *app.RequestContext) {
	var req importRequest
	if err := ctx.BindJSON(&req); err != nil || req.URI == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "uri is required"})
		return
	}
	info, err := h.service.Import(c, appsvc.ImportInput{
		URI:       req.URI,
		Name:      req.Name,
		MimeType:  req.MimeType,
		OwnerType: req.OwnerType,
		OwnerID:   req.OwnerID,
		Slot:      req.Slot,
	})
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	if info == nil {
		ctx.JSON(consts.StatusUnprocessableEntity, map[string]string{"error": "保存被处理器拒绝"})
		return
	}
	ctx.JSON(consts.StatusCreated, info)
}

// List 列出属主的附件，mime_type 与 slot 参数可重复出现按其过滤
// GET /api/attachments?owner_type=&owner_id=&mime_type=&slot=
func (h *Handler) List(c context.Context, ctx *app.RequestContext) {
	in := appsvc.ListInput{
		OwnerType: ctx.Query("owner_type"),
		OwnerID:   ctx.Query("owner_id"),
	}
	ctx.QueryArgs().VisitAll(func(key, value []byte) {
		switch string(key) {
		case "mime_type":
			in.MimeTypes = append(in.MimeTypes, string(value))
		case "slot":
			in.Slots = append(in.Slots, string(value))
		}
	})
	infos, err := h.service.List(c, in)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{"attachments": infos, "total": len(infos)})
}

// Get 获取单个附件记录
// GET /api/attachments/:id
func (h *Handler) Get(c context.Context, ctx *app.RequestContext) {
	info, err := h.service.Get(c, ctx.Param("id"))
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, info)
}

// PublicURI 取公开 URI；除 id 外的查询参数全部作为变体选项
// GET /api/attachments/:id/uri?resize=100x100
func (h *Handler) PublicURI(c context.Context, ctx *app.RequestContext) {
	uri, err := h.service.PublicURI(c, ctx.Param("id"), queryOptions(ctx))
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	if uri == "" {
		ctx.JSON(consts.StatusUnprocessableEntity, map[string]string{"error": "物化被处理器拒绝"})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{"uri": uri})
}

// Delete 删除附件或其变体；查询参数作为变体选项
// DELETE /api/attachments/:id
func (h *Handler) Delete(c context.Context, ctx *app.RequestContext) {
	if err := h.service.Delete(c, ctx.Param("id"), queryOptions(ctx)); err != nil {
		h.writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{"status": "deleted"})
}

// moveRequest 槽位移动请求体
type moveRequest struct {
	Slot string `json:"slot"`
}

// Move 移动附件到目标槽位（占用者被换位）
// POST /api/attachments/:id/move
func (h *Handler) Move(c context.Context, ctx *app.RequestContext) {
	var req moveRequest
	if err := ctx.BindJSON(&req); err != nil || req.Slot == "" {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "slot is required"})
		return
	}
	info, err := h.service.Move(c, ctx.Param("id"), req.Slot)
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	if info == nil {
		ctx.JSON(consts.StatusUnprocessableEntity, map[string]string{"error": "移动被处理器拒绝"})
		return
	}
	ctx.JSON(consts.StatusOK, info)
}

// batchRequest 批量请求体
type batchRequest struct {
	OwnerType string                        `json:"owner_type"`
	OwnerID   string                        `json:"owner_id"`
	Ops       map[string]appsvc.BatchOp     `json:"ops"`
	Uploads   map[string]appsvc.BatchUpload `json:"uploads"`
}

// Batch 批量槽位操作
// POST /api/attachments/batch
func (h *Handler) Batch(c context.Context, ctx *app.RequestContext) {
	var req batchRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(req.Ops) == 0 && len(req.Uploads) == 0 {
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": "ops or uploads is required"})
		return
	}
	err := h.service.Batch(c, appsvc.BatchInput{
		OwnerType: req.OwnerType,
		OwnerID:   req.OwnerID,
		Ops:       req.Ops,
		Uploads:   req.Uploads,
	})
	if err != nil {
		h.writeError(c, ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{"status": "applied"})
}

// writeError 错误到状态码的统一映射
func (h *Handler) writeError(c context.Context, ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		ctx.JSON(consts.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, errors.ErrInvalidArg):
		ctx.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, errors.ErrFetchFailed):
		ctx.JSON(consts.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		hlog.CtxErrorf(c, "request failed: %v", err)
		ctx.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// queryOptions 把全部查询参数收集为变体选项
func queryOptions(ctx *app.RequestContext) map[string]string {
	opts := make(map[string]string)
	ctx.QueryArgs().VisitAll(func(key, value []byte) {
		opts[string(key)] = string(value)
	})
	return opts
}
