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

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/attachment"
	"attachment-platform/internal/storage/record"
)

// AttachmentInfo 附件信息 DTO，供 API 层使用，不依赖 storage 具体类型
type AttachmentInfo struct {
	ID         string            `json:"id"`
	MimeType   string            `json:"mime_type"`
	Slot       *string           `json:"slot"`
	OwnerType  string            `json:"owner_type,omitempty"`
	OwnerID    string            `json:"owner_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  int64             `json:"created_at"`
	UpdatedAt  int64             `json:"updated_at"`
}

// UploadInput 上传入参
type UploadInput struct {
	Name       string
	MimeType   string
	Data       []byte
	OwnerType  string
	OwnerID    string
	Slot       string
	Attributes map[string]string
	Variant    map[string]string
}

// ImportInput 远程导入入参
type ImportInput struct {
	URI        string
	Name       string
	MimeType   string
	OwnerType  string
	OwnerID    string
	Slot       string
	Attributes map[string]string
}

// ListInput 列表查询入参；MimeTypes 与 Slots 非空时按其过滤
type ListInput struct {
	OwnerType string
	OwnerID   string
	MimeTypes []string
	Slots     []string
}

// BatchOp 批量槽位操作 DTO，零值表示删除
type BatchOp struct {
	RecordID string `json:"record_id,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// BatchUpload 批量上传 DTO
type BatchUpload struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Data     []byte `json:"data"` // JSON 传输时为 base64
}

// BatchInput 批量入参
type BatchInput struct {
	OwnerType string
	OwnerID   string
	Ops       map[string]BatchOp
	Uploads   map[string]BatchUpload
}

// AttachmentService 附件门面：API 层仅依赖此接口，不直接调用编排核心。
// 保存/移动被处理器拒绝时返回 (nil, nil)。
type AttachmentService interface {
	Upload(ctx context.Context, in UploadInput) (*AttachmentInfo, error)
	Import(ctx context.Context, in ImportInput) (*AttachmentInfo, error)
	List(ctx context.Context, in ListInput) ([]*AttachmentInfo, error)
	Get(ctx context.Context, id string) (*AttachmentInfo, error)
	PublicURI(ctx context.Context, id string, opts map[string]string) (string, error)
	Delete(ctx context.Context, id string, opts map[string]string) error
	Move(ctx context.Context, id, slot string) (*AttachmentInfo, error)
	Batch(ctx context.Context, in BatchInput) error
}

// attachmentService 使用编排器实现 AttachmentService
type attachmentService struct {
	orch *attachment.Orchestrator
}

// NewAttachmentService 创建附件门面（由 bootstrap 或 app 装配时调用）
func NewAttachmentService(orch *attachment.Orchestrator) AttachmentService {
	return &attachmentService{orch: orch}
}

func (s *attachmentService) Upload(ctx context.Context, in UploadInput) (*AttachmentInfo, error) {
	rec, err := s.orch.SaveFromArtifact(ctx, artifact.New(in.Name, in.Data, in.MimeType), attachment.SaveOptions{
		Owner:      ownerOf(in.OwnerType, in.OwnerID),
		Slot:       in.Slot,
		Attributes: in.Attributes,
		Variant:    artifact.Options(in.Variant),
	})
	if err != nil {
		return nil, err
	}
	return recToInfo(rec), nil
}

func (s *attachmentService) Import(ctx context.Context, in ImportInput) (*AttachmentInfo, error) {
	rec, err := s.orch.SaveFromURI(ctx, in.URI, attachment.SaveOptions{
		Name:       in.Name,
		MimeType:   in.MimeType,
		Owner:      ownerOf(in.OwnerType, in.OwnerID),
		Slot:       in.Slot,
		Attributes: in.Attributes,
	})
	if err != nil {
		return nil, err
	}
	return recToInfo(rec), nil
}

func (s *attachmentService) List(ctx context.Context, in ListInput) ([]*AttachmentInfo, error) {
	recs, err := s.orch.GetFilesFor(ctx, ownerOf(in.OwnerType, in.OwnerID), in.MimeTypes, in.Slots)
	if err != nil {
		return nil, err
	}
	out := make([]*AttachmentInfo, len(recs))
	for i, r := range recs {
		out[i] = recToInfo(r)
	}
	return out, nil
}

func (s *attachmentService) Get(ctx context.Context, id string) (*AttachmentInfo, error) {
	rec, err := s.orch.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return recToInfo(rec), nil
}

func (s *attachmentService) PublicURI(ctx context.Context, id string, opts map[string]string) (string, error) {
	return s.orch.PublicURIByID(ctx, id, artifact.Options(opts))
}

func (s *attachmentService) Delete(ctx context.Context, id string, opts map[string]string) error {
	return s.orch.DeleteByID(ctx, id, artifact.Options(opts))
}

func (s *attachmentService) Move(ctx context.Context, id, slot string) (*AttachmentInfo, error) {
	rec, err := s.orch.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	moved, err := s.orch.MoveToSlot(ctx, rec, slot)
	if err != nil {
		return nil, err
	}
	return recToInfo(moved), nil
}

func (s *attachmentService) Batch(ctx context.Context, in BatchInput) error {
	ops := make(map[string]attachment.SlotOperation, len(in.Ops))
	for slot, op := range in.Ops {
		ops[slot] = attachment.SlotOperation{RecordID: op.RecordID, URI: op.URI}
	}
	uploads := make(map[string]*artifact.Artifact, len(in.Uploads))
	for slot, up := range in.Uploads {
		uploads[slot] = artifact.New(up.Name, up.Data, up.MimeType)
	}
	return s.orch.Batch(ctx, ops, uploads, ownerOf(in.OwnerType, in.OwnerID))
}

func ownerOf(ownerType, ownerID string) *record.Owner {
	if ownerType == "" && ownerID == "" {
		return nil
	}
	return &record.Owner{Type: ownerType, ID: ownerID}
}

func recToInfo(r *record.FileRecord) *AttachmentInfo {
	if r == nil {
		return nil
	}
	return &AttachmentInfo{
		ID:         r.ID,
		MimeType:   r.MimeType,
		Slot:       r.Slot,
		OwnerType:  r.OwnerType,
		OwnerID:    r.OwnerID,
		Attributes: r.Attributes,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
