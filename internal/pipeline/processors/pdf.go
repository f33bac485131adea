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

package processors

import (
	"bytes"
	"context"
	"strconv"

	"github.com/unidoc/unipdf/v3/model"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/pipeline"
)

// PDFValidate PDF 校验处理器：无法解析或零页的 PDF 在保存前被拒绝，
// 通过校验时将页数写入产物元数据。注册时应以 application/pdf 谓词限定。
type PDFValidate struct{}

// NewPDFValidate 创建 PDF 校验处理器
func NewPDFValidate() *PDFValidate {
	return &PDFValidate{}
}

// Name 实现 pipeline.Processor
func (p *PDFValidate) Name() string { return "validate.pdf" }

// Handle 实现 pipeline.Processor
func (p *PDFValidate) Handle(ctx context.Context, art *artifact.Artifact, event pipeline.Event, opts artifact.Options) (pipeline.Outcome, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(art.Data))
	if err != nil {
		return pipeline.Abort(), nil
	}
	numPages, err := reader.GetNumPages()
	if err != nil || numPages == 0 {
		return pipeline.Abort(), nil
	}
	if art.Metadata == nil {
		art.Metadata = make(map[string]string)
	}
	art.Metadata["pdf_pages"] = strconv.Itoa(numPages)
	return pipeline.Continue(art), nil
}
