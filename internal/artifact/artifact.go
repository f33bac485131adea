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

package artifact

import (
	"bytes"
	"io"
	"net/http"
)

// Artifact 暂存产物：原始文件或处理器产出的变体，保存前后的内容载体
type Artifact struct {
	Name     string            `json:"name"`
	MimeType string            `json:"mime_type"`
	Data     []byte            `json:"-"`
	Metadata map[string]string `json:"metadata,omitempty"` // 处理器可写入附加信息
}

// New 从字节创建 Artifact，mimeType 为空时自动嗅探
func New(name string, data []byte, mimeType string) *Artifact {
	if mimeType == "" && len(data) > 0 {
		mimeType = http.DetectContentType(data)
	}
	return &Artifact{
		Name:     name,
		MimeType: mimeType,
		Data:     data,
		Metadata: make(map[string]string),
	}
}

// FromReader 从 Reader 读入全部内容创建 Artifact
func FromReader(name string, r io.Reader, mimeType string) (*Artifact, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return New(name, data, mimeType), nil
}

// Size 内容字节数
func (a *Artifact) Size() int64 {
	return int64(len(a.Data))
}

// Reader 返回内容读取器
func (a *Artifact) Reader() io.Reader {
	return bytes.NewReader(a.Data)
}

// Clone 拷贝 Artifact（内容共享底层字节，元数据独立）
func (a *Artifact) Clone() *Artifact {
	meta := make(map[string]string, len(a.Metadata))
	for k, v := range a.Metadata {
		meta[k] = v
	}
	return &Artifact{
		Name:     a.Name,
		MimeType: a.MimeType,
		Data:     a.Data,
		Metadata: meta,
	}
}
