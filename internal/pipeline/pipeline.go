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

// Package pipeline 事件作用域的处理器链：按声明顺序依次喂入产物，
// 首个 Abort 立即短路，链内已产生的副作用由调用方负责清理。
package pipeline

import (
	"context"
	"strings"

	"attachment-platform/internal/artifact"
)

// Event 生命周期事件
type Event string

const (
	EventBeforeSave Event = "before_save"
	EventSave       Event = "save"
	EventDelete     Event = "delete"
	EventMove       Event = "move"
)

// Outcome 处理结果：Continue(产物) 或 Abort，二者封闭
type Outcome struct {
	art     *artifact.Artifact
	aborted bool
}

// Continue 继续，携带（可能被替换的）产物
func Continue(art *artifact.Artifact) Outcome {
	return Outcome{art: art}
}

// Abort 中止本次派发
func Abort() Outcome {
	return Outcome{aborted: true}
}

// Aborted 是否中止
func (o Outcome) Aborted() bool { return o.aborted }

// Artifact 结果产物；Aborted 时为 nil
func (o Outcome) Artifact() *artifact.Artifact { return o.art }

// Processor 处理器：校验或改写产物，通过 Abort 拒绝；不得以错误表达正常拒绝
type Processor interface {
	Name() string
	Handle(ctx context.Context, art *artifact.Artifact, event Event, opts artifact.Options) (Outcome, error)
}

// Descriptor 处理器登记项：作用事件 + 可选 MIME 谓词，登记顺序即执行顺序
type Descriptor struct {
	Processor Processor
	Events    []Event
	MimeTypes []string // 空表示全部；支持 image/* 形式的前缀匹配
}

// matches 事件与 MIME 是否命中；MIME 未知（空）时不应用谓词
func (d *Descriptor) matches(event Event, mimeType string) bool {
	found := false
	for _, e := range d.Events {
		if e == event {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if len(d.MimeTypes) == 0 || mimeType == "" {
		return true
	}
	for _, mt := range d.MimeTypes {
		if mt == mimeType {
			return true
		}
		if prefix, ok := strings.CutSuffix(mt, "/*"); ok && strings.HasPrefix(mimeType, prefix+"/") {
			return true
		}
	}
	return false
}

// Pipeline 有序处理器链
type Pipeline struct {
	descriptors []Descriptor
}

// New 创建空流水线
func New() *Pipeline {
	return &Pipeline{}
}

// Register 登记处理器，按调用顺序执行
func (p *Pipeline) Register(proc Processor, events []Event, mimeTypes ...string) {
	p.descriptors = append(p.descriptors, Descriptor{
		Processor: proc,
		Events:    events,
		MimeTypes: mimeTypes,
	})
}

// Dispatch 将产物按序喂入命中的处理器，每个处理器消费前一个的产出；
// 首个 Abort 立即返回。处理器错误原样向上传播。
func (p *Pipeline) Dispatch(ctx context.Context, art *artifact.Artifact, event Event, opts artifact.Options) (Outcome, error) {
	cur := art
	for i := range p.descriptors {
		d := &p.descriptors[i]
		if !d.matches(event, cur.MimeType) {
			continue
		}
		outcome, err := d.Processor.Handle(ctx, cur, event, opts)
		if err != nil {
			return Outcome{}, err
		}
		if outcome.Aborted() {
			return Abort(), nil
		}
		if outcome.Artifact() != nil {
			cur = outcome.Artifact()
		}
	}
	return Continue(cur), nil
}
