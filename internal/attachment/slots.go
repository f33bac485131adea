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

package attachment

import (
	"context"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/pipeline"
	"attachment-platform/internal/storage/record"
	"attachment-platform/pkg/errors"
	"attachment-platform/pkg/metrics"
)

// MoveToSlot 将记录挂载到目标槽位。移动事件 Abort 时整体空操作，返回 (nil, nil)。
// 目标被占用时执行换位：占用者先腾空，记录入位，占用者再落入记录原先的槽位
// （记录原先未挂载时占用者保持未挂载）。同一属主作用域内任意时刻每个槽位至多
// 一个占用者。
func (o *Orchestrator) MoveToSlot(ctx context.Context, rec *record.FileRecord, slot string) (*record.FileRecord, error) {
	if rec == nil || slot == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "记录或槽位为空")
	}

	probe := &artifact.Artifact{Name: rec.ID, MimeType: rec.MimeType, Metadata: map[string]string{"slot": slot}}
	outcome, err := o.pipeline.Dispatch(ctx, probe, pipeline.EventMove, nil)
	if err != nil {
		return nil, err
	}
	if outcome.Aborted() {
		metrics.MoveTotal.WithLabelValues("aborted").Inc()
		o.logger.Debug("移动被处理器拒绝", "id", rec.ID, "slot", slot)
		return nil, nil
	}

	prevSlot := rec.Slot

	err = o.records.AssignSlot(ctx, rec.ID, &slot)
	if err == nil {
		metrics.MoveTotal.WithLabelValues("direct").Inc()
		return o.records.Get(ctx, rec.ID)
	}
	if !errors.Is(err, errors.ErrSlotOccupied) {
		return nil, err
	}

	occupant, err := o.records.GetBySlot(ctx, slot, rec.Owner())
	if err != nil {
		return nil, err
	}
	if occupant == nil {
		// 冲突与查询之间占用者已消失，直接再入位
		if err := o.records.AssignSlot(ctx, rec.ID, &slot); err != nil {
			return nil, err
		}
		metrics.MoveTotal.WithLabelValues("direct").Inc()
		return o.records.Get(ctx, rec.ID)
	}

	// 换位三步：腾空占用者，记录入位，占用者落入记录原槽位
	if err := o.records.AssignSlot(ctx, occupant.ID, nil); err != nil {
		return nil, err
	}
	if err := o.records.AssignSlot(ctx, rec.ID, &slot); err != nil {
		return nil, err
	}
	if prevSlot != nil {
		if err := o.records.AssignSlot(ctx, occupant.ID, prevSlot); err != nil {
			return nil, err
		}
	}

	metrics.MoveTotal.WithLabelValues("swap").Inc()
	o.logger.Info("槽位换位完成", "id", rec.ID, "slot", slot, "displaced", occupant.ID)
	return o.records.Get(ctx, rec.ID)
}
