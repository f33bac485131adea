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
	"sort"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/storage/record"
	"attachment-platform/pkg/errors"
	"attachment-platform/pkg/metrics"
)

// SlotOperation 批量槽位操作。零值表示删除该槽位占用者；
// RecordID 非空表示把既有记录移入槽位；否则 URI 非空表示抓取后存入。
type SlotOperation struct {
	RecordID string
	URI      string
}

func (op SlotOperation) isDelete() bool {
	return op.RecordID == "" && op.URI == ""
}

// Batch 在单个属主作用域内应用一组槽位操作与上传。
// 顺序固定：先按槽位键升序应用 ops，再按槽位键升序应用 uploads。
// 抓取失败或保存被处理器拒绝时，腾空目标槽位占用者后重试恰好一次；
// 第二次仍被拒绝则跳过该槽位，第二次抓取失败则向上传播。
func (o *Orchestrator) Batch(ctx context.Context, ops map[string]SlotOperation, uploads map[string]*artifact.Artifact, owner *record.Owner) error {
	for _, slot := range sortedSlots(ops) {
		op := ops[slot]
		switch {
		case op.isDelete():
			metrics.BatchOpTotal.WithLabelValues("delete").Inc()
			if err := o.DeleteBySlot(ctx, slot, owner, nil); err != nil {
				return err
			}
		case op.RecordID != "":
			metrics.BatchOpTotal.WithLabelValues("move").Inc()
			rec, err := o.records.Get(ctx, op.RecordID)
			if err != nil {
				return err
			}
			if _, err := o.MoveToSlot(ctx, rec, slot); err != nil {
				return err
			}
		default:
			if o.fetcher == nil {
				return errors.Wrap(errors.ErrInvalidArg, "未配置抓取器")
			}
			metrics.BatchOpTotal.WithLabelValues("import").Inc()
			err := o.saveIntoSlotWithRetry(ctx, slot, owner, func() (*artifact.Artifact, error) {
				data, err := o.fetcher.Fetch(ctx, op.URI)
				if err != nil {
					return nil, err
				}
				return artifact.New(slot, data, ""), nil
			})
			if err != nil {
				return err
			}
		}
	}

	for _, slot := range sortedUploads(uploads) {
		art := uploads[slot]
		metrics.BatchOpTotal.WithLabelValues("upload").Inc()
		err := o.saveIntoSlotWithRetry(ctx, slot, owner, func() (*artifact.Artifact, error) {
			return art.Clone(), nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// saveIntoSlotWithRetry 抓取/保存失败时腾空占用者重试一次。
// Abort 在内部记为 errors.ErrAborted 以驱动重试计数，绝不向调用方暴露。
func (o *Orchestrator) saveIntoSlotWithRetry(ctx context.Context, slot string, owner *record.Owner, produce func() (*artifact.Artifact, error)) error {
	err := o.saveIntoSlot(ctx, slot, owner, produce)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errors.ErrFetchFailed) && !errors.Is(err, errors.ErrAborted) {
		return err
	}

	if occupant, gerr := o.records.GetBySlot(ctx, slot, owner); gerr == nil && occupant != nil {
		if aerr := o.records.AssignSlot(ctx, occupant.ID, nil); aerr != nil {
			return aerr
		}
	}
	metrics.BatchRetryTotal.Inc()
	o.logger.Debug("槽位操作重试", "slot", slot)

	err = o.saveIntoSlot(ctx, slot, owner, produce)
	if errors.Is(err, errors.ErrAborted) {
		return nil
	}
	return err
}

func (o *Orchestrator) saveIntoSlot(ctx context.Context, slot string, owner *record.Owner, produce func() (*artifact.Artifact, error)) error {
	art, err := produce()
	if err != nil {
		return err
	}
	rec, err := o.SaveFromArtifact(ctx, art, SaveOptions{Owner: owner, Slot: slot})
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.ErrAborted
	}
	return nil
}

func sortedSlots(ops map[string]SlotOperation) []string {
	slots := make([]string, 0, len(ops))
	for slot := range ops {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

func sortedUploads(uploads map[string]*artifact.Artifact) []string {
	slots := make([]string, 0, len(uploads))
	for slot := range uploads {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}
