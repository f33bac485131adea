package attachment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/pipeline"
	"attachment-platform/pkg/errors"
)

func TestBatch_MixedOps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	old := saveInSlot(t, env, "old", "a")
	loose := saveUnattached(t, env, "loose")

	err := env.orch.Batch(ctx,
		map[string]SlotOperation{
			"a": {},                   // 删除 a 的占用者
			"b": {RecordID: loose.ID}, // 既有记录移入 b
			"c": {URI: "http://files.example.com/c.png"},
		},
		map[string]*artifact.Artifact{
			"d": artifact.New("d.png", []byte("upload"), "image/png"),
		},
		testOwner)
	require.NoError(t, err)

	_, err = env.records.Get(ctx, old.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound, "删除操作销毁占用者")

	occB, err := env.records.GetBySlot(ctx, "b", testOwner)
	require.NoError(t, err)
	require.NotNil(t, occB)
	assert.Equal(t, loose.ID, occB.ID)

	occC, err := env.records.GetBySlot(ctx, "c", testOwner)
	require.NoError(t, err)
	require.NotNil(t, occC, "URI 导入应占据槽位")

	occD, err := env.records.GetBySlot(ctx, "d", testOwner)
	require.NoError(t, err)
	require.NotNil(t, occD, "上传应占据槽位")

	assertSlotUniqueness(t, env.records, testOwner)
}

func TestBatch_OpsBeforeUploads(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rec := saveInSlot(t, env, "old", "s")

	// 同一槽位先被槽位操作清空，再被上传占据
	err := env.orch.Batch(ctx,
		map[string]SlotOperation{"s": {}},
		map[string]*artifact.Artifact{"s": artifact.New("new.png", []byte("new"), "image/png")},
		testOwner)
	require.NoError(t, err)

	occ, err := env.records.GetBySlot(ctx, "s", testOwner)
	require.NoError(t, err)
	require.NotNil(t, occ)
	assert.NotEqual(t, rec.ID, occ.ID)
	assertSlotUniqueness(t, env.records, testOwner)
}

func TestBatch_DeleteEmptySlot(t *testing.T) {
	env := newTestEnv(t)
	err := env.orch.Batch(context.Background(), map[string]SlotOperation{"empty": {}}, nil, testOwner)
	assert.NoError(t, err, "空槽位的删除是空操作")
}

func TestBatch_ImportRetryAfterFetchFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	occupant := saveInSlot(t, env, "old", "s")
	env.fetcher.failures = 1 // 第一次抓取失败，重试成功

	err := env.orch.Batch(ctx, map[string]SlotOperation{
		"s": {URI: "http://files.example.com/x.png"},
	}, nil, testOwner)
	require.NoError(t, err)

	occ, err := env.records.GetBySlot(ctx, "s", testOwner)
	require.NoError(t, err)
	require.NotNil(t, occ)
	assert.NotEqual(t, occupant.ID, occ.ID, "重试成功后新记录入位")

	evicted, err := env.records.Get(ctx, occupant.ID)
	require.NoError(t, err)
	assert.Nil(t, evicted.Slot, "原占用者在重试前被腾空")
	assertSlotUniqueness(t, env.records, testOwner)
}

func TestBatch_ImportSecondFetchFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.failures = 2

	err := env.orch.Batch(context.Background(), map[string]SlotOperation{
		"s": {URI: "http://files.example.com/x.png"},
	}, nil, testOwner)
	assert.ErrorIs(t, err, errors.ErrFetchFailed)
	assert.Equal(t, 2, env.fetcher.calls, "重试恰好一次")
}

func TestBatch_UploadAbortedTwice_SkipsSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	occupant := saveInSlot(t, env, "old", "s")

	env.pl.Register(&testProc{name: "reject", fn: func(art *artifact.Artifact, event pipeline.Event, opts artifact.Options) (pipeline.Outcome, error) {
		return pipeline.Abort(), nil
	}}, []pipeline.Event{pipeline.EventBeforeSave})

	err := env.orch.Batch(ctx, nil, map[string]*artifact.Artifact{
		"s": artifact.New("new.png", []byte("new"), "image/png"),
	}, testOwner)
	require.NoError(t, err, "两次被拒绝时跳过该槽位而非报错")

	occ, err := env.records.GetBySlot(ctx, "s", testOwner)
	require.NoError(t, err)
	assert.Nil(t, occ, "占用者已在重试前被腾空，槽位留空")

	evicted, err := env.records.Get(ctx, occupant.ID)
	require.NoError(t, err)
	assert.Nil(t, evicted.Slot)
}

func TestBatch_MovePriorityOverURI(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	loose := saveUnattached(t, env, "loose")

	err := env.orch.Batch(ctx, map[string]SlotOperation{
		"s": {RecordID: loose.ID, URI: "http://files.example.com/ignored.png"},
	}, nil, testOwner)
	require.NoError(t, err)

	occ, err := env.records.GetBySlot(ctx, "s", testOwner)
	require.NoError(t, err)
	require.NotNil(t, occ)
	assert.Equal(t, loose.ID, occ.ID)
	assert.Equal(t, 0, env.fetcher.calls, "RecordID 优先，URI 被忽略")
}
