package attachment

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/pipeline"
	"attachment-platform/internal/storage/driver"
	"attachment-platform/internal/storage/record"
	"attachment-platform/pkg/errors"
)

// testProc 可编程处理器
type testProc struct {
	name string
	fn   func(art *artifact.Artifact, event pipeline.Event, opts artifact.Options) (pipeline.Outcome, error)
}

func (p *testProc) Name() string { return p.name }

func (p *testProc) Handle(ctx context.Context, art *artifact.Artifact, event pipeline.Event, opts artifact.Options) (pipeline.Outcome, error) {
	if p.fn != nil {
		return p.fn(art, event, opts)
	}
	return pipeline.Continue(art), nil
}

// countingDriver 统计每个变体位的 SaveFile 次数
type countingDriver struct {
	driver.Driver
	mu    sync.Mutex
	saves map[string]int
}

func newCountingDriver() *countingDriver {
	return &countingDriver{Driver: driver.NewMemoryDriver(), saves: make(map[string]int)}
}

func (d *countingDriver) SaveFile(ctx context.Context, art *artifact.Artifact, rec *record.FileRecord, opts artifact.Options) error {
	d.mu.Lock()
	d.saves[rec.ID+"/"+artifact.VariantKey(opts)]++
	d.mu.Unlock()
	return d.Driver.SaveFile(ctx, art, rec, opts)
}

func (d *countingDriver) totalSaves() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.saves {
		n += c
	}
	return n
}

// fakeFetcher 前 failures 次调用失败
type fakeFetcher struct {
	data     []byte
	failures int
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.Wrap(errors.ErrFetchFailed, "boom")
	}
	return f.data, nil
}

type testEnv struct {
	orch    *Orchestrator
	records record.Store
	drv     *countingDriver
	pl      *pipeline.Pipeline
	fetcher *fakeFetcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	drv := newCountingDriver()
	reg, err := driver.NewRegistryOf(map[string]driver.Driver{"mem": drv}, "mem")
	require.NoError(t, err)

	records := record.NewMemoryStore()
	pl := pipeline.New()
	fetcher := &fakeFetcher{data: []byte("fetched-bytes")}

	orch, err := New(Deps{
		Records:  records,
		Drivers:  reg,
		Pipeline: pl,
		Fetcher:  fetcher,
	})
	require.NoError(t, err)
	return &testEnv{orch: orch, records: records, drv: drv, pl: pl, fetcher: fetcher}
}

var testOwner = &record.Owner{Type: "note", ID: "n-1"}

// assertSlotUniqueness 属主作用域内每个槽位至多一个占用者
func assertSlotUniqueness(t *testing.T, records record.Store, owner *record.Owner) {
	t.Helper()
	recs, err := records.List(context.Background(), &record.Filter{Owner: owner})
	require.NoError(t, err)
	seen := map[string]string{}
	for _, r := range recs {
		if r.Slot == nil {
			continue
		}
		if prev, dup := seen[*r.Slot]; dup {
			t.Fatalf("slot %q occupied by both %s and %s", *r.Slot, prev, r.ID)
		}
		seen[*r.Slot] = r.ID
	}
}

func TestNew_NoDriver(t *testing.T) {
	reg, err := driver.NewRegistryOf(nil, "")
	require.NoError(t, err)
	_, err = New(Deps{Records: record.NewMemoryStore(), Drivers: reg})
	assert.ErrorIs(t, err, errors.ErrNoDriver)
}

func TestSaveFromArtifact_CreatesRecordAndOriginal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("data"), "image/png"), SaveOptions{
		Owner:      testOwner,
		Attributes: map[string]string{"source": "test"},
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "image/png", rec.MimeType)
	assert.Nil(t, rec.Slot)
	assert.Equal(t, "test", rec.Attributes["source"])

	stored, err := env.records.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, testOwner, stored.Owner())

	has, err := env.drv.Has(ctx, rec, nil)
	require.NoError(t, err)
	assert.True(t, has, "原件应已物化")
}

func TestSaveFromArtifact_AbortContainment(t *testing.T) {
	env := newTestEnv(t)
	env.pl.Register(&testProc{name: "reject", fn: func(art *artifact.Artifact, event pipeline.Event, opts artifact.Options) (pipeline.Outcome, error) {
		return pipeline.Abort(), nil
	}}, []pipeline.Event{pipeline.EventBeforeSave})
	ctx := context.Background()

	rec, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("data"), "image/png"), SaveOptions{Owner: testOwner})
	require.NoError(t, err)
	assert.Nil(t, rec, "Abort 观察为零值结果")

	recs, err := env.records.List(ctx, &record.Filter{Owner: testOwner})
	require.NoError(t, err)
	assert.Empty(t, recs, "不应落任何记录")
	assert.Equal(t, 0, env.drv.totalSaves(), "不应落任何文件")
}

func TestSaveFromArtifact_IntoOccupiedSlot_Displaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("one"), "image/png"), SaveOptions{Owner: testOwner, Slot: "cover"})
	require.NoError(t, err)
	require.NotNil(t, first.Slot)

	second, err := env.orch.SaveFromArtifact(ctx, artifact.New("b.png", []byte("two"), "image/png"), SaveOptions{Owner: testOwner, Slot: "cover"})
	require.NoError(t, err)
	require.NotNil(t, second.Slot)
	assert.Equal(t, "cover", *second.Slot)

	displaced, err := env.records.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Nil(t, displaced.Slot, "先前占用者应被挤成未挂载")
	assertSlotUniqueness(t, env.records, testOwner)

	// 再保存一次，结果仍然确定：新记录入位，上一个被挤出
	third, err := env.orch.SaveFromArtifact(ctx, artifact.New("c.png", []byte("three"), "image/png"), SaveOptions{Owner: testOwner, Slot: "cover"})
	require.NoError(t, err)
	occupant, err := env.records.GetBySlot(ctx, "cover", testOwner)
	require.NoError(t, err)
	assert.Equal(t, third.ID, occupant.ID)
	assertSlotUniqueness(t, env.records, testOwner)
}

func TestSaveFromArtifact_SaveEventProducesDefaultVariant(t *testing.T) {
	env := newTestEnv(t)
	env.pl.Register(&testProc{name: "thumb", fn: func(art *artifact.Artifact, event pipeline.Event, opts artifact.Options) (pipeline.Outcome, error) {
		out := art.Clone()
		out.Data = []byte("thumb")
		return pipeline.Continue(out), nil
	}}, []pipeline.Event{pipeline.EventSave})
	ctx := context.Background()

	variant := artifact.Options{"resize": "64x64"}
	rec, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("data"), "image/png"), SaveOptions{Owner: testOwner, Variant: variant})
	require.NoError(t, err)

	has, err := env.drv.Has(ctx, rec, variant)
	require.NoError(t, err)
	assert.True(t, has, "保存事件的产出应落为默认变体")
	has, err = env.drv.Has(ctx, rec, nil)
	require.NoError(t, err)
	assert.True(t, has, "原件保持有效")
}

func TestSaveFromURI(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.orch.SaveFromURI(ctx, "http://files.example.com/pic.png", SaveOptions{Owner: testOwner})
	require.NoError(t, err)
	require.NotNil(t, rec)

	orig, err := env.drv.TempOriginal(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, []byte("fetched-bytes"), orig.Data)
}

func TestSaveFromURI_FetchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.fetcher.failures = 99

	_, err := env.orch.SaveFromURI(context.Background(), "http://files.example.com/pic.png", SaveOptions{Owner: testOwner})
	assert.ErrorIs(t, err, errors.ErrFetchFailed)
}

func TestPublicURI_LazyMaterializeOnce(t *testing.T) {
	env := newTestEnv(t)
	dispatched := 0
	env.pl.Register(&testProc{name: "resize", fn: func(art *artifact.Artifact, event pipeline.Event, opts artifact.Options) (pipeline.Outcome, error) {
		dispatched++
		out := art.Clone()
		out.Data = []byte("resized")
		return pipeline.Continue(out), nil
	}}, []pipeline.Event{pipeline.EventSave})
	ctx := context.Background()

	rec, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("data"), "image/png"), SaveOptions{Owner: testOwner})
	require.NoError(t, err)
	savesAfterCreate := env.drv.totalSaves()
	dispatched = 0

	variant := artifact.Options{"resize": "100x100"}
	uri1, err := env.orch.PublicURI(ctx, rec, variant)
	require.NoError(t, err)
	require.NotEmpty(t, uri1)
	assert.Equal(t, 1, dispatched, "首次访问应物化")
	assert.Equal(t, savesAfterCreate+1, env.drv.totalSaves())

	uri2, err := env.orch.PublicURI(ctx, rec, variant)
	require.NoError(t, err)
	assert.Equal(t, uri1, uri2)
	assert.Equal(t, 1, dispatched, "第二次访问不应重新物化")
	assert.Equal(t, savesAfterCreate+1, env.drv.totalSaves(), "SaveFile 只应发生一次")
}

func TestPublicURI_OriginalMissing(t *testing.T) {
	env := newTestEnv(t)
	rec := &record.FileRecord{ID: "ghost", MimeType: "image/png"}
	_, err := env.orch.PublicURI(context.Background(), rec, nil)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPublicURI_MaterializeAbort(t *testing.T) {
	env := newTestEnv(t)
	env.pl.Register(&testProc{name: "reject", fn: func(art *artifact.Artifact, event pipeline.Event, opts artifact.Options) (pipeline.Outcome, error) {
		if len(opts) > 0 {
			return pipeline.Abort(), nil
		}
		return pipeline.Continue(art), nil
	}}, []pipeline.Event{pipeline.EventSave})
	ctx := context.Background()

	rec, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("data"), "image/png"), SaveOptions{Owner: testOwner})
	require.NoError(t, err)

	uri, err := env.orch.PublicURI(ctx, rec, artifact.Options{"resize": "1x1"})
	require.NoError(t, err)
	assert.Empty(t, uri, "物化被拒绝时观察为零值")
}

func TestDelete_DestroysRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("data"), "image/png"), SaveOptions{Owner: testOwner})
	require.NoError(t, err)

	require.NoError(t, env.orch.Delete(ctx, rec, nil))

	_, err = env.records.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	has, _ := env.drv.Has(ctx, rec, nil)
	assert.False(t, has)
}

func TestDelete_VariantOnly_KeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("data"), "image/png"), SaveOptions{Owner: testOwner})
	require.NoError(t, err)

	variant := artifact.Options{"resize": "64x64", env.drv.ModificationKey(): "resize"}
	require.NoError(t, env.drv.SaveFile(ctx, artifact.New("v", []byte("v"), "image/png"), rec, variant))

	require.NoError(t, env.orch.Delete(ctx, rec, variant))

	_, err = env.records.Get(ctx, rec.ID)
	assert.NoError(t, err, "带修改键的删除只清变体，记录保留")
	has, _ := env.drv.Has(ctx, rec, nil)
	assert.True(t, has, "原件保留")
	has, _ = env.drv.Has(ctx, rec, variant)
	assert.False(t, has)
}

func TestDelete_AbortNoOp(t *testing.T) {
	env := newTestEnv(t)
	env.pl.Register(&testProc{name: "keep", fn: func(art *artifact.Artifact, event pipeline.Event, opts artifact.Options) (pipeline.Outcome, error) {
		return pipeline.Abort(), nil
	}}, []pipeline.Event{pipeline.EventDelete})
	ctx := context.Background()

	rec, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("data"), "image/png"), SaveOptions{Owner: testOwner})
	require.NoError(t, err)

	require.NoError(t, env.orch.Delete(ctx, rec, nil))

	_, err = env.records.Get(ctx, rec.ID)
	assert.NoError(t, err, "删除被拒绝时记录保留")
	has, _ := env.drv.Has(ctx, rec, nil)
	assert.True(t, has)
}

func TestUseDriver(t *testing.T) {
	env := newTestEnv(t)
	bound, err := env.orch.UseDriver("mem")
	require.NoError(t, err)
	assert.NotNil(t, bound)

	_, err = env.orch.UseDriver("nope")
	assert.ErrorIs(t, err, errors.ErrNoDriver)
}

func TestGetFilesFor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("one"), "image/png"), SaveOptions{Owner: testOwner})
	require.NoError(t, err)
	_, err = env.orch.SaveFromArtifact(ctx, artifact.New("b.png", []byte("two"), "image/png"), SaveOptions{Owner: testOwner, Slot: "cover"})
	require.NoError(t, err)
	_, err = env.orch.SaveFromArtifact(ctx, artifact.New("d.pdf", []byte("four"), "application/pdf"), SaveOptions{Owner: testOwner})
	require.NoError(t, err)
	_, err = env.orch.SaveFromArtifact(ctx, artifact.New("c.png", []byte("three"), "image/png"), SaveOptions{Owner: &record.Owner{Type: "note", ID: "other"}})
	require.NoError(t, err)

	recs, err := env.orch.GetFilesFor(ctx, testOwner, nil, nil)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestGetFilesFor_Filters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.orch.SaveFromArtifact(ctx, artifact.New("a.png", []byte("one"), "image/png"), SaveOptions{Owner: testOwner})
	require.NoError(t, err)
	inSlot, err := env.orch.SaveFromArtifact(ctx, artifact.New("b.png", []byte("two"), "image/png"), SaveOptions{Owner: testOwner, Slot: "cover"})
	require.NoError(t, err)
	pdf, err := env.orch.SaveFromArtifact(ctx, artifact.New("d.pdf", []byte("four"), "application/pdf"), SaveOptions{Owner: testOwner})
	require.NoError(t, err)

	recs, err := env.orch.GetFilesFor(ctx, testOwner, []string{"application/pdf"}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, pdf.ID, recs[0].ID)

	recs, err = env.orch.GetFilesFor(ctx, testOwner, nil, []string{"cover"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, inSlot.ID, recs[0].ID)

	// MIME 与槽位同时给出时取交集
	recs, err = env.orch.GetFilesFor(ctx, testOwner, []string{"application/pdf"}, []string{"cover"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}
