package processors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attachment-platform/internal/artifact"
	"attachment-platform/internal/pipeline"
)

func TestMaxSize(t *testing.T) {
	proc := NewMaxSize(4)

	outcome, err := proc.Handle(context.Background(), artifact.New("small", []byte{1, 2}, ""), pipeline.EventBeforeSave, nil)
	require.NoError(t, err)
	assert.False(t, outcome.Aborted())

	outcome, err = proc.Handle(context.Background(), artifact.New("big", []byte{1, 2, 3, 4, 5}, ""), pipeline.EventBeforeSave, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Aborted())
}

func TestMaxSize_Disabled(t *testing.T) {
	proc := NewMaxSize(0)
	outcome, err := proc.Handle(context.Background(), artifact.New("any", make([]byte, 1<<20), ""), pipeline.EventBeforeSave, nil)
	require.NoError(t, err)
	assert.False(t, outcome.Aborted())
}

func TestPDFValidate_Garbage(t *testing.T) {
	proc := NewPDFValidate()
	outcome, err := proc.Handle(context.Background(),
		artifact.New("bad.pdf", []byte("not a pdf at all"), "application/pdf"), pipeline.EventBeforeSave, nil)
	require.NoError(t, err)
	assert.True(t, outcome.Aborted(), "解析失败应 Abort 而非报错")
}
