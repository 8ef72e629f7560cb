package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/docparse"
	"docintel/internal/model"
)

type blockingParser struct {
	release chan struct{}
}

func (p *blockingParser) Route(ctx context.Context, _, _ string) (docparse.ParsedDoc, docparse.Pipeline, error) {
	select {
	case <-p.release:
	case <-ctx.Done():
		return docparse.ParsedDoc{}, docparse.PipelineTextOnly, ctx.Err()
	}
	return docparse.ParsedDoc{Pages: []model.Page{{PageNumber: 1}}}, docparse.PipelineTextOnly, nil
}

func TestQueueSubmitAndProcess(t *testing.T) {
	parser := &fakeParser{pipeline: docparse.PipelineTextOnly, doc: docparse.ParsedDoc{Pages: []model.Page{{PageNumber: 1}}}}
	proc := NewProcessor(parser, &fakeEncoder{}, &fakeVectorStore{}, newFakeAssetStore(), &fakeChunkIndexer{}, newFakeDocumentStore(), nil, nil)
	q := NewQueue(proc, 2, 10)
	defer q.Close()

	require.NoError(t, q.Submit(WorkItem{JobID: "j1", DocID: "d1", Filename: "a.docx"}))
	require.NoError(t, q.Submit(WorkItem{JobID: "j2", DocID: "d2", Filename: "b.docx"}))

	deadline := time.After(2 * time.Second)
	for q.Depth() > 0 {
		select {
		case <-deadline:
			t.Fatal("jobs did not drain in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestQueueSubmitRejectsWhenFull(t *testing.T) {
	release := make(chan struct{})
	parser := &blockingParser{release: release}
	proc := NewProcessor(parser, &fakeEncoder{}, &fakeVectorStore{}, newFakeAssetStore(), &fakeChunkIndexer{}, newFakeDocumentStore(), nil, nil)
	q := NewQueue(proc, 1, 1)
	defer func() {
		close(release)
		q.Close()
	}()

	require.NoError(t, q.Submit(WorkItem{JobID: "j1", DocID: "d1", Filename: "a.docx"}))
	require.NoError(t, q.Submit(WorkItem{JobID: "j2", DocID: "d2", Filename: "b.docx"}))
	err := q.Submit(WorkItem{JobID: "j3", DocID: "d3", Filename: "c.docx"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueCancelSetsToken(t *testing.T) {
	release := make(chan struct{})
	parser := &blockingParser{release: release}
	proc := NewProcessor(parser, &fakeEncoder{}, &fakeVectorStore{}, newFakeAssetStore(), &fakeChunkIndexer{}, newFakeDocumentStore(), nil, nil)
	q := NewQueue(proc, 1, 4)
	defer func() {
		close(release)
		q.Close()
	}()

	tok := &CancelToken{}
	require.NoError(t, q.Submit(WorkItem{JobID: "j1", DocID: "d1", Filename: "a.docx", Cancel: tok}))

	ok := q.Cancel("j1")
	assert.True(t, ok)
	assert.True(t, tok.Cancelled())

	assert.False(t, q.Cancel("unknown-job"))
}
