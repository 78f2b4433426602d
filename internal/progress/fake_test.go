package progress

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tt-studio/console/internal/model"
)

type pollResult struct {
	snap  model.ProgressSnapshot
	err   error
	delay time.Duration
}

// fakeSource scripts polling responses per job and hands out controllable
// streams.
type fakeSource struct {
	mu        sync.Mutex
	polls     map[string][]pollResult
	pollCalls map[string]int
	openErr   error
	streams   map[string]*fakeStream
	opens     int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		polls:     make(map[string][]pollResult),
		pollCalls: make(map[string]int),
		streams:   make(map[string]*fakeStream),
	}
}

func (f *fakeSource) script(jobID string, results ...pollResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[jobID] = results
}

func (f *fakeSource) calls(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollCalls[jobID]
}

func (f *fakeSource) DeployProgress(ctx context.Context, jobID string) (model.ProgressSnapshot, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	idx := f.pollCalls[jobID]
	f.pollCalls[jobID]++
	results := f.polls[jobID]
	f.mu.Unlock()

	if len(results) == 0 {
		return model.ProgressSnapshot{Status: model.StatusRunning}, nil
	}
	if idx >= len(results) {
		idx = len(results) - 1
	}
	r := results[idx]
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return model.ProgressSnapshot{}, ctx.Err()
		}
	}
	return r.snap, r.err
}

func (f *fakeSource) OpenProgressStream(ctx context.Context, jobID string) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	s, ok := f.streams[jobID]
	if !ok {
		s = newFakeStream()
		f.streams[jobID] = s
	}
	s.ctx = ctx
	return s, nil
}

func (f *fakeSource) stream(jobID string) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streams[jobID]
	if !ok {
		s = newFakeStream()
		f.streams[jobID] = s
	}
	return s
}

type streamItem struct {
	snap model.ProgressSnapshot
	err  error
}

type fakeStream struct {
	ctx    context.Context
	items  chan streamItem
	closed atomic.Bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{items: make(chan streamItem, 16)}
}

func (s *fakeStream) send(snap model.ProgressSnapshot) {
	s.items <- streamItem{snap: snap}
}

func (s *fakeStream) fail(err error) {
	s.items <- streamItem{err: err}
}

func (s *fakeStream) end() {
	s.items <- streamItem{err: io.EOF}
}

func (s *fakeStream) Next() (model.ProgressSnapshot, error) {
	select {
	case it := <-s.items:
		return it.snap, it.err
	case <-s.ctx.Done():
		return model.ProgressSnapshot{}, errors.New("stream closed: " + s.ctx.Err().Error())
	}
}

func (s *fakeStream) Close() error {
	s.closed.Store(true)
	return nil
}
