package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tt-studio/console/internal/model"
)

type fakeLister struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (l *fakeLister) set(ids ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = ids
}

func (l *fakeLister) ListContainers(context.Context) ([]model.Container, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	out := make([]model.Container, len(l.ids))
	for i, id := range l.ids {
		out[i] = model.Container{ID: id}
	}
	return out, nil
}

type mapProber struct {
	mu     sync.Mutex
	status map[string]model.HealthStatus
}

func (p *mapProber) ModelHealth(_ context.Context, id string) (model.HealthStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.status[id]
	if !ok {
		return model.HealthUnknown, errors.New("no such model")
	}
	return s, nil
}

func TestSweeper_SyncsRegistry(t *testing.T) {
	lister := &fakeLister{}
	lister.set("a", "b")
	prober := &mapProber{status: map[string]model.HealthStatus{
		"a": model.HealthHealthy,
		"b": model.HealthUnavailable,
	}}
	registry := NewRegistry(0)
	s := NewSweeper(lister, NewChecker(prober, zerolog.Nop()), registry, time.Hour, zerolog.Nop())

	require.NoError(t, s.Sweep(context.Background()))
	assert.Equal(t, []string{"a", "b"}, registry.IDs())
	status, ok := s.Last("b")
	require.True(t, ok)
	assert.Equal(t, model.HealthUnavailable, status)

	lister.set("b")
	require.NoError(t, s.Sweep(context.Background()))
	assert.Equal(t, []string{"b"}, registry.IDs())
	_, ok = s.Last("a")
	assert.False(t, ok)
}

func TestSweeper_ReportsFailures(t *testing.T) {
	lister := &fakeLister{}
	lister.set("gone")
	s := NewSweeper(lister, NewChecker(&mapProber{}, zerolog.Nop()), NewRegistry(0), time.Hour, zerolog.Nop())

	err := s.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh gone")
	status, _ := s.Last("gone")
	assert.Equal(t, model.HealthUnknown, status)

	lister.err = errors.New("backend down")
	require.Error(t, s.Sweep(context.Background()))
}

func TestSweeper_RunStopsOnContext(t *testing.T) {
	lister := &fakeLister{}
	s := NewSweeper(lister, NewChecker(&mapProber{}, zerolog.Nop()), NewRegistry(0), time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, s.Run(ctx))
}
