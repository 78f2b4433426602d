package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, input string) ([]Event, error) {
	t.Helper()
	s := NewScanner(strings.NewReader(input))
	var events []Event
	for s.Next() {
		events = append(events, s.Event())
	}
	return events, s.Err()
}

func TestScanner_SingleDataEvents(t *testing.T) {
	events, err := collect(t, "data: {\"status\":\"running\"}\n\ndata: {\"status\":\"completed\"}\n\n")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, `{"status":"running"}`, events[0].Data)
	assert.Equal(t, `{"status":"completed"}`, events[1].Data)
}

func TestScanner_MultiLineDataAndType(t *testing.T) {
	events, err := collect(t, "event: progress\ndata: line one\ndata: line two\n\n")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "progress", events[0].Type)
	assert.Equal(t, "line one\nline two", events[0].Data)
}

func TestScanner_CommentsAndCRLF(t *testing.T) {
	events, err := collect(t, ": ping\r\n\r\ndata:x\r\n\r\n")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "x", events[0].Data)
}

func TestScanner_IDCarriesForward(t *testing.T) {
	events, err := collect(t, "id: 7\ndata: a\n\ndata: b\n\n")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "7", events[0].ID)
	assert.Equal(t, "7", events[1].ID)
}

func TestScanner_TrailingEventWithoutBlankLine(t *testing.T) {
	events, err := collect(t, "data: last")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "last", events[0].Data)
}

func TestScanner_EmptyStream(t *testing.T) {
	events, err := collect(t, "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestScanner_ReadError(t *testing.T) {
	s := NewScanner(io.MultiReader(strings.NewReader("data: a\n\n"), failingReader{}))
	require.True(t, s.Next())
	assert.Equal(t, "a", s.Event().Data)
	assert.False(t, s.Next())
	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "connection reset")
}
