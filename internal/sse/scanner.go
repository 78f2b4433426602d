// Package sse decodes text/event-stream response bodies.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Event is one dispatched Server-Sent Event.
type Event struct {
	ID   string
	Type string
	Data string
}

// Scanner reads events from a stream. Lines beginning with ":" are comments
// (heartbeats), a blank line dispatches the pending event, and multiple
// "data:" lines are joined with "\n".
type Scanner struct {
	reader  *bufio.Reader
	current Event
	lastID  string
	err     error
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next event. It returns false at end of stream or on
// error; Err distinguishes the two.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}

	var (
		data      []string
		eventType string
		hasData   bool
	)

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) && hasData {
				s.dispatch(eventType, data)
				s.err = io.EOF
				return true
			}
			s.err = err
			return false
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				s.dispatch(eventType, data)
				return true
			}
			eventType = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if ok {
			value = strings.TrimPrefix(value, " ")
		} else {
			field, value = line, ""
		}

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			eventType = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				s.lastID = value
			}
		}
	}
}

func (s *Scanner) dispatch(eventType string, data []string) {
	s.current = Event{
		ID:   s.lastID,
		Type: eventType,
		Data: strings.Join(data, "\n"),
	}
}

// Event returns the event read by the last successful call to Next.
func (s *Scanner) Event() Event {
	return s.current
}

// Err returns the error that stopped scanning, or nil on a clean end of stream.
func (s *Scanner) Err() error {
	if errors.Is(s.err, io.EOF) {
		return nil
	}
	return s.err
}
