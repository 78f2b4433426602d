package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ProgressSnapshot is one observation of a deployment job's progress, as
// served by both the polling and the streaming progress endpoints.
type ProgressSnapshot struct {
	Status      DeploymentStatus `json:"status"`
	Stage       string           `json:"stage"`
	Progress    float64          `json:"progress"`
	Message     string           `json:"message"`
	LastUpdated *Timestamp       `json:"last_updated,omitempty"`
}

// Timestamp accepts either Unix seconds (integer or fractional) or an
// RFC 3339 string on decode and always encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed
				return nil
			}
		}
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			t.Time = fromUnixSeconds(secs)
			return nil
		}
		return fmt.Errorf("parse timestamp %q", s)
	}
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %s: %w", data, err)
	}
	t.Time = fromUnixSeconds(secs)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}

func fromUnixSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
