package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tt-studio/console/internal/model"
)

const (
	routeHealth    = "/models-api/health/"
	routeInference = "/models-api/inference/"
	routeAPIInfo   = "/models-api/api-info/"
)

// EndOfStreamMarker separates generated text from the stats trailer in an
// inference response.
const EndOfStreamMarker = "<<END_OF_STREAM>>"

// ModelHealth checks a deployed model. 200 maps to healthy and 503 to
// unavailable; any other status is unhealthy. Transport failures return
// HealthUnknown with the error.
func (c *Client) ModelHealth(ctx context.Context, deployID string) (model.HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.send(ctx, request{
		method: http.MethodGet,
		path:   routeHealth,
		route:  routeHealth,
		query:  url.Values{"deploy_id": {deployID}},
	})
	if err != nil {
		return model.HealthUnknown, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return model.HealthHealthy, nil
	case http.StatusServiceUnavailable:
		return model.HealthUnavailable, nil
	default:
		return model.HealthUnhealthy, nil
	}
}

// InferenceResult is the outcome of a completed inference stream.
type InferenceResult struct {
	Text  string
	Stats *model.InferenceStats
}

// Inference streams a chat completion. Text chunks are passed to onChunk as
// they arrive; the stats trailer after EndOfStreamMarker, when present, is
// decoded into the result.
func (c *Client) Inference(ctx context.Context, req model.InferenceRequest, onChunk func(string)) (InferenceResult, error) {
	body, err := c.stream(ctx, request{
		method: http.MethodPost,
		path:   routeInference,
		route:  routeInference,
		body:   req,
	})
	if err != nil {
		return InferenceResult{}, err
	}
	defer body.Close()

	var (
		text    strings.Builder
		trailer bytes.Buffer
		pending string
		ended   bool
	)
	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if ended {
				trailer.Write(buf[:n])
			} else {
				chunk := pending + string(buf[:n])
				pending = ""
				if idx := strings.Index(chunk, EndOfStreamMarker); idx >= 0 {
					emit(&text, onChunk, chunk[:idx])
					trailer.WriteString(chunk[idx+len(EndOfStreamMarker):])
					ended = true
				} else {
					// Hold back a suffix that could be the start of a split marker.
					keep := markerPrefixLen(chunk)
					emit(&text, onChunk, chunk[:len(chunk)-keep])
					pending = chunk[len(chunk)-keep:]
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return InferenceResult{Text: text.String()}, fmt.Errorf("read inference stream: %w", readErr)
		}
	}
	emit(&text, onChunk, pending)

	result := InferenceResult{Text: text.String()}
	if raw := bytes.TrimSpace(trailer.Bytes()); len(raw) > 0 {
		var stats model.InferenceStats
		if err := json.Unmarshal(raw, &stats); err == nil {
			result.Stats = &stats
		}
	}
	return result, nil
}

func emit(text *strings.Builder, onChunk func(string), s string) {
	if s == "" {
		return
	}
	text.WriteString(s)
	if onChunk != nil {
		onChunk(s)
	}
}

// markerPrefixLen returns the length of the longest suffix of s that is a
// proper prefix of EndOfStreamMarker.
func markerPrefixLen(s string) int {
	limit := len(EndOfStreamMarker) - 1
	if len(s) < limit {
		limit = len(s)
	}
	for n := limit; n > 0; n-- {
		if strings.HasSuffix(s, EndOfStreamMarker[:n]) {
			return n
		}
	}
	return 0
}

// APIInfo returns connection details for every deployed model, keyed by
// deploy id. JWTs are decoded without verification so expiry can be shown.
func (c *Client) APIInfo(ctx context.Context) (map[string]model.ModelAPIInfo, error) {
	var info map[string]model.ModelAPIInfo
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   routeAPIInfo,
		route:  routeAPIInfo,
	}, &info); err != nil {
		return nil, err
	}
	for id, entry := range info {
		entry.DeployID = id
		if entry.JWTToken != "" {
			if tok, err := ParseTokenInfo(entry.JWTToken); err == nil {
				entry.Token = &tok
			}
		}
		info[id] = entry
	}
	return info, nil
}

// ParseTokenInfo reads the registered claims of a model JWT without
// verifying its signature. The console never holds the signing secret.
func ParseTokenInfo(token string) (model.TokenInfo, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return model.TokenInfo{}, fmt.Errorf("parse model token: %w", err)
	}

	var info model.TokenInfo
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if team, ok := claims["team_id"].(string); ok {
		info.Team = team
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
