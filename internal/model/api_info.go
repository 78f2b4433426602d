package model

import (
	"encoding/json"
	"time"
)

// ModelAPIInfo describes how to call a deployed model directly.
type ModelAPIInfo struct {
	DeployID       string            `json:"deploy_id,omitempty"`
	ModelName      string            `json:"model_name"`
	HFModelID      string            `json:"hf_model_id,omitempty"`
	BaseURL        string            `json:"base_url,omitempty"`
	JWTToken       string            `json:"jwt_token,omitempty"`
	Endpoints      map[string]string `json:"endpoints,omitempty"`
	ExamplePayload json.RawMessage   `json:"example_payload,omitempty"`
	Token          *TokenInfo        `json:"-"`
}

// TokenInfo is the decoded, unverified view of a model's JWT.
type TokenInfo struct {
	Subject   string
	Team      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token carries an expiry that has passed.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}
