package model

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// InferenceRequest is sent to the streaming inference endpoint.
type InferenceRequest struct {
	DeployID    string        `json:"deploy_id"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
}

// InferenceStats is the trailer the backend appends after the stream marker.
type InferenceStats struct {
	UserTTFTSeconds float64 `json:"user_ttft_s"`
	UserTPOT        float64 `json:"user_tpot"`
	TokensDecoded   int     `json:"tokens_decoded"`
	TokensPrefilled int     `json:"tokens_prefilled"`
	ContextLength   int     `json:"context_length"`
}
