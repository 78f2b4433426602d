package model

import "time"

// DeployRequest starts a model deployment on the board.
type DeployRequest struct {
	ModelID   string `json:"model_id"`
	WeightsID string `json:"weights_id"`
}

// DeployResponse is the body returned by the deploy endpoint. JobID is empty
// when the backend completed the deployment synchronously.
type DeployResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// Rejected reports whether the body carries an explicit error status.
func (r DeployResponse) Rejected() bool {
	return r.Status == "error" || r.Status == string(StatusFailed)
}

// DeploymentRecord is a locally persisted deployment attempt.
type DeploymentRecord struct {
	JobID     string    `json:"job_id"`
	ModelID   string    `json:"model_id"`
	WeightsID string    `json:"weights_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
