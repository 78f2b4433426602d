package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tt-studio/console/internal/studio"
)

// ErrorBody is the console's error envelope. JobID is set when the failure
// concerns a known deployment job.
type ErrorBody struct {
	Error string `json:"error"`
	JobID string `json:"job_id,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorBody{Error: message})
}

// WriteJobError reports a failure tied to jobID.
func WriteJobError(w http.ResponseWriter, status int, jobID, message string) {
	WriteJSON(w, status, ErrorBody{Error: message, JobID: jobID})
}

// WriteBackendError reports a failed studio backend call as 502. The job id
// from the backend's error body is passed through.
func WriteBackendError(w http.ResponseWriter, err error) {
	body := ErrorBody{Error: err.Error()}
	var apiErr *studio.APIError
	if errors.As(err, &apiErr) {
		body.JobID = apiErr.JobID
	}
	WriteJSON(w, http.StatusBadGateway, body)
}

// ListResponse wraps a collection with its size.
type ListResponse struct {
	Items any `json:"items"`
	Count int `json:"count"`
}

// WriteList writes items as a ListResponse. A nil slice is written as [].
func WriteList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	WriteJSON(w, http.StatusOK, ListResponse{Items: items, Count: len(items)})
}
