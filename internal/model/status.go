package model

// DeploymentStatus is the status reported in a deployment progress snapshot.
type DeploymentStatus string

const (
	StatusQueued    DeploymentStatus = "queued"
	StatusRunning   DeploymentStatus = "running"
	StatusCompleted DeploymentStatus = "completed"
	StatusFailed    DeploymentStatus = "failed"
	StatusError     DeploymentStatus = "error"
	StatusCancelled DeploymentStatus = "cancelled"
)

// Terminal reports whether no further progress is expected after s.
func (s DeploymentStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Succeeded reports whether s is the successful terminal status.
func (s DeploymentStatus) Succeeded() bool {
	return s == StatusCompleted
}

// HealthStatus is the result of a model health check.
type HealthStatus string

const (
	HealthHealthy     HealthStatus = "healthy"
	HealthUnavailable HealthStatus = "unavailable"
	HealthUnhealthy   HealthStatus = "unhealthy"
	HealthUnknown     HealthStatus = "unknown"
)
