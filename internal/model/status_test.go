package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeploymentStatus_Terminal(t *testing.T) {
	tests := []struct {
		status   DeploymentStatus
		terminal bool
	}{
		{StatusQueued, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusError, true},
		{StatusCancelled, true},
		{DeploymentStatus(""), false},
		{DeploymentStatus("starting"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.Terminal())
		})
	}
}

func TestDeploymentStatus_Succeeded(t *testing.T) {
	assert.True(t, StatusCompleted.Succeeded())
	assert.False(t, StatusFailed.Succeeded())
	assert.False(t, StatusRunning.Succeeded())
}
