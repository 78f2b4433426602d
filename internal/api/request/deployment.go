package request

import "github.com/tt-studio/console/internal/model"

// Deploy is the body of POST /deployments.
type Deploy struct {
	ModelID   string `json:"model_id" validate:"required,studio_id"`
	WeightsID string `json:"weights_id" validate:"omitempty,max=256"`
}

func (d Deploy) Model() model.DeployRequest {
	return model.DeployRequest{ModelID: d.ModelID, WeightsID: d.WeightsID}
}
