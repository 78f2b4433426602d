package model

import "encoding/json"

// Container describes a model container deployed by the docker control API.
type Container struct {
	ID           string                     `json:"id"`
	Name         string                     `json:"name"`
	ImageName    string                     `json:"image_name"`
	Status       string                     `json:"status"`
	Health       string                     `json:"health,omitempty"`
	ModelName    string                     `json:"model_name,omitempty"`
	PortBindings map[string]json.RawMessage `json:"port_bindings,omitempty"`
	Networks     map[string]json.RawMessage `json:"networks,omitempty"`
}
