package model

// BoardStatus is the hardware snapshot shown in the console footer.
type BoardStatus struct {
	BoardName    string         `json:"board_name"`
	BoardType    string         `json:"board_type,omitempty"`
	CPUUsage     float64        `json:"cpu_usage"`
	MemoryUsage  float64        `json:"memory_usage"`
	MemoryTotal  string         `json:"memory_total,omitempty"`
	Temperature  float64        `json:"temperature,omitempty"`
	DeviceStatus string         `json:"device_status,omitempty"`
	Devices      []DeviceStatus `json:"devices,omitempty"`
}

// DeviceStatus reports the health of a single accelerator card.
type DeviceStatus struct {
	Index       int     `json:"index"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	Temperature float64 `json:"temperature,omitempty"`
	Power       float64 `json:"power,omitempty"`
}

// Healthy reports whether the board and every reported card look usable.
func (b BoardStatus) Healthy() bool {
	if b.DeviceStatus != "" && b.DeviceStatus != "healthy" && b.DeviceStatus != "ok" {
		return false
	}
	for _, d := range b.Devices {
		if d.Status != "" && d.Status != "healthy" && d.Status != "ok" {
			return false
		}
	}
	return true
}
