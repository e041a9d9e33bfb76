package dto

type ServicesHealth struct {
	Database bool `json:"database"`
	Cache    bool `json:"cache"`
}

type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Uptime    float64        `json:"uptime"`
	Services  ServicesHealth `json:"services"`
}

func (h HealthResponse) Healthy() bool {
	return h.Services.Database && h.Services.Cache
}
