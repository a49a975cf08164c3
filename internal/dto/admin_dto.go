package dto

type UpdateStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

type RealtimeStatsResponse struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}
