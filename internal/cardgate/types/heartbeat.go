package types

type HeartbeatRequest struct {
	AccessPointID string `json:"access_point_id"`
	ReaderModel   string `json:"reader_model,omitempty"`
	UptimeSeconds uint64 `json:"uptime_s,omitempty"`
	IP            string `json:"ip,omitempty"`
}

type HeartbeatResponse struct {
	OK            bool   `json:"ok"`
	Known         bool   `json:"known"`
	AccessPointID string `json:"access_point_id"`
	ServerTime    string `json:"server_time"`
}
