package types

// AccessRequest is a card presentation delivered by a reader (the NFC
// bridge). RequestedAt is the reader's own clock; schedules are evaluated
// in its zone, so well-behaved readers send an RFC 3339 timestamp with an
// offset. An absent or unparseable timestamp falls back to server time.
type AccessRequest struct {
	CardUID       string `json:"card_uid"`
	AccessPointID string `json:"access_point_id"`
	RequestedAt   string `json:"requested_at,omitempty"`
}

type AccessResponse struct {
	OK         bool   `json:"ok"`
	Granted    bool   `json:"granted"`
	Reason     string `json:"reason"`
	DecisionID string `json:"decision_id,omitempty"`
	ServerTime string `json:"server_time"`
}
