package types

// Admin surface payloads. These mirror what the dashboard edits: the
// directory reference data behind the authorization engine.

type BuildingUpsert struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type AccessPointUpsert struct {
	BuildingID    string `json:"building_id"`
	Name          string `json:"name"`
	RequiredLevel int    `json:"required_level"`
}

type CardUpsert struct {
	CardUID     string `json:"card_uid"`
	OwnerID     string `json:"owner_id"`
	DisplayName string `json:"display_name,omitempty"`
	Status      string `json:"status,omitempty"` // defaults to active
}

type CardStatusUpdate struct {
	Status string `json:"status"`
}

// GrantUpsert carries an optional daily window as "HH:MM" local-time
// strings and an optional weekday set (0 = Sunday). Absent window means
// any time; absent days means every day.
type GrantUpsert struct {
	AccessLevel   int    `json:"access_level"`
	ScheduleStart string `json:"schedule_start,omitempty"`
	ScheduleEnd   string `json:"schedule_end,omitempty"`
	DaysOfWeek    []int  `json:"days_of_week,omitempty"`
}

type DecisionView struct {
	DecisionID    string `json:"decision_id"`
	CardID        string `json:"card_id,omitempty"`
	CardUID       string `json:"card_uid"`
	AccessPointID string `json:"access_point_id,omitempty"`
	Granted       bool   `json:"granted"`
	Reason        string `json:"reason"`
	OccurredAt    string `json:"occurred_at"`
	DecidedAt     string `json:"decided_at"`
}

type DecisionListResponse struct {
	Decisions []DecisionView `json:"decisions"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}
