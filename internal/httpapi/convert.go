package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cardgate/cardgate/internal/cardgate/store"
	"github.com/cardgate/cardgate/internal/cardgate/types"
)

// parseEventTime parses a reader-reported timestamp. The zone is kept
// as sent: schedules are evaluated in the reader's local time, so
// normalizing to UTC here would shift windows. Returns the zero time
// for an empty or unparseable string.
func parseEventTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

// parseClock parses "HH:MM" into minutes from midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}

func grantFromUpsert(grantID, cardID, accessPointID string, in types.GrantUpsert) (store.Grant, error) {
	g := store.Grant{
		ID:            grantID,
		CardID:        cardID,
		AccessPointID: accessPointID,
		Level:         in.AccessLevel,
	}

	if (in.ScheduleStart == "") != (in.ScheduleEnd == "") {
		return store.Grant{}, fmt.Errorf("schedule_start and schedule_end must be set together")
	}
	if in.ScheduleStart != "" {
		start, err := parseClock(in.ScheduleStart)
		if err != nil {
			return store.Grant{}, err
		}
		end, err := parseClock(in.ScheduleEnd)
		if err != nil {
			return store.Grant{}, err
		}
		g.Window = &store.TimeWindow{StartMin: start, EndMin: end}
	}

	for _, d := range in.DaysOfWeek {
		if d < 0 || d > 6 {
			return store.Grant{}, fmt.Errorf("bad weekday %d", d)
		}
		g.Days = append(g.Days, time.Weekday(d))
	}

	return g, nil
}

func decisionToView(d store.Decision) types.DecisionView {
	return types.DecisionView{
		DecisionID:    d.ID,
		CardID:        d.CardID,
		CardUID:       d.CardUID,
		AccessPointID: d.AccessPointID,
		Granted:       d.Granted,
		Reason:        string(d.Reason),
		OccurredAt:    d.OccurredAt.Format(time.RFC3339Nano),
		DecidedAt:     d.DecidedAt.Format(time.RFC3339Nano),
	}
}
