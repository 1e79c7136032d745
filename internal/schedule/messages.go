package schedule

import "github.com/hiveboardgame/realtime/internal/store"

// Snapshot is the client-facing view of a store.Schedule.
type Snapshot struct {
	ID         string
	GameID     string
	ProposerID string
	OpponentID string
	StartAt    int64 // unix millis
	Agreed     bool
	Notified   bool
}

func snapshot(s *store.Schedule) Snapshot {
	return Snapshot{
		ID:         s.ID,
		GameID:     s.GameID,
		ProposerID: s.ProposerID,
		OpponentID: s.OpponentID,
		StartAt:    s.StartAt.UnixMilli(),
		Agreed:     s.Agreed,
		Notified:   s.Notified,
	}
}

func snapshots(schs []store.Schedule) []Snapshot {
	out := make([]Snapshot, len(schs))
	for i := range schs {
		out[i] = snapshot(&schs[i])
	}
	return out
}

// Update is the ScheduleUpdate payload (spec §4.H.4): one of
// Proposed/Accepted/Deleted/Reminder.
type Update struct {
	Kind     string
	Schedule Snapshot
}
