package models

import "time"

// RatingSnapshot is a checkpoint of one participant's state immediately after
// one completed match. Snapshots are the only supported resumption points for
// partial replay; there is no "before" snapshot. The state before a match is
// the snapshot after the participant's previous match, or the session baseline.
type RatingSnapshot struct {
	MatchID       int         `json:"match_id" db:"match_id"`
	Kind          RatingKind  `json:"kind" db:"kind"`
	ParticipantID int         `json:"participant_id" db:"participant_id"`
	State         RatingState `json:"state"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

func (s *RatingSnapshot) Ref() ParticipantRef {
	return ParticipantRef{Kind: s.Kind, ID: s.ParticipantID}
}
