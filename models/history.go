package models

import "time"

// EloHistoryEntry is the audit record of one participant's rating change from
// one match. History rows are deleted and rewritten whenever the match they
// belong to is replayed.
type EloHistoryEntry struct {
	ID            int        `json:"id" db:"id"`
	MatchID       int        `json:"match_id" db:"match_id"`
	Kind          RatingKind `json:"kind" db:"kind"`
	ParticipantID int        `json:"participant_id" db:"participant_id"`
	EloBefore     int        `json:"elo_before" db:"elo_before"`
	EloAfter      int        `json:"elo_after" db:"elo_after"`
	Delta         int        `json:"delta" db:"delta"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
