package models

import "time"

// DoubleTeam is a fixed pair of players rated as a unit in doubles play.
// The pair is normalized so PlayerAID < PlayerBID; (a,b) and (b,a) always
// resolve to the same row.
type DoubleTeam struct {
	ID        int       `json:"id" db:"id"`
	PlayerAID int       `json:"player_a_id" db:"player_a_id"`
	PlayerBID int       `json:"player_b_id" db:"player_b_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	PlayerA *Player `json:"player_a,omitempty" db:"-"`
	PlayerB *Player `json:"player_b,omitempty" db:"-"`
}

// NormalizePair orders two player IDs so the smaller one comes first.
func NormalizePair(p1, p2 int) (int, int) {
	if p1 > p2 {
		return p2, p1
	}
	return p1, p2
}
