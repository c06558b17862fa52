package models

import "time"

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusCompleted MatchStatus = "completed"
)

type MatchType string

const (
	MatchTypeSingles MatchType = "singles"
	MatchTypeDoubles MatchType = "doubles"
)

// Match is one entry in the replayable match log. Participant convention:
// singles matches use Player1 vs Player2; doubles matches use the pair
// (Player1, Player2) as side 1 against (Player3, Player4) as side 2.
type Match struct {
	ID          int       `json:"id" db:"id"`
	SessionID   int       `json:"session_id" db:"session_id"`
	RoundNumber int       `json:"round_number" db:"round_number"`
	MatchOrder  int       `json:"match_order" db:"match_order"`
	Type        MatchType `json:"type" db:"match_type"`

	Player1ID int  `json:"player1_id" db:"player1_id"`
	Player2ID int  `json:"player2_id" db:"player2_id"`
	Player3ID *int `json:"player3_id,omitempty" db:"player3_id"`
	Player4ID *int `json:"player4_id,omitempty" db:"player4_id"`

	Score1 *int `json:"score1,omitempty" db:"score1"`
	Score2 *int `json:"score2,omitempty" db:"score2"`

	Status MatchStatus `json:"status" db:"status"`

	EditedBy   *string    `json:"edited_by,omitempty" db:"edited_by"`
	EditReason *string    `json:"edit_reason,omitempty" db:"edit_reason"`
	EditedAt   *time.Time `json:"edited_at,omitempty" db:"edited_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Team ids for the two doubles sides, resolved by the service layer
	// before a match reaches the replay engine. Never persisted on the match.
	Side1TeamID *int `json:"-" db:"-"`
	Side2TeamID *int `json:"-" db:"-"`
}

func (m *Match) IsDoubles() bool {
	return m.Type == MatchTypeDoubles
}

func (m *Match) HasScore() bool {
	return m.Score1 != nil && m.Score2 != nil
}

// Side1PlayerIDs returns the player ids of side 1 in participant order.
func (m *Match) Side1PlayerIDs() []int {
	if m.IsDoubles() {
		return []int{m.Player1ID, m.Player2ID}
	}
	return []int{m.Player1ID}
}

// Side2PlayerIDs returns the player ids of side 2 in participant order.
func (m *Match) Side2PlayerIDs() []int {
	if m.IsDoubles() {
		ids := make([]int, 0, 2)
		if m.Player3ID != nil {
			ids = append(ids, *m.Player3ID)
		}
		if m.Player4ID != nil {
			ids = append(ids, *m.Player4ID)
		}
		return ids
	}
	return []int{m.Player2ID}
}
