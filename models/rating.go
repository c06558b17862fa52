package models

import "time"

// RatingKind names one of the three independent rating projections derived
// from the match log. The projections share the same math but never mix:
// a player's singles rating, a player's doubles rating (computed only from
// doubles matches via side averages) and a fixed pair's team rating.
type RatingKind string

const (
	RatingKindSingles       RatingKind = "singles"
	RatingKindDoublesPlayer RatingKind = "doubles_player"
	RatingKindDoublesTeam   RatingKind = "doubles_team"
)

func (k RatingKind) Valid() bool {
	switch k {
	case RatingKindSingles, RatingKindDoublesPlayer, RatingKindDoublesTeam:
		return true
	}
	return false
}

// DefaultElo is the rating every participant starts from.
const DefaultElo = 1500

// RatingState is one participant's rating and running totals at a point in
// time. Invariant: MatchesPlayed == Wins + Losses + Draws. Elo is an integer;
// deltas are rounded before being applied, fractional Elo is never persisted.
type RatingState struct {
	Elo           int `json:"elo"`
	MatchesPlayed int `json:"matches_played"`
	Wins          int `json:"wins"`
	Losses        int `json:"losses"`
	Draws         int `json:"draws"`
	SetsWon       int `json:"sets_won"`
	SetsLost      int `json:"sets_lost"`
}

// NewRatingState returns the unrated default state.
func NewRatingState() RatingState {
	return RatingState{Elo: DefaultElo}
}

// ParticipantRef identifies a rated participant within one projection.
// ID is a player id for the singles and doubles_player kinds and a double
// team id for the doubles_team kind.
type ParticipantRef struct {
	Kind RatingKind `json:"kind"`
	ID   int        `json:"id"`
}

// Rating is the persisted "current" state of one participant. It carries no
// authority of its own: it is always the result of replaying the match log.
type Rating struct {
	Kind          RatingKind `json:"kind" db:"kind"`
	ParticipantID int        `json:"participant_id" db:"participant_id"`
	RatingState
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (r *Rating) Ref() ParticipantRef {
	return ParticipantRef{Kind: r.Kind, ID: r.ParticipantID}
}
