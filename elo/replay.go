package elo

import (
	"club-ratings/models"
)

// ParticipantUpdate is one participant's rating transition caused by a single
// match, across exactly one projection.
type ParticipantUpdate struct {
	Ref    models.ParticipantRef
	Before models.RatingState
	After  models.RatingState
}

// Delta returns the signed Elo change of the update.
func (u ParticipantUpdate) Delta() int {
	return u.After.Elo - u.Before.Elo
}

// MatchOutcome holds every rating transition one applied match produced.
// Updates are ordered deterministically: for singles, side 1 then side 2;
// for doubles, the two team projections first, then the four player
// projections in side order.
type MatchOutcome struct {
	MatchID int
	Updates []ParticipantUpdate
}

// Replay applies matches, in the order given, on top of start and returns the
// resulting states together with the per-match transitions. The input map is
// never mutated; callers can reuse a baseline across calls.
//
// Matches that are not completed, have no recorded score, or (for doubles)
// are missing a player or a resolved team id are skipped, never failed on.
// Every state transition is a pure function of the pre-match states, so the
// same inputs always produce identical output.
func Replay(start map[models.ParticipantRef]models.RatingState, matches []models.Match) (map[models.ParticipantRef]models.RatingState, []MatchOutcome) {
	states := make(map[models.ParticipantRef]models.RatingState, len(start))
	for ref, st := range start {
		states[ref] = st
	}

	outcomes := make([]MatchOutcome, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		if !Applicable(m) {
			continue
		}

		var updates []ParticipantUpdate
		if m.IsDoubles() {
			updates = applyDoubles(states, m)
		} else {
			updates = applySingles(states, m)
		}
		outcomes = append(outcomes, MatchOutcome{MatchID: m.ID, Updates: updates})
	}
	return states, outcomes
}

// Applicable reports whether a match takes part in replay: it must be
// completed with a recorded score, and a doubles match additionally needs all
// four players and both resolved team ids.
func Applicable(m *models.Match) bool {
	if m.Status != models.MatchStatusCompleted || !m.HasScore() {
		return false
	}
	if m.IsDoubles() {
		if m.Player3ID == nil || m.Player4ID == nil {
			return false
		}
		if m.Side1TeamID == nil || m.Side2TeamID == nil {
			return false
		}
	}
	return true
}

func stateOf(states map[models.ParticipantRef]models.RatingState, ref models.ParticipantRef) models.RatingState {
	if st, ok := states[ref]; ok {
		return st
	}
	return models.NewRatingState()
}

func applySingles(states map[models.ParticipantRef]models.RatingState, m *models.Match) []ParticipantUpdate {
	ref1 := models.ParticipantRef{Kind: models.RatingKindSingles, ID: m.Player1ID}
	ref2 := models.ParticipantRef{Kind: models.RatingKindSingles, ID: m.Player2ID}
	st1 := stateOf(states, ref1)
	st2 := stateOf(states, ref2)

	res1 := ResultOf(*m.Score1, *m.Score2)
	res2 := res1.Inverse()

	// Both deltas come from the pre-match states; each side uses its own
	// K-factor, so the magnitudes may differ.
	d1 := Delta(float64(st1.Elo), float64(st2.Elo), res1, st1.MatchesPlayed)
	d2 := Delta(float64(st2.Elo), float64(st1.Elo), res2, st2.MatchesPlayed)

	after1 := advance(st1, d1, res1, *m.Score1, *m.Score2)
	after2 := advance(st2, d2, res2, *m.Score2, *m.Score1)
	states[ref1] = after1
	states[ref2] = after2

	return []ParticipantUpdate{
		{Ref: ref1, Before: st1, After: after1},
		{Ref: ref2, Before: st2, After: after2},
	}
}

func applyDoubles(states map[models.ParticipantRef]models.RatingState, m *models.Match) []ParticipantUpdate {
	res1 := ResultOf(*m.Score1, *m.Score2)
	res2 := res1.Inverse()

	// Team projection: each team is rated as its own participant, with
	// its own elo and match count.
	refT1 := models.ParticipantRef{Kind: models.RatingKindDoublesTeam, ID: *m.Side1TeamID}
	refT2 := models.ParticipantRef{Kind: models.RatingKindDoublesTeam, ID: *m.Side2TeamID}
	t1 := stateOf(states, refT1)
	t2 := stateOf(states, refT2)

	dT1 := Delta(float64(t1.Elo), float64(t2.Elo), res1, t1.MatchesPlayed)
	dT2 := Delta(float64(t2.Elo), float64(t1.Elo), res2, t2.MatchesPlayed)

	afterT1 := advance(t1, dT1, res1, *m.Score1, *m.Score2)
	afterT2 := advance(t2, dT2, res2, *m.Score2, *m.Score1)
	states[refT1] = afterT1
	states[refT2] = afterT2

	// Player projection: the side's effective rating is the average of its
	// two players' doubles ratings, its effective match count the average
	// of their match counts. One delta per side, applied to both players.
	refP1 := models.ParticipantRef{Kind: models.RatingKindDoublesPlayer, ID: m.Player1ID}
	refP2 := models.ParticipantRef{Kind: models.RatingKindDoublesPlayer, ID: m.Player2ID}
	refP3 := models.ParticipantRef{Kind: models.RatingKindDoublesPlayer, ID: *m.Player3ID}
	refP4 := models.ParticipantRef{Kind: models.RatingKindDoublesPlayer, ID: *m.Player4ID}
	p1 := stateOf(states, refP1)
	p2 := stateOf(states, refP2)
	p3 := stateOf(states, refP3)
	p4 := stateOf(states, refP4)

	side1Elo := float64(p1.Elo+p2.Elo) / 2.0
	side2Elo := float64(p3.Elo+p4.Elo) / 2.0
	side1Matches := (p1.MatchesPlayed + p2.MatchesPlayed) / 2
	side2Matches := (p3.MatchesPlayed + p4.MatchesPlayed) / 2

	dSide1 := Delta(side1Elo, side2Elo, res1, side1Matches)
	dSide2 := Delta(side2Elo, side1Elo, res2, side2Matches)

	afterP1 := advance(p1, dSide1, res1, *m.Score1, *m.Score2)
	afterP2 := advance(p2, dSide1, res1, *m.Score1, *m.Score2)
	afterP3 := advance(p3, dSide2, res2, *m.Score2, *m.Score1)
	afterP4 := advance(p4, dSide2, res2, *m.Score2, *m.Score1)
	states[refP1] = afterP1
	states[refP2] = afterP2
	states[refP3] = afterP3
	states[refP4] = afterP4

	return []ParticipantUpdate{
		{Ref: refT1, Before: t1, After: afterT1},
		{Ref: refT2, Before: t2, After: afterT2},
		{Ref: refP1, Before: p1, After: afterP1},
		{Ref: refP2, Before: p2, After: afterP2},
		{Ref: refP3, Before: p3, After: afterP3},
		{Ref: refP4, Before: p4, After: afterP4},
	}
}

func advance(st models.RatingState, delta int, result Result, scoreOwn, scoreOpp int) models.RatingState {
	st.Elo += delta
	st.MatchesPlayed++
	switch result {
	case Win:
		st.Wins++
	case Loss:
		st.Losses++
	case Draw:
		st.Draws++
	}
	if scoreOwn > scoreOpp {
		st.SetsWon++
	} else if scoreOwn < scoreOpp {
		st.SetsLost++
	}
	return st
}
