package elo

import "math"

// K-factor tiers by career match count. New participants move fast so their
// rating converges, veterans move slowly so theirs stays stable.
const (
	kFactorNew         = 40
	kFactorEstablished = 32
	kFactorVeteran     = 24

	newMatchLimit         = 10
	establishedMatchLimit = 40
)

// KFactor returns the K-factor for a participant with the given number of
// completed matches, counted before the match being applied.
func KFactor(matchesPlayed int) int {
	switch {
	case matchesPlayed < newMatchLimit:
		return kFactorNew
	case matchesPlayed < establishedMatchLimit:
		return kFactorEstablished
	default:
		return kFactorVeteran
	}
}

// ExpectedScore returns the probability-like expected score of the
// participant rated ratingA against an opponent rated ratingB, per the
// standard logistic curve with a 400-point scale.
func ExpectedScore(ratingA, ratingB float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (ratingB-ratingA)/400.0))
}

// Result is a match result from one side's point of view.
type Result int

const (
	Loss Result = iota
	Draw
	Win
)

// Score maps a result to its actual-score term: 1 for a win, 0.5 for a
// draw, 0 for a loss.
func (r Result) Score() float64 {
	switch r {
	case Win:
		return 1.0
	case Draw:
		return 0.5
	default:
		return 0.0
	}
}

// Inverse returns the opposing side's result.
func (r Result) Inverse() Result {
	switch r {
	case Win:
		return Loss
	case Loss:
		return Win
	default:
		return Draw
	}
}

// ResultOf derives a side's result from the final set counts.
func ResultOf(setsOwn, setsOpp int) Result {
	switch {
	case setsOwn > setsOpp:
		return Win
	case setsOwn < setsOpp:
		return Loss
	default:
		return Draw
	}
}

// Delta computes the signed rating change for a participant rated rating
// against an opponent rated oppRating, given the participant's result and
// pre-match career match count. The raw change K*(S-E) is rounded half
// away from zero, which keeps equal-K exchanges exactly zero-sum.
func Delta(rating, oppRating float64, result Result, matchesPlayed int) int {
	k := float64(KFactor(matchesPlayed))
	expected := ExpectedScore(rating, oppRating)
	return int(math.Round(k * (result.Score() - expected)))
}
