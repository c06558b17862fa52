package elo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKFactorTiers(t *testing.T) {
	tests := []struct {
		name          string
		matchesPlayed int
		want          int
	}{
		{"brand new", 0, 40},
		{"last match of new tier", 9, 40},
		{"first match of established tier", 10, 32},
		{"last match of established tier", 39, 32},
		{"first match of veteran tier", 40, 24},
		{"deep veteran", 250, 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KFactor(tt.matchesPlayed))
		})
	}
}

func TestExpectedScoreSymmetry(t *testing.T) {
	pairs := [][2]float64{
		{1500, 1500},
		{1500, 1700},
		{1200, 1900},
		{1480, 1520},
		{1500.5, 1623.5},
	}
	for _, p := range pairs {
		sum := ExpectedScore(p[0], p[1]) + ExpectedScore(p[1], p[0])
		assert.InDelta(t, 1.0, sum, 1e-12, "expected scores for %v and %v must sum to 1", p[0], p[1])
	}
}

func TestExpectedScoreKnownValues(t *testing.T) {
	assert.InDelta(t, 0.5, ExpectedScore(1500, 1500), 1e-12)
	// 200 points down the logistic curve.
	assert.InDelta(t, 0.2402530733520421, ExpectedScore(1500, 1700), 1e-12)
	assert.InDelta(t, 0.7597469266479579, ExpectedScore(1700, 1500), 1e-12)
}

func TestResultOf(t *testing.T) {
	assert.Equal(t, Win, ResultOf(11, 5))
	assert.Equal(t, Loss, ResultOf(5, 11))
	assert.Equal(t, Draw, ResultOf(7, 7))
}

func TestResultScoreAndInverse(t *testing.T) {
	assert.Equal(t, 1.0, Win.Score())
	assert.Equal(t, 0.0, Loss.Score())
	assert.Equal(t, 0.5, Draw.Score())

	assert.Equal(t, Loss, Win.Inverse())
	assert.Equal(t, Win, Loss.Inverse())
	assert.Equal(t, Draw, Draw.Inverse())
}

func TestDeltaPinnedValues(t *testing.T) {
	tests := []struct {
		name          string
		rating        float64
		oppRating     float64
		result        Result
		matchesPlayed int
		want          int
	}{
		{"even win, new player", 1500, 1500, Win, 0, 20},
		{"even loss, new player", 1500, 1500, Loss, 0, -20},
		{"even draw, new player", 1500, 1500, Draw, 0, 0},
		{"even win, established", 1500, 1500, Win, 10, 16},
		{"even win, veteran", 1500, 1500, Win, 40, 12},
		{"underdog win", 1500, 1580, Win, 0, 25},
		{"underdog loss", 1500, 1580, Loss, 0, -15},
		{"favorite win", 1580, 1500, Win, 0, 15},
		{"favorite loss", 1580, 1500, Loss, 0, -25},
		{"underdog draw gains", 1500, 1580, Draw, 0, 5},
		{"favorite draw after one match", 1520, 1480, Draw, 1, -2},
		{"underdog draw after one match", 1480, 1520, Draw, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Delta(tt.rating, tt.oppRating, tt.result, tt.matchesPlayed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeltaZeroSumAtEqualK(t *testing.T) {
	pairs := [][2]float64{
		{1500, 1500},
		{1500, 1580},
		{1340, 1725},
		{1900, 1200},
	}
	counts := []int{0, 9, 10, 39, 40, 120}
	for _, p := range pairs {
		for _, n := range counts {
			winner := Delta(p[0], p[1], Win, n)
			loser := Delta(p[1], p[0], Loss, n)
			require.Equal(t, -loser, winner, "ratings %v vs %v at %d matches", p[0], p[1], n)
		}
	}
}

func TestDeltaAsymmetricKFactors(t *testing.T) {
	// A veteran beating a newcomer at equal elo gains less than the
	// newcomer loses.
	veteranGain := Delta(1500, 1500, Win, 40)
	newcomerLoss := Delta(1500, 1500, Loss, 0)
	assert.Equal(t, 12, veteranGain)
	assert.Equal(t, -20, newcomerLoss)
}
