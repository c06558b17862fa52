package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"club-ratings/models"
)

func TestSessionSummaryComputesDeltas(t *testing.T) {
	env := newTestEnv()
	ids := env.seedPlayers(3)
	session := env.startSession(t, "Week 1")
	env.playSingles(t, session.ID, 1, 1, ids[0], ids[1], 11, 5)
	env.playSingles(t, session.ID, 2, 1, ids[0], ids[2], 11, 7)
	env.completeSession(t, session.ID)

	summary, err := env.summaryService.GetSessionSummary(context.Background(), session.ID)
	require.NoError(t, err)

	assert.Equal(t, session.ID, summary.SessionID)
	assert.Equal(t, "Week 1", summary.SessionName)
	assert.Equal(t, models.SessionStatusCompleted, summary.Status)
	require.Len(t, summary.Participants, 3)

	// Biggest mover first within a kind.
	assert.Equal(t, ParticipantSummary{
		Kind: models.RatingKindSingles, ParticipantID: ids[0], Name: "P1",
		EloBefore: 1500, EloAfter: 1539, Delta: 39,
		MatchesPlayed: 2, Wins: 2,
	}, summary.Participants[0])
	assert.Equal(t, ParticipantSummary{
		Kind: models.RatingKindSingles, ParticipantID: ids[2], Name: "P3",
		EloBefore: 1500, EloAfter: 1481, Delta: -19,
		MatchesPlayed: 1, Losses: 1,
	}, summary.Participants[1])
	assert.Equal(t, ParticipantSummary{
		Kind: models.RatingKindSingles, ParticipantID: ids[1], Name: "P2",
		EloBefore: 1500, EloAfter: 1480, Delta: -20,
		MatchesPlayed: 1, Losses: 1,
	}, summary.Participants[2])
}

func TestSessionSummaryStartsFromPriorSessions(t *testing.T) {
	env := newTestEnv()
	ids := env.seedPlayers(2)

	week1 := env.startSession(t, "Week 1")
	env.playSingles(t, week1.ID, 1, 1, ids[0], ids[1], 11, 5)
	env.completeSession(t, week1.ID)

	week2 := env.startSession(t, "Week 2")
	env.playSingles(t, week2.ID, 1, 1, ids[1], ids[0], 11, 3)
	env.completeSession(t, week2.ID)

	summary, err := env.summaryService.GetSessionSummary(context.Background(), week2.ID)
	require.NoError(t, err)
	require.Len(t, summary.Participants, 2)

	// The underdog's upset is measured against the week 1 ratings, not
	// against 1500.
	winner := summary.Participants[0]
	assert.Equal(t, ids[1], winner.ParticipantID)
	assert.Equal(t, 1480, winner.EloBefore)
	assert.Equal(t, 1502, winner.EloAfter)
	assert.Equal(t, 22, winner.Delta)

	loser := summary.Participants[1]
	assert.Equal(t, ids[0], loser.ParticipantID)
	assert.Equal(t, 1520, loser.EloBefore)
	assert.Equal(t, 1498, loser.EloAfter)
	assert.Equal(t, -22, loser.Delta)
}

func TestSessionSummaryCountsDrawnMatches(t *testing.T) {
	env := newTestEnv()
	ids := env.seedPlayers(2)
	session := env.startSession(t, "Week 1")
	env.playSingles(t, session.ID, 1, 1, ids[0], ids[1], 8, 8)
	env.completeSession(t, session.ID)

	summary, err := env.summaryService.GetSessionSummary(context.Background(), session.ID)
	require.NoError(t, err)

	// A draw between equals moves nobody, yet both players took part and
	// must show up in the summary.
	require.Len(t, summary.Participants, 2)
	for _, p := range summary.Participants {
		assert.Zero(t, p.Delta)
		assert.Equal(t, 1, p.MatchesPlayed)
		assert.Equal(t, 1, p.Draws)
		assert.Zero(t, p.Wins)
		assert.Zero(t, p.Losses)
	}
	assert.Equal(t, ids[0], summary.Participants[0].ParticipantID)
	assert.Equal(t, ids[1], summary.Participants[1].ParticipantID)
}

func TestSessionSummaryIncludesDoublesProjections(t *testing.T) {
	env := newTestEnv()
	ids := env.seedPlayers(4)
	session := env.startSession(t, "Week 1")
	env.playDoubles(t, session.ID, 1, 1, ids[0], ids[1], ids[2], ids[3], 11, 7)
	env.completeSession(t, session.ID)

	summary, err := env.summaryService.GetSessionSummary(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, summary.Participants, 6)

	var playerRows, teamRows []ParticipantSummary
	for _, p := range summary.Participants {
		switch p.Kind {
		case models.RatingKindDoublesPlayer:
			playerRows = append(playerRows, p)
		case models.RatingKindDoublesTeam:
			teamRows = append(teamRows, p)
		case models.RatingKindSingles:
			t.Fatalf("doubles match leaked into the singles projection: %+v", p)
		}
	}

	require.Len(t, playerRows, 4)
	assert.Equal(t, []int{ids[0], ids[1], ids[2], ids[3]},
		[]int{playerRows[0].ParticipantID, playerRows[1].ParticipantID, playerRows[2].ParticipantID, playerRows[3].ParticipantID})
	assert.Equal(t, 20, playerRows[0].Delta)
	assert.Equal(t, -20, playerRows[3].Delta)

	require.Len(t, teamRows, 2)
	assert.Equal(t, "P1 / P2", teamRows[0].Name)
	assert.Equal(t, 20, teamRows[0].Delta)
	assert.Equal(t, "P3 / P4", teamRows[1].Name)
	assert.Equal(t, -20, teamRows[1].Delta)
}

func TestSessionSummaryUnknownSession(t *testing.T) {
	env := newTestEnv()
	_, err := env.summaryService.GetSessionSummary(context.Background(), 999)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionHighlightsPickStableWinners(t *testing.T) {
	env := newTestEnv()
	ids := env.seedPlayers(4)
	session := env.startSession(t, "Week 1")
	env.playSingles(t, session.ID, 1, 1, ids[0], ids[1], 11, 5)
	env.playSingles(t, session.ID, 1, 2, ids[2], ids[3], 11, 5)
	env.completeSession(t, session.ID)

	highlights, err := env.summaryService.GetSessionHighlights(context.Background(), session.ID)
	require.NoError(t, err)

	// Both winners gained 20 and both losers lost 20; the tie goes to the
	// lower player id on each side.
	require.NotNil(t, highlights.MostImproved)
	assert.Equal(t, ids[0], highlights.MostImproved.ParticipantID)
	assert.Equal(t, 20, highlights.MostImproved.Delta)

	require.NotNil(t, highlights.LargestDrop)
	assert.Equal(t, ids[1], highlights.LargestDrop.ParticipantID)
	assert.Equal(t, -20, highlights.LargestDrop.Delta)
}

func TestSessionHighlightsEmptyWithoutSingles(t *testing.T) {
	env := newTestEnv()
	ids := env.seedPlayers(4)
	session := env.startSession(t, "Week 1")
	env.playDoubles(t, session.ID, 1, 1, ids[0], ids[1], ids[2], ids[3], 11, 7)
	env.completeSession(t, session.ID)

	highlights, err := env.summaryService.GetSessionHighlights(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Nil(t, highlights.MostImproved)
	assert.Nil(t, highlights.LargestDrop)
}
