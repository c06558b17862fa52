package services

import (
	"context"
	"fmt"
	"sort"

	"club-ratings/elo"
	"club-ratings/models"
	"club-ratings/repositories"
)

// statesToRatings flattens a replayed state map into rating rows, sorted by
// (kind, participant id) so persistence order is reproducible.
func statesToRatings(states map[models.ParticipantRef]models.RatingState) []*models.Rating {
	ratings := make([]*models.Rating, 0, len(states))
	for ref, state := range states {
		ratings = append(ratings, &models.Rating{
			Kind:          ref.Kind,
			ParticipantID: ref.ID,
			RatingState:   state,
		})
	}
	sort.Slice(ratings, func(i, j int) bool {
		if ratings[i].Kind != ratings[j].Kind {
			return ratings[i].Kind < ratings[j].Kind
		}
		return ratings[i].ParticipantID < ratings[j].ParticipantID
	})
	return ratings
}

func ratingsToStates(ratings []*models.Rating) map[models.ParticipantRef]models.RatingState {
	states := make(map[models.ParticipantRef]models.RatingState, len(ratings))
	for _, rating := range ratings {
		states[rating.Ref()] = rating.RatingState
	}
	return states
}

// outcomeSnapshots builds the checkpoint rows for one applied match: the
// state of each of its participants immediately after the match.
func outcomeSnapshots(outcome elo.MatchOutcome) []*models.RatingSnapshot {
	snapshots := make([]*models.RatingSnapshot, 0, len(outcome.Updates))
	for _, update := range outcome.Updates {
		snapshots = append(snapshots, &models.RatingSnapshot{
			MatchID:       outcome.MatchID,
			Kind:          update.Ref.Kind,
			ParticipantID: update.Ref.ID,
			State:         update.After,
		})
	}
	return snapshots
}

func outcomeHistory(outcome elo.MatchOutcome) []*models.EloHistoryEntry {
	entries := make([]*models.EloHistoryEntry, 0, len(outcome.Updates))
	for _, update := range outcome.Updates {
		entries = append(entries, &models.EloHistoryEntry{
			MatchID:       outcome.MatchID,
			Kind:          update.Ref.Kind,
			ParticipantID: update.Ref.ID,
			EloBefore:     update.Before.Elo,
			EloAfter:      update.After.Elo,
			Delta:         update.Delta(),
		})
	}
	return entries
}

// matchParticipantRefs lists every projection entry a match touches once it
// is applied. Doubles matches must already carry resolved team ids.
func matchParticipantRefs(m *models.Match) []models.ParticipantRef {
	if !m.IsDoubles() {
		return []models.ParticipantRef{
			{Kind: models.RatingKindSingles, ID: m.Player1ID},
			{Kind: models.RatingKindSingles, ID: m.Player2ID},
		}
	}
	refs := make([]models.ParticipantRef, 0, 6)
	if m.Side1TeamID != nil && m.Side2TeamID != nil {
		refs = append(refs,
			models.ParticipantRef{Kind: models.RatingKindDoublesTeam, ID: *m.Side1TeamID},
			models.ParticipantRef{Kind: models.RatingKindDoublesTeam, ID: *m.Side2TeamID},
		)
	}
	for _, id := range m.Side1PlayerIDs() {
		refs = append(refs, models.ParticipantRef{Kind: models.RatingKindDoublesPlayer, ID: id})
	}
	for _, id := range m.Side2PlayerIDs() {
		refs = append(refs, models.ParticipantRef{Kind: models.RatingKindDoublesPlayer, ID: id})
	}
	return refs
}

// participantNames resolves display names for a set of projection entries in
// two bulk reads. Team names are composed from the pair's player names.
func participantNames(
	ctx context.Context,
	playerRepo repositories.PlayerRepository,
	teamRepo repositories.DoubleTeamRepository,
	refs []models.ParticipantRef,
) (map[models.ParticipantRef]string, error) {
	teamIDs := make([]int, 0)
	playerIDSet := make(map[int]bool)
	for _, ref := range refs {
		if ref.Kind == models.RatingKindDoublesTeam {
			teamIDs = append(teamIDs, ref.ID)
		} else {
			playerIDSet[ref.ID] = true
		}
	}

	teams := make(map[int]*models.DoubleTeam)
	if len(teamIDs) > 0 {
		listed, err := teamRepo.ListByIDs(ctx, nil, teamIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to list teams for name lookup: %w", err)
		}
		for _, t := range listed {
			teams[t.ID] = t
			playerIDSet[t.PlayerAID] = true
			playerIDSet[t.PlayerBID] = true
		}
	}

	playerIDs := make([]int, 0, len(playerIDSet))
	for id := range playerIDSet {
		playerIDs = append(playerIDs, id)
	}
	players := make(map[int]*models.Player)
	if len(playerIDs) > 0 {
		listed, err := playerRepo.ListByIDs(ctx, nil, playerIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to list players for name lookup: %w", err)
		}
		for _, p := range listed {
			players[p.ID] = p
		}
	}

	names := make(map[models.ParticipantRef]string, len(refs))
	for _, ref := range refs {
		if ref.Kind == models.RatingKindDoublesTeam {
			names[ref] = doubleTeamName(teams[ref.ID], players)
			continue
		}
		if player, ok := players[ref.ID]; ok {
			names[ref] = player.Name
		}
	}
	return names, nil
}

func doubleTeamName(team *models.DoubleTeam, players map[int]*models.Player) string {
	if team == nil {
		return ""
	}
	a, okA := players[team.PlayerAID]
	b, okB := players[team.PlayerBID]
	if !okA || !okB {
		return fmt.Sprintf("Team %d", team.ID)
	}
	return fmt.Sprintf("%s / %s", a.Name, b.Name)
}

func matchValues(matches []*models.Match) []models.Match {
	values := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		values = append(values, *m)
	}
	return values
}
