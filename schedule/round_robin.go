package schedule

import (
	"errors"
	"sort"
)

var (
	ErrTooFewPlayers   = errors.New("round robin needs at least two players")
	ErrDuplicatePlayer = errors.New("round robin player list contains duplicates")
)

// Pairing is one planned singles match inside a session's round plan.
type Pairing struct {
	RoundNumber int
	MatchOrder  int
	Player1ID   int
	Player2ID   int
}

// RoundRobin plans an all-play-all schedule for the given players using the
// circle method: everyone meets everyone exactly once, and nobody plays
// twice in the same round. With an odd player count one player sits out each
// round. The input order does not matter; the plan is deterministic for a
// given set of players.
func RoundRobin(playerIDs []int) ([]Pairing, error) {
	if len(playerIDs) < 2 {
		return nil, ErrTooFewPlayers
	}

	ids := make([]int, len(playerIDs))
	copy(ids, playerIDs)
	sort.Ints(ids)
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			return nil, ErrDuplicatePlayer
		}
	}

	// Pad with a bye slot so the rotation works on an even count. Id 0 is
	// safe as the marker: real player ids are positive.
	const bye = 0
	if len(ids)%2 != 0 {
		ids = append(ids, bye)
	}

	n := len(ids)
	pairings := make([]Pairing, 0, n*(n-1)/2)

	for round := 1; round < n; round++ {
		order := 0
		for i := 0; i < n/2; i++ {
			a, b := ids[i], ids[n-1-i]
			if a == bye || b == bye {
				continue
			}
			order++
			pairings = append(pairings, Pairing{
				RoundNumber: round,
				MatchOrder:  order,
				Player1ID:   a,
				Player2ID:   b,
			})
		}

		// Keep the first slot fixed and rotate the rest clockwise.
		last := ids[n-1]
		copy(ids[2:], ids[1:n-1])
		ids[1] = last
	}

	return pairings, nil
}
