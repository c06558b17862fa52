package services

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"club-ratings/models"
	"club-ratings/repositories"
	"club-ratings/storage"
)

// The fakes below implement the repository interfaces over in-memory maps.
// Each carries error-injection fields so tests can force failure paths.

// stubDriver backs a *sql.DB whose only job is handing out transactions.
// Repository fakes ignore the executor, so no statement ever reaches it.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return &stubConn{}, nil }

type stubConn struct{}

func (*stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub connection does not prepare statements")
}
func (*stubConn) Close() error              { return nil }
func (*stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func init() {
	sql.Register("servicetest", stubDriver{})
}

func newStubDB() *sql.DB {
	db, err := sql.Open("servicetest", "")
	if err != nil {
		panic(err)
	}
	return db
}

// region player repository

type fakePlayerRepository struct {
	Players map[int]*models.Player
	nextID  int

	CreateErr error
	GetErr    error
	ListErr   error
}

func newFakePlayerRepository() *fakePlayerRepository {
	return &fakePlayerRepository{Players: make(map[int]*models.Player)}
}

func (f *fakePlayerRepository) Create(ctx context.Context, exec repositories.SQLExecutor, player *models.Player) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	for _, existing := range f.Players {
		if existing.Name == player.Name {
			return repositories.ErrPlayerNameTaken
		}
	}
	f.nextID++
	player.ID = f.nextID
	player.CreatedAt = time.Now()
	stored := *player
	f.Players[player.ID] = &stored
	return nil
}

func (f *fakePlayerRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Player, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	player, ok := f.Players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	found := *player
	return &found, nil
}

func (f *fakePlayerRepository) ListByIDs(ctx context.Context, exec repositories.SQLExecutor, ids []int) ([]*models.Player, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	players := make([]*models.Player, 0, len(ids))
	for _, id := range ids {
		if player, ok := f.Players[id]; ok {
			found := *player
			players = append(players, &found)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

func (f *fakePlayerRepository) List(ctx context.Context, exec repositories.SQLExecutor) ([]*models.Player, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	players := make([]*models.Player, 0, len(f.Players))
	for _, player := range f.Players {
		found := *player
		players = append(players, &found)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].Name != players[j].Name {
			return players[i].Name < players[j].Name
		}
		return players[i].ID < players[j].ID
	})
	return players, nil
}

// endregion

// region session repository

type fakeSessionRepository struct {
	Sessions map[int]*models.Session
	nextID   int
	clock    time.Time

	CreateErr       error
	GetErr          error
	ListErr         error
	UpdateStatusErr error
	DeleteErr       error
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{
		Sessions: make(map[int]*models.Session),
		// Fixed base instant so created_at ordering equals creation order.
		clock: time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC),
	}
}

func (f *fakeSessionRepository) Create(ctx context.Context, exec repositories.SQLExecutor, session *models.Session) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.nextID++
	session.ID = f.nextID
	session.CreatedAt = f.clock
	f.clock = f.clock.Add(time.Hour)
	stored := *session
	f.Sessions[session.ID] = &stored
	return nil
}

func (f *fakeSessionRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Session, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	session, ok := f.Sessions[id]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	found := *session
	return &found, nil
}

func (f *fakeSessionRepository) List(ctx context.Context, exec repositories.SQLExecutor) ([]*models.Session, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	sessions := f.all()
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

func (f *fakeSessionRepository) ListCompletedBefore(ctx context.Context, exec repositories.SQLExecutor, before time.Time) ([]*models.Session, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	sessions := make([]*models.Session, 0)
	for _, session := range f.all() {
		if session.Status == models.SessionStatusCompleted && session.CreatedAt.Before(before) {
			sessions = append(sessions, session)
		}
	}
	sortSessionsAscending(sessions)
	return sessions, nil
}

func (f *fakeSessionRepository) ListCompleted(ctx context.Context, exec repositories.SQLExecutor) ([]*models.Session, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	sessions := make([]*models.Session, 0)
	for _, session := range f.all() {
		if session.Status == models.SessionStatusCompleted {
			sessions = append(sessions, session)
		}
	}
	sortSessionsAscending(sessions)
	return sessions, nil
}

func (f *fakeSessionRepository) GetLatestCompleted(ctx context.Context, exec repositories.SQLExecutor) (*models.Session, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	completed, err := f.ListCompleted(ctx, exec)
	if err != nil {
		return nil, err
	}
	if len(completed) == 0 {
		return nil, repositories.ErrSessionNotFound
	}
	return completed[len(completed)-1], nil
}

func (f *fakeSessionRepository) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.SessionStatus, completedAt *time.Time) error {
	if f.UpdateStatusErr != nil {
		return f.UpdateStatusErr
	}
	session, ok := f.Sessions[id]
	if !ok {
		return repositories.ErrSessionNotFound
	}
	session.Status = status
	session.CompletedAt = completedAt
	return nil
}

func (f *fakeSessionRepository) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.Sessions[id]; !ok {
		return repositories.ErrSessionNotFound
	}
	delete(f.Sessions, id)
	return nil
}

func (f *fakeSessionRepository) all() []*models.Session {
	sessions := make([]*models.Session, 0, len(f.Sessions))
	for _, session := range f.Sessions {
		found := *session
		sessions = append(sessions, &found)
	}
	return sessions
}

func sortSessionsAscending(sessions []*models.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
}

// endregion

// region match repository

type fakeMatchRepository struct {
	Matches map[int]*models.Match
	nextID  int

	CreateErr          error
	GetErr             error
	ListErr            error
	UpdateResultErr    error
	UpdateCorrectedErr error
	DeleteErr          error
}

func newFakeMatchRepository() *fakeMatchRepository {
	return &fakeMatchRepository{Matches: make(map[int]*models.Match)}
}

func (f *fakeMatchRepository) Create(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	for _, existing := range f.Matches {
		if existing.SessionID == match.SessionID &&
			existing.RoundNumber == match.RoundNumber &&
			existing.MatchOrder == match.MatchOrder {
			return repositories.ErrMatchOrderTaken
		}
	}
	f.nextID++
	match.ID = f.nextID
	match.CreatedAt = time.Now()
	stored := *match
	// Side team ids live only on the in-memory match, like the db columns.
	stored.Side1TeamID = nil
	stored.Side2TeamID = nil
	f.Matches[match.ID] = &stored
	return nil
}

func (f *fakeMatchRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	match, ok := f.Matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	found := *match
	return &found, nil
}

func (f *fakeMatchRepository) ListBySession(ctx context.Context, exec repositories.SQLExecutor, sessionID int) ([]*models.Match, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	matches := make([]*models.Match, 0)
	for _, match := range f.Matches {
		if match.SessionID == sessionID {
			found := *match
			matches = append(matches, &found)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].RoundNumber != matches[j].RoundNumber {
			return matches[i].RoundNumber < matches[j].RoundNumber
		}
		return matches[i].MatchOrder < matches[j].MatchOrder
	})
	return matches, nil
}

func (f *fakeMatchRepository) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, id int, score1, score2 int) error {
	if f.UpdateResultErr != nil {
		return f.UpdateResultErr
	}
	match, ok := f.Matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	s1, s2 := score1, score2
	match.Score1 = &s1
	match.Score2 = &s2
	match.Status = models.MatchStatusCompleted
	return nil
}

func (f *fakeMatchRepository) UpdateCorrectedScore(ctx context.Context, exec repositories.SQLExecutor, id int, score1, score2 int, editedBy, editReason *string) error {
	if f.UpdateCorrectedErr != nil {
		return f.UpdateCorrectedErr
	}
	match, ok := f.Matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	s1, s2 := score1, score2
	now := time.Now()
	match.Score1 = &s1
	match.Score2 = &s2
	match.EditedBy = editedBy
	match.EditReason = editReason
	match.EditedAt = &now
	return nil
}

func (f *fakeMatchRepository) DeleteBySession(ctx context.Context, exec repositories.SQLExecutor, sessionID int) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for id, match := range f.Matches {
		if match.SessionID == sessionID {
			delete(f.Matches, id)
		}
	}
	return nil
}

// endregion

// region double team repository

type fakeDoubleTeamRepository struct {
	Teams  map[int]*models.DoubleTeam
	byPair map[[2]int]int
	nextID int

	GetOrCreateErr   error
	GetErr           error
	ListErr          error
	GetOrCreateCalls int
}

func newFakeDoubleTeamRepository() *fakeDoubleTeamRepository {
	return &fakeDoubleTeamRepository{
		Teams:  make(map[int]*models.DoubleTeam),
		byPair: make(map[[2]int]int),
	}
}

func (f *fakeDoubleTeamRepository) GetOrCreateByPair(ctx context.Context, exec repositories.SQLExecutor, playerID1, playerID2 int) (*models.DoubleTeam, error) {
	f.GetOrCreateCalls++
	if f.GetOrCreateErr != nil {
		return nil, f.GetOrCreateErr
	}
	a, b := models.NormalizePair(playerID1, playerID2)
	if id, ok := f.byPair[[2]int{a, b}]; ok {
		found := *f.Teams[id]
		return &found, nil
	}
	f.nextID++
	team := &models.DoubleTeam{ID: f.nextID, PlayerAID: a, PlayerBID: b, CreatedAt: time.Now()}
	f.Teams[team.ID] = team
	f.byPair[[2]int{a, b}] = team.ID
	found := *team
	return &found, nil
}

func (f *fakeDoubleTeamRepository) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.DoubleTeam, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	team, ok := f.Teams[id]
	if !ok {
		return nil, repositories.ErrDoubleTeamNotFound
	}
	found := *team
	return &found, nil
}

func (f *fakeDoubleTeamRepository) ListByIDs(ctx context.Context, exec repositories.SQLExecutor, ids []int) ([]*models.DoubleTeam, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	teams := make([]*models.DoubleTeam, 0, len(ids))
	for _, id := range ids {
		if team, ok := f.Teams[id]; ok {
			found := *team
			teams = append(teams, &found)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

// endregion

// region rating repository

type fakeRatingRepository struct {
	Ratings map[models.ParticipantRef]*models.Rating

	GetErr           error
	ListErr          error
	UpsertErr        error
	DeleteAllErr     error
	BatchUpsertCalls int

	// OnBatchUpsert fires once at the next BatchUpsert, letting a test run
	// code at a point where a recalculation is provably mid-flight.
	OnBatchUpsert func()
}

func newFakeRatingRepository() *fakeRatingRepository {
	return &fakeRatingRepository{Ratings: make(map[models.ParticipantRef]*models.Rating)}
}

func (f *fakeRatingRepository) Get(ctx context.Context, exec repositories.SQLExecutor, kind models.RatingKind, participantID int) (*models.Rating, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	rating, ok := f.Ratings[models.ParticipantRef{Kind: kind, ID: participantID}]
	if !ok {
		return nil, repositories.ErrRatingNotFound
	}
	found := *rating
	return &found, nil
}

func (f *fakeRatingRepository) ListByKind(ctx context.Context, exec repositories.SQLExecutor, kind models.RatingKind) ([]*models.Rating, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	ratings := make([]*models.Rating, 0)
	for _, rating := range f.Ratings {
		if rating.Kind == kind {
			found := *rating
			ratings = append(ratings, &found)
		}
	}
	sort.Slice(ratings, func(i, j int) bool {
		if ratings[i].Elo != ratings[j].Elo {
			return ratings[i].Elo > ratings[j].Elo
		}
		return ratings[i].ParticipantID < ratings[j].ParticipantID
	})
	return ratings, nil
}

func (f *fakeRatingRepository) ListAll(ctx context.Context, exec repositories.SQLExecutor) ([]*models.Rating, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	ratings := make([]*models.Rating, 0, len(f.Ratings))
	for _, rating := range f.Ratings {
		found := *rating
		ratings = append(ratings, &found)
	}
	sort.Slice(ratings, func(i, j int) bool {
		if ratings[i].Kind != ratings[j].Kind {
			return ratings[i].Kind < ratings[j].Kind
		}
		return ratings[i].ParticipantID < ratings[j].ParticipantID
	})
	return ratings, nil
}

func (f *fakeRatingRepository) Upsert(ctx context.Context, exec repositories.SQLExecutor, rating *models.Rating) error {
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	stored := *rating
	stored.UpdatedAt = time.Now()
	f.Ratings[rating.Ref()] = &stored
	return nil
}

func (f *fakeRatingRepository) BatchUpsert(ctx context.Context, exec repositories.SQLExecutor, ratings []*models.Rating) error {
	f.BatchUpsertCalls++
	if f.OnBatchUpsert != nil {
		hook := f.OnBatchUpsert
		f.OnBatchUpsert = nil
		hook()
	}
	for _, rating := range ratings {
		if err := f.Upsert(ctx, exec, rating); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRatingRepository) DeleteAll(ctx context.Context, exec repositories.SQLExecutor) error {
	if f.DeleteAllErr != nil {
		return f.DeleteAllErr
	}
	f.Ratings = make(map[models.ParticipantRef]*models.Rating)
	return nil
}

// stateOf reads the stored state for assertions, defaulting to unrated.
func (f *fakeRatingRepository) stateOf(kind models.RatingKind, participantID int) models.RatingState {
	rating, ok := f.Ratings[models.ParticipantRef{Kind: kind, ID: participantID}]
	if !ok {
		return models.NewRatingState()
	}
	return rating.RatingState
}

// endregion

// region snapshot repository

type snapshotKey struct {
	matchID int
	ref     models.ParticipantRef
}

// fakeSnapshotRepository consults the match fake, which stands in for the
// SQL join on rounds and orders that GetBefore performs.
type fakeSnapshotRepository struct {
	Snapshots map[snapshotKey]*models.RatingSnapshot
	matches   *fakeMatchRepository

	UpsertErr error
	GetErr    error
	ListErr   error
	DeleteErr error
}

func newFakeSnapshotRepository(matches *fakeMatchRepository) *fakeSnapshotRepository {
	return &fakeSnapshotRepository{
		Snapshots: make(map[snapshotKey]*models.RatingSnapshot),
		matches:   matches,
	}
}

func (f *fakeSnapshotRepository) Upsert(ctx context.Context, exec repositories.SQLExecutor, snapshot *models.RatingSnapshot) error {
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	stored := *snapshot
	stored.CreatedAt = time.Now()
	f.Snapshots[snapshotKey{matchID: snapshot.MatchID, ref: snapshot.Ref()}] = &stored
	return nil
}

func (f *fakeSnapshotRepository) GetBefore(ctx context.Context, exec repositories.SQLExecutor, ref models.ParticipantRef, matchID int) (*models.RatingSnapshot, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	target, ok := f.matches.Matches[matchID]
	if !ok {
		return nil, repositories.ErrSnapshotNotFound
	}
	var best *models.RatingSnapshot
	var bestMatch *models.Match
	for key, snapshot := range f.Snapshots {
		if key.ref != ref {
			continue
		}
		match, ok := f.matches.Matches[key.matchID]
		if !ok || match.SessionID != target.SessionID || !playedBefore(match, target) {
			continue
		}
		if best == nil || playedBefore(bestMatch, match) {
			best, bestMatch = snapshot, match
		}
	}
	if best == nil {
		return nil, repositories.ErrSnapshotNotFound
	}
	found := *best
	return &found, nil
}

func playedBefore(a, b *models.Match) bool {
	if a.RoundNumber != b.RoundNumber {
		return a.RoundNumber < b.RoundNumber
	}
	return a.MatchOrder < b.MatchOrder
}

func (f *fakeSnapshotRepository) ListByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]*models.RatingSnapshot, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	snapshots := make([]*models.RatingSnapshot, 0)
	for key, snapshot := range f.Snapshots {
		if key.matchID == matchID {
			found := *snapshot
			snapshots = append(snapshots, &found)
		}
	}
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].Kind != snapshots[j].Kind {
			return snapshots[i].Kind < snapshots[j].Kind
		}
		return snapshots[i].ParticipantID < snapshots[j].ParticipantID
	})
	return snapshots, nil
}

func (f *fakeSnapshotRepository) DeleteByMatchIDs(ctx context.Context, exec repositories.SQLExecutor, matchIDs []int) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	doomed := make(map[int]bool, len(matchIDs))
	for _, id := range matchIDs {
		doomed[id] = true
	}
	for key := range f.Snapshots {
		if doomed[key.matchID] {
			delete(f.Snapshots, key)
		}
	}
	return nil
}

// endregion

// region history repository

type fakeHistoryRepository struct {
	Entries []*models.EloHistoryEntry
	nextID  int

	CreateErr error
	ListErr   error
	DeleteErr error
}

func newFakeHistoryRepository() *fakeHistoryRepository {
	return &fakeHistoryRepository{}
}

func (f *fakeHistoryRepository) BatchCreate(ctx context.Context, exec repositories.SQLExecutor, entries []*models.EloHistoryEntry) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	for _, entry := range entries {
		f.nextID++
		entry.ID = f.nextID
		entry.CreatedAt = time.Now()
		stored := *entry
		f.Entries = append(f.Entries, &stored)
	}
	return nil
}

func (f *fakeHistoryRepository) ListByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) ([]*models.EloHistoryEntry, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	entries := make([]*models.EloHistoryEntry, 0)
	for _, entry := range f.Entries {
		if entry.MatchID == matchID {
			found := *entry
			entries = append(entries, &found)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind < entries[j].Kind
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	return entries, nil
}

func (f *fakeHistoryRepository) ListByParticipant(ctx context.Context, exec repositories.SQLExecutor, ref models.ParticipantRef) ([]*models.EloHistoryEntry, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	entries := make([]*models.EloHistoryEntry, 0)
	for _, entry := range f.Entries {
		if entry.Kind == ref.Kind && entry.ParticipantID == ref.ID {
			found := *entry
			entries = append(entries, &found)
		}
	}
	return entries, nil
}

func (f *fakeHistoryRepository) DeleteByMatchIDs(ctx context.Context, exec repositories.SQLExecutor, matchIDs []int) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	doomed := make(map[int]bool, len(matchIDs))
	for _, id := range matchIDs {
		doomed[id] = true
	}
	kept := f.Entries[:0]
	for _, entry := range f.Entries {
		if !doomed[entry.MatchID] {
			kept = append(kept, entry)
		}
	}
	f.Entries = kept
	return nil
}

// matchEntries counts stored rows per match, for duplicate detection.
func (f *fakeHistoryRepository) matchEntries(matchID int) int {
	count := 0
	for _, entry := range f.Entries {
		if entry.MatchID == matchID {
			count++
		}
	}
	return count
}

// endregion

// region recalculation lock repository

// fakeLockRepository reproduces the conditional-upsert semantics under a
// mutex, so concurrent Acquire calls race exactly like the SQL CAS does.
type fakeLockRepository struct {
	mu    sync.Mutex
	Locks map[int]*models.RecalculationLock

	AcquireErr error
	ReleaseErr error
}

func newFakeLockRepository() *fakeLockRepository {
	return &fakeLockRepository{Locks: make(map[int]*models.RecalculationLock)}
}

func (f *fakeLockRepository) Acquire(ctx context.Context, exec repositories.SQLExecutor, sessionID int, token string, staleAfter time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AcquireErr != nil {
		return f.AcquireErr
	}
	existing, ok := f.Locks[sessionID]
	if ok && existing.Status == models.RecalculationStatusRunning {
		stale := staleAfter > 0 && time.Since(existing.StartedAt) > staleAfter
		if !stale {
			return repositories.ErrRecalculationLockHeld
		}
	}
	now := time.Now()
	f.Locks[sessionID] = &models.RecalculationLock{
		SessionID: sessionID,
		Status:    models.RecalculationStatusRunning,
		Token:     token,
		StartedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (f *fakeLockRepository) Release(ctx context.Context, exec repositories.SQLExecutor, sessionID int, token string, status models.RecalculationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReleaseErr != nil {
		return f.ReleaseErr
	}
	lock, ok := f.Locks[sessionID]
	if !ok || lock.Token != token || lock.Status != models.RecalculationStatusRunning {
		return repositories.ErrRecalculationLockNotHeld
	}
	lock.Status = status
	lock.UpdatedAt = time.Now()
	return nil
}

func (f *fakeLockRepository) Get(ctx context.Context, exec repositories.SQLExecutor, sessionID int) (*models.RecalculationLock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lock, ok := f.Locks[sessionID]
	if !ok {
		return &models.RecalculationLock{SessionID: sessionID, Status: models.RecalculationStatusIdle}, nil
	}
	found := *lock
	return &found, nil
}

func (f *fakeLockRepository) FailStale(ctx context.Context, exec repositories.SQLExecutor, staleAfter time.Duration) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	failed := make([]int, 0)
	for id, lock := range f.Locks {
		if lock.Status == models.RecalculationStatusRunning && time.Since(lock.StartedAt) > staleAfter {
			lock.Status = models.RecalculationStatusFailed
			lock.UpdatedAt = time.Now()
			failed = append(failed, id)
		}
	}
	sort.Ints(failed)
	return failed, nil
}

// holds reports whether the session's lock is currently running.
func (f *fakeLockRepository) holds(sessionID int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	lock, ok := f.Locks[sessionID]
	return ok && lock.Status == models.RecalculationStatusRunning
}

// endregion

// region archive store

type archivePut struct {
	Key         string
	ContentType string
	Body        []byte
}

type fakeArchiveStore struct {
	Puts   []archivePut
	PutErr error
}

func (f *fakeArchiveStore) Put(ctx context.Context, key, contentType string, reader io.Reader) (*storage.PutResult, error) {
	if f.PutErr != nil {
		return nil, f.PutErr
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.Puts = append(f.Puts, archivePut{Key: key, ContentType: contentType, Body: body})
	return &storage.PutResult{Key: key, Location: "https://archive.test/" + key}, nil
}

func (f *fakeArchiveStore) GetPublicURL(key string) string {
	return "https://archive.test/" + key
}

// endregion

// testEnv wires the full service stack over one shared in-memory dataset.
type testEnv struct {
	players   *fakePlayerRepository
	sessions  *fakeSessionRepository
	matches   *fakeMatchRepository
	teams     *fakeDoubleTeamRepository
	ratings   *fakeRatingRepository
	snapshots *fakeSnapshotRepository
	history   *fakeHistoryRepository
	locks     *fakeLockRepository
	archive   *fakeArchiveStore

	teamService    DoubleTeamService
	baseline       BaselineService
	playerService  PlayerService
	matchService   MatchService
	sessionService SessionService
	recalcService  RecalculationService
	summaryService SummaryService
	ratingService  RatingService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv() *testEnv {
	logger := discardLogger()

	env := &testEnv{
		players:  newFakePlayerRepository(),
		sessions: newFakeSessionRepository(),
		matches:  newFakeMatchRepository(),
		teams:    newFakeDoubleTeamRepository(),
		ratings:  newFakeRatingRepository(),
		history:  newFakeHistoryRepository(),
		locks:    newFakeLockRepository(),
		archive:  &fakeArchiveStore{},
	}
	env.snapshots = newFakeSnapshotRepository(env.matches)

	env.teamService = NewDoubleTeamService(env.teams)
	env.baseline = NewBaselineService(env.sessions, env.matches, env.teamService)
	env.playerService = NewPlayerService(env.players)
	env.matchService = NewMatchService(
		env.players, env.sessions, env.matches,
		env.ratings, env.snapshots, env.history,
		env.teamService, nil,
	)
	env.sessionService = NewSessionService(
		newStubDB(), env.sessions, env.matches,
		env.ratings, env.snapshots, env.history,
		env.baseline, env.archive, nil, logger,
	)
	env.recalcService = NewRecalculationService(
		env.matches, env.sessions, env.ratings,
		env.snapshots, env.history, env.locks,
		env.baseline, nil, logger, 10*time.Minute,
	)
	env.summaryService = NewSummaryService(env.sessions, env.players, env.teams, env.baseline)
	env.ratingService = NewRatingService(env.ratings, env.players, env.teams)
	return env
}

// seedPlayers registers players named "P1".."Pn" and returns their ids,
// which are assigned sequentially from 1.
func (e *testEnv) seedPlayers(count int) []int {
	ids := make([]int, 0, count)
	for i := 1; i <= count; i++ {
		player := &models.Player{Name: fmt.Sprintf("P%d", i)}
		if err := e.players.Create(context.Background(), nil, player); err != nil {
			panic(err)
		}
		ids = append(ids, player.ID)
	}
	return ids
}

func (e *testEnv) startSession(t *testing.T, name string) *models.Session {
	t.Helper()
	session, err := e.sessionService.Create(context.Background(), name)
	require.NoError(t, err)
	return session
}

func (e *testEnv) completeSession(t *testing.T, id int) {
	t.Helper()
	_, err := e.sessionService.Complete(context.Background(), id)
	require.NoError(t, err)
}

// playSingles creates a singles match and immediately records its result.
func (e *testEnv) playSingles(t *testing.T, sessionID, round, order, p1, p2, s1, s2 int) *models.Match {
	t.Helper()
	match, err := e.matchService.Create(context.Background(), CreateMatchInput{
		SessionID:   sessionID,
		RoundNumber: round,
		MatchOrder:  order,
		Type:        models.MatchTypeSingles,
		Player1ID:   p1,
		Player2ID:   p2,
	})
	require.NoError(t, err)
	match, err = e.matchService.RecordResult(context.Background(), match.ID, s1, s2)
	require.NoError(t, err)
	return match
}

// playDoubles creates a doubles match for (p1,p2) vs (p3,p4) and records it.
func (e *testEnv) playDoubles(t *testing.T, sessionID, round, order, p1, p2, p3, p4, s1, s2 int) *models.Match {
	t.Helper()
	match, err := e.matchService.Create(context.Background(), CreateMatchInput{
		SessionID:   sessionID,
		RoundNumber: round,
		MatchOrder:  order,
		Type:        models.MatchTypeDoubles,
		Player1ID:   p1,
		Player2ID:   p2,
		Player3ID:   &p3,
		Player4ID:   &p4,
	})
	require.NoError(t, err)
	match, err = e.matchService.RecordResult(context.Background(), match.ID, s1, s2)
	require.NoError(t, err)
	return match
}

// singlesState builds the expected state for a player with no draws, where
// sets track wins and losses one for one.
func singlesState(elo, wins, losses int) models.RatingState {
	return models.RatingState{
		Elo:           elo,
		MatchesPlayed: wins + losses,
		Wins:          wins,
		Losses:        losses,
		SetsWon:       wins,
		SetsLost:      losses,
	}
}
