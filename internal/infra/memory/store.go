package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"quizhub-service/internal/domain"
	"quizhub-service/internal/store"
)

// Store is an in-memory implementation of store.Store.
// Transactions are serialized and run against a private copy of the data,
// which replaces the live copy only when the transaction function succeeds.
// Inside a transaction use the repository passed to the function, never the
// Store itself.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock is test-only for deterministic timestamps.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{data: newState(), now: now}
}

// AddUser seeds a user. An empty status means active.
func (s *Store) AddUser(u domain.User) {
	if u.Status == "" {
		u.Status = domain.UserActive
	}
	_ = s.write(func(r *repo) error {
		r.st.users[u.ID] = u
		return nil
	})
}

func (s *Store) AddGuest(g domain.Guest) {
	_ = s.write(func(r *repo) error {
		r.st.guests[g.ID] = g
		return nil
	})
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo store.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &repo{st: work, now: s.now}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) read(fn func(r *repo) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&repo{st: s.data, now: s.now})
}

func (s *Store) write(fn func(r *repo) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&repo{st: s.data, now: s.now})
}

func (s *Store) GetUser(ctx context.Context, id int64) (u domain.User, err error) {
	err = s.read(func(r *repo) error { u, err = r.GetUser(ctx, id); return err })
	return u, err
}

func (s *Store) GetGuest(ctx context.Context, id int64) (g domain.Guest, err error) {
	err = s.read(func(r *repo) error { g, err = r.GetGuest(ctx, id); return err })
	return g, err
}

func (s *Store) SaveUserProgress(ctx context.Context, u domain.User) error {
	return s.write(func(r *repo) error { return r.SaveUserProgress(ctx, u) })
}

func (s *Store) ListActiveUsers(ctx context.Context) (users []domain.User, err error) {
	err = s.read(func(r *repo) error { users, err = r.ListActiveUsers(ctx); return err })
	return users, err
}

func (s *Store) SaveUserRanks(ctx context.Context, ranks []domain.UserRank) error {
	return s.write(func(r *repo) error { return r.SaveUserRanks(ctx, ranks) })
}

func (s *Store) CreateAttempt(ctx context.Context, a domain.Attempt) error {
	return s.write(func(r *repo) error { return r.CreateAttempt(ctx, a) })
}

func (s *Store) GetAttempt(ctx context.Context, id uuid.UUID) (a domain.Attempt, err error) {
	err = s.read(func(r *repo) error { a, err = r.GetAttempt(ctx, id); return err })
	return a, err
}

func (s *Store) LockAttempt(ctx context.Context, id uuid.UUID) (domain.Attempt, error) {
	return s.GetAttempt(ctx, id)
}

func (s *Store) FinishAttempt(ctx context.Context, a domain.Attempt, answers []domain.Answer) error {
	return s.write(func(r *repo) error { return r.FinishAttempt(ctx, a, answers) })
}

func (s *Store) ListAnswers(ctx context.Context, attemptID uuid.UUID) (answers []domain.Answer, err error) {
	err = s.read(func(r *repo) error { answers, err = r.ListAnswers(ctx, attemptID); return err })
	return answers, err
}

func (s *Store) AttemptStats(ctx context.Context, userID int64, f domain.AttemptFilter) (stats domain.AttemptStats, err error) {
	err = s.read(func(r *repo) error { stats, err = r.AttemptStats(ctx, userID, f); return err })
	return stats, err
}

func (s *Store) ListCompletedAttempts(ctx context.Context, quizID int64) (attempts []domain.Attempt, err error) {
	err = s.read(func(r *repo) error { attempts, err = r.ListCompletedAttempts(ctx, quizID); return err })
	return attempts, err
}

func (s *Store) RecentAttempts(ctx context.Context, owner domain.Owner, limit int) (attempts []domain.Attempt, err error) {
	err = s.read(func(r *repo) error { attempts, err = r.RecentAttempts(ctx, owner, limit); return err })
	return attempts, err
}

func (s *Store) GetOrCreateLeaderboard(ctx context.Context, scope domain.Scope, name string) (lb domain.Leaderboard, err error) {
	err = s.write(func(r *repo) error { lb, err = r.GetOrCreateLeaderboard(ctx, scope, name); return err })
	return lb, err
}

func (s *Store) FindLeaderboard(ctx context.Context, scope domain.Scope) (lb domain.Leaderboard, err error) {
	err = s.read(func(r *repo) error { lb, err = r.FindLeaderboard(ctx, scope); return err })
	return lb, err
}

func (s *Store) FindEntry(ctx context.Context, leaderboardID int64, owner domain.Owner) (e domain.LeaderboardEntry, err error) {
	err = s.read(func(r *repo) error { e, err = r.FindEntry(ctx, leaderboardID, owner); return err })
	return e, err
}

func (s *Store) SaveEntry(ctx context.Context, e *domain.LeaderboardEntry) error {
	return s.write(func(r *repo) error { return r.SaveEntry(ctx, e) })
}

func (s *Store) ListEntries(ctx context.Context, leaderboardID int64) (entries []domain.LeaderboardEntry, err error) {
	err = s.read(func(r *repo) error { entries, err = r.ListEntries(ctx, leaderboardID); return err })
	return entries, err
}

func (s *Store) TopEntries(ctx context.Context, leaderboardID int64, limit int) (entries []domain.LeaderboardEntry, err error) {
	err = s.read(func(r *repo) error { entries, err = r.TopEntries(ctx, leaderboardID, limit); return err })
	return entries, err
}

func (s *Store) SetRanks(ctx context.Context, leaderboardID int64, ranks map[int64]int) error {
	return s.write(func(r *repo) error { return r.SetRanks(ctx, leaderboardID, ranks) })
}

func (s *Store) DeleteEntries(ctx context.Context, leaderboardID int64, ids []int64) error {
	return s.write(func(r *repo) error { return r.DeleteEntries(ctx, leaderboardID, ids) })
}

func (s *Store) ReplaceEntries(ctx context.Context, leaderboardID int64, entries []domain.LeaderboardEntry) error {
	return s.write(func(r *repo) error { return r.ReplaceEntries(ctx, leaderboardID, entries) })
}

type state struct {
	users        map[int64]domain.User
	guests       map[int64]domain.Guest
	attempts     map[uuid.UUID]domain.Attempt
	attemptOrder []uuid.UUID
	answers      map[uuid.UUID][]domain.Answer
	boards       map[int64]domain.Leaderboard
	boardByScope map[domain.Scope]int64
	entries      map[int64][]domain.LeaderboardEntry
	nextBoardID  int64
	nextEntryID  int64
}

func newState() *state {
	return &state{
		users:        make(map[int64]domain.User),
		guests:       make(map[int64]domain.Guest),
		attempts:     make(map[uuid.UUID]domain.Attempt),
		answers:      make(map[uuid.UUID][]domain.Answer),
		boards:       make(map[int64]domain.Leaderboard),
		boardByScope: make(map[domain.Scope]int64),
		entries:      make(map[int64][]domain.LeaderboardEntry),
	}
}

// clone copies every map and slice. Pointer fields inside records are shared;
// the repository only ever replaces them, never writes through them.
func (st *state) clone() *state {
	c := &state{
		users:        make(map[int64]domain.User, len(st.users)),
		guests:       make(map[int64]domain.Guest, len(st.guests)),
		attempts:     make(map[uuid.UUID]domain.Attempt, len(st.attempts)),
		attemptOrder: append([]uuid.UUID(nil), st.attemptOrder...),
		answers:      make(map[uuid.UUID][]domain.Answer, len(st.answers)),
		boards:       make(map[int64]domain.Leaderboard, len(st.boards)),
		boardByScope: make(map[domain.Scope]int64, len(st.boardByScope)),
		entries:      make(map[int64][]domain.LeaderboardEntry, len(st.entries)),
		nextBoardID:  st.nextBoardID,
		nextEntryID:  st.nextEntryID,
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.guests {
		c.guests[k] = v
	}
	for k, v := range st.attempts {
		c.attempts[k] = v
	}
	for k, v := range st.answers {
		c.answers[k] = append([]domain.Answer(nil), v...)
	}
	for k, v := range st.boards {
		c.boards[k] = v
	}
	for k, v := range st.boardByScope {
		c.boardByScope[k] = v
	}
	for k, v := range st.entries {
		c.entries[k] = append([]domain.LeaderboardEntry(nil), v...)
	}
	return c
}

// repo implements store.Repository over one state without locking.
type repo struct {
	st  *state
	now func() time.Time
}

func (r *repo) GetUser(_ context.Context, id int64) (domain.User, error) {
	u, ok := r.st.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *repo) GetGuest(_ context.Context, id int64) (domain.Guest, error) {
	g, ok := r.st.guests[id]
	if !ok {
		return domain.Guest{}, domain.ErrGuestNotFound
	}
	return g, nil
}

func (r *repo) SaveUserProgress(_ context.Context, u domain.User) error {
	cur, ok := r.st.users[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	cur.Points = u.Points
	cur.StreakDays = u.StreakDays
	cur.LastStreakDate = u.LastStreakDate
	r.st.users[u.ID] = cur
	return nil
}

func (r *repo) ListActiveUsers(_ context.Context) ([]domain.User, error) {
	users := make([]domain.User, 0, len(r.st.users))
	for _, u := range r.st.users {
		if u.Status == domain.UserActive {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *repo) SaveUserRanks(_ context.Context, ranks []domain.UserRank) error {
	for _, rk := range ranks {
		u, ok := r.st.users[rk.UserID]
		if !ok {
			continue
		}
		global := rk.GlobalRank
		u.GlobalRank = &global
		u.CountryRank = nil
		if rk.CountryRank != nil {
			country := *rk.CountryRank
			u.CountryRank = &country
		}
		r.st.users[rk.UserID] = u
	}
	return nil
}

func (r *repo) CreateAttempt(_ context.Context, a domain.Attempt) error {
	if _, exists := r.st.attempts[a.ID]; exists {
		return fmt.Errorf("attempt %s already exists: %w", a.ID, domain.ErrContractViolation)
	}
	r.st.attempts[a.ID] = a
	r.st.attemptOrder = append(r.st.attemptOrder, a.ID)
	return nil
}

func (r *repo) GetAttempt(_ context.Context, id uuid.UUID) (domain.Attempt, error) {
	a, ok := r.st.attempts[id]
	if !ok {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return a, nil
}

func (r *repo) LockAttempt(ctx context.Context, id uuid.UUID) (domain.Attempt, error) {
	return r.GetAttempt(ctx, id)
}

func (r *repo) FinishAttempt(_ context.Context, a domain.Attempt, answers []domain.Answer) error {
	if _, ok := r.st.attempts[a.ID]; !ok {
		return domain.ErrAttemptNotFound
	}
	seen := make(map[int64]struct{}, len(answers))
	for _, ans := range answers {
		if _, dup := seen[ans.QuestionID]; dup {
			return domain.ErrDuplicateAnswer
		}
		seen[ans.QuestionID] = struct{}{}
	}
	r.st.attempts[a.ID] = a
	if len(answers) > 0 {
		r.st.answers[a.ID] = append([]domain.Answer(nil), answers...)
	}
	return nil
}

func (r *repo) ListAnswers(_ context.Context, attemptID uuid.UUID) ([]domain.Answer, error) {
	return append([]domain.Answer(nil), r.st.answers[attemptID]...), nil
}

func (r *repo) AttemptStats(_ context.Context, userID int64, f domain.AttemptFilter) (domain.AttemptStats, error) {
	var stats domain.AttemptStats
	var sum float64
	for _, id := range r.st.attemptOrder {
		a := r.st.attempts[id]
		if a.Status != domain.AttemptCompleted {
			continue
		}
		if uid, ok := a.Owner.UserID(); !ok || uid != userID {
			continue
		}
		if f.CategoryID != nil && (a.CategoryID == nil || *a.CategoryID != *f.CategoryID) {
			continue
		}
		if f.Since != nil && (a.CompletedAt == nil || a.CompletedAt.Before(*f.Since)) {
			continue
		}
		stats.Count++
		sum += a.Percentage
		stats.TotalScore += a.Score
		if a.Percentage > stats.BestPercentage {
			stats.BestPercentage = a.Percentage
		}
	}
	if stats.Count > 0 {
		stats.AveragePercentage = sum / float64(stats.Count)
	}
	return stats, nil
}

func (r *repo) ListCompletedAttempts(_ context.Context, quizID int64) ([]domain.Attempt, error) {
	var out []domain.Attempt
	for _, id := range r.st.attemptOrder {
		a := r.st.attempts[id]
		if a.QuizID == quizID && a.Status == domain.AttemptCompleted {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *repo) RecentAttempts(_ context.Context, owner domain.Owner, limit int) ([]domain.Attempt, error) {
	var out []domain.Attempt
	for _, id := range r.st.attemptOrder {
		a := r.st.attempts[id]
		if a.Owner == owner && a.Status == domain.AttemptCompleted {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(*out[j].CompletedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *repo) GetOrCreateLeaderboard(_ context.Context, scope domain.Scope, name string) (domain.Leaderboard, error) {
	if id, ok := r.st.boardByScope[scope]; ok {
		return r.st.boards[id], nil
	}
	r.st.nextBoardID++
	lb := domain.Leaderboard{
		ID:        r.st.nextBoardID,
		Name:      name,
		Scope:     scope,
		CreatedAt: r.now(),
	}
	r.st.boards[lb.ID] = lb
	r.st.boardByScope[scope] = lb.ID
	return lb, nil
}

func (r *repo) FindLeaderboard(_ context.Context, scope domain.Scope) (domain.Leaderboard, error) {
	id, ok := r.st.boardByScope[scope]
	if !ok {
		return domain.Leaderboard{}, domain.ErrLeaderboardNotFound
	}
	return r.st.boards[id], nil
}

func (r *repo) FindEntry(_ context.Context, leaderboardID int64, owner domain.Owner) (domain.LeaderboardEntry, error) {
	for _, e := range r.st.entries[leaderboardID] {
		if e.Owner == owner {
			return e, nil
		}
	}
	return domain.LeaderboardEntry{}, domain.ErrEntryNotFound
}

func (r *repo) SaveEntry(_ context.Context, e *domain.LeaderboardEntry) error {
	if _, ok := r.st.boards[e.LeaderboardID]; !ok {
		return domain.ErrLeaderboardNotFound
	}
	entries := r.st.entries[e.LeaderboardID]
	if e.ID == 0 {
		for _, cur := range entries {
			if cur.Owner == e.Owner {
				return fmt.Errorf("entry for %s on board %d exists: %w", e.Owner, e.LeaderboardID, domain.ErrContractViolation)
			}
		}
		r.st.nextEntryID++
		e.ID = r.st.nextEntryID
		r.st.entries[e.LeaderboardID] = append(entries, *e)
		return nil
	}
	for i, cur := range entries {
		if cur.ID == e.ID {
			entries[i] = *e
			return nil
		}
	}
	return domain.ErrEntryNotFound
}

func (r *repo) ListEntries(_ context.Context, leaderboardID int64) ([]domain.LeaderboardEntry, error) {
	return append([]domain.LeaderboardEntry(nil), r.st.entries[leaderboardID]...), nil
}

func (r *repo) TopEntries(_ context.Context, leaderboardID int64, limit int) ([]domain.LeaderboardEntry, error) {
	entries := append([]domain.LeaderboardEntry(nil), r.st.entries[leaderboardID]...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Rank != entries[j].Rank {
			return entries[i].Rank < entries[j].Rank
		}
		return entries[i].ID < entries[j].ID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].DisplayName = r.displayName(entries[i].Owner)
	}
	return entries, nil
}

func (r *repo) displayName(o domain.Owner) string {
	if id, ok := o.UserID(); ok {
		return r.st.users[id].Username
	}
	if id, ok := o.GuestID(); ok {
		return r.st.guests[id].DisplayName
	}
	return ""
}

func (r *repo) SetRanks(_ context.Context, leaderboardID int64, ranks map[int64]int) error {
	entries := r.st.entries[leaderboardID]
	for i := range entries {
		if rank, ok := ranks[entries[i].ID]; ok {
			entries[i].Rank = rank
		}
	}
	return nil
}

func (r *repo) DeleteEntries(_ context.Context, leaderboardID int64, ids []int64) error {
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	entries := r.st.entries[leaderboardID]
	kept := entries[:0]
	for _, e := range entries {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	r.st.entries[leaderboardID] = kept
	return nil
}

func (r *repo) ReplaceEntries(_ context.Context, leaderboardID int64, entries []domain.LeaderboardEntry) error {
	if _, ok := r.st.boards[leaderboardID]; !ok {
		return domain.ErrLeaderboardNotFound
	}
	fresh := make([]domain.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		r.st.nextEntryID++
		e.ID = r.st.nextEntryID
		e.LeaderboardID = leaderboardID
		e.DisplayName = ""
		fresh = append(fresh, e)
	}
	r.st.entries[leaderboardID] = fresh
	return nil
}
