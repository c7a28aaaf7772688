package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"studyquiz-service/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore. It also
// serves as the scratch store for guest attempts, in which case a retention
// window bounds how long attempts are kept.
type AttemptStore struct {
	mu        sync.RWMutex
	attempts  map[string]storedAttempt
	seq       int64
	retention time.Duration
	now       func() time.Time
	// attempt ids in insertion order, only tracked with a retention window
	arrivals []arrival
}

type storedAttempt struct {
	attempt domain.Attempt
	seq     int64
	addedAt time.Time
}

type arrival struct {
	id      string
	addedAt time.Time
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]storedAttempt), now: time.Now}
}

// NewScratchAttemptStore forgets attempts retention after they were opened,
// whether or not they were completed.
func NewScratchAttemptStore(retention time.Duration) *AttemptStore {
	return NewScratchAttemptStoreWithClock(retention, time.Now)
}

// NewScratchAttemptStoreWithClock is test-only for deterministic expiry.
func NewScratchAttemptStoreWithClock(retention time.Duration, now func() time.Time) *AttemptStore {
	return &AttemptStore{attempts: make(map[string]storedAttempt), retention: retention, now: now}
}

// Len reports how many attempts are currently held.
func (s *AttemptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}

func (s *AttemptStore) expired(stored storedAttempt, now time.Time) bool {
	return s.retention > 0 && !now.Before(stored.addedAt.Add(s.retention))
}

// prune drops expired attempts. Callers hold the write lock.
func (s *AttemptStore) prune(now time.Time) {
	if s.retention <= 0 {
		return
	}
	i := 0
	for ; i < len(s.arrivals); i++ {
		a := s.arrivals[i]
		if now.Before(a.addedAt.Add(s.retention)) {
			break
		}
		delete(s.attempts, a.id)
	}
	s.arrivals = s.arrivals[i:]
}

func (s *AttemptStore) Open(_ context.Context, attempt domain.Attempt, maxAttempts *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.prune(now)

	if attempt.LearnerID != "" {
		completed := 0
		for _, stored := range s.attempts {
			if stored.attempt.QuizID != attempt.QuizID || stored.attempt.LearnerID != attempt.LearnerID {
				continue
			}
			if stored.attempt.Open() {
				return domain.ErrAttemptInProgress
			}
			completed++
		}
		if maxAttempts != nil && completed >= *maxAttempts {
			return domain.ErrAttemptLimitExceeded
		}
	}

	s.seq++
	s.attempts[attempt.ID] = storedAttempt{attempt: cloneAttempt(attempt), seq: s.seq, addedAt: now}
	if s.retention > 0 {
		s.arrivals = append(s.arrivals, arrival{id: attempt.ID, addedAt: now})
	}
	return nil
}

func (s *AttemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.attempts[attemptID]
	if !ok || s.expired(stored, s.now()) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(stored.attempt), nil
}

func (s *AttemptStore) SaveAnswer(_ context.Context, attemptID string, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.attempts[attemptID]
	if !ok || s.expired(stored, s.now()) {
		return domain.ErrAttemptNotFound
	}
	if !stored.attempt.Open() {
		return domain.ErrAlreadyCompleted
	}
	stored.attempt.Answers = upsertAnswer(stored.attempt.Answers, cloneAnswers([]domain.Answer{answer})[0])
	s.attempts[attemptID] = stored
	return nil
}

func (s *AttemptStore) Complete(_ context.Context, attempt domain.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.attempts[attempt.ID]
	if !ok || s.expired(stored, s.now()) {
		return domain.ErrAttemptNotFound
	}
	if !stored.attempt.Open() {
		return domain.ErrAlreadyCompleted
	}
	stored.attempt = cloneAttempt(attempt)
	s.attempts[attempt.ID] = stored
	return nil
}

func (s *AttemptStore) ListByLearner(_ context.Context, learnerID string) ([]domain.Attempt, error) {
	return s.list(func(a domain.Attempt) bool { return a.LearnerID == learnerID }), nil
}

func (s *AttemptStore) ListByQuiz(_ context.Context, quizID, learnerID string) ([]domain.Attempt, error) {
	return s.list(func(a domain.Attempt) bool {
		return a.QuizID == quizID && (learnerID == "" || a.LearnerID == learnerID)
	}), nil
}

func (s *AttemptStore) CountCompleted(_ context.Context, quizID, learnerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, stored := range s.attempts {
		a := stored.attempt
		if a.QuizID == quizID && a.LearnerID == learnerID && !a.Open() {
			count++
		}
	}
	return count, nil
}

func (s *AttemptStore) Delete(_ context.Context, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[attemptID]; !ok {
		return domain.ErrAttemptNotFound
	}
	delete(s.attempts, attemptID)
	return nil
}

func (s *AttemptStore) list(match func(domain.Attempt) bool) []domain.Attempt {
	s.mu.RLock()
	now := s.now()
	matched := make([]storedAttempt, 0)
	for _, stored := range s.attempts {
		if match(stored.attempt) && !s.expired(stored, now) {
			matched = append(matched, stored)
		}
	}
	s.mu.RUnlock()

	// most recent first; insertion order breaks ties
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.attempt.StartedAt.Equal(b.attempt.StartedAt) {
			return a.attempt.StartedAt.After(b.attempt.StartedAt)
		}
		return a.seq > b.seq
	})
	out := make([]domain.Attempt, 0, len(matched))
	for _, stored := range matched {
		out = append(out, cloneAttempt(stored.attempt))
	}
	return out
}

func upsertAnswer(answers []domain.Answer, answer domain.Answer) []domain.Answer {
	for i, existing := range answers {
		if existing.QuestionID == answer.QuestionID {
			answers[i] = answer
			return answers
		}
	}
	return append(answers, answer)
}

func cloneAttempt(a domain.Attempt) domain.Attempt {
	a.Answers = cloneAnswers(a.Answers)
	if a.CompletedAt != nil {
		completed := *a.CompletedAt
		a.CompletedAt = &completed
	}
	if a.Result != nil {
		result := *a.Result
		result.Questions = append([]domain.QuestionResult(nil), a.Result.Questions...)
		if a.Result.Pass != nil {
			pass := *a.Result.Pass
			result.Pass = &pass
		}
		a.Result = &result
	}
	return a
}

func cloneAnswers(answers []domain.Answer) []domain.Answer {
	if answers == nil {
		return []domain.Answer{}
	}
	out := make([]domain.Answer, len(answers))
	for i, answer := range answers {
		answer.OptionIDs = append([]string(nil), answer.OptionIDs...)
		if len(answer.OptionIDs) == 0 {
			answer.OptionIDs = nil
		}
		out[i] = answer
	}
	return out
}
