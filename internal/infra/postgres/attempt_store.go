package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"studyquiz-service/internal/domain"
)

const uniqueViolation = "23505"

const attemptColumns = `id, quiz_id, learner_id, seed, started_at, completed_at, answers, result`

// AttemptStore keeps the attempt ledger in the attempts table.
// Opening serializes on a per (quiz, learner) advisory lock; the partial
// unique index attempts_one_open backs it up.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) Open(ctx context.Context, attempt domain.Attempt, maxAttempts *int) error {
	answers, err := json.Marshal(nonNilAnswers(attempt.Answers))
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if attempt.LearnerID != "" {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, attempt.QuizID+":"+attempt.LearnerID); err != nil {
			return fmt.Errorf("lock attempts: %w", err)
		}
		var open, completed int
		err := tx.QueryRow(ctx, `
			SELECT count(*) FILTER (WHERE completed_at IS NULL),
			       count(*) FILTER (WHERE completed_at IS NOT NULL)
			FROM attempts WHERE quiz_id=$1 AND learner_id=$2`,
			attempt.QuizID, attempt.LearnerID).Scan(&open, &completed)
		if err != nil {
			return fmt.Errorf("count attempts: %w", err)
		}
		if open > 0 {
			return domain.ErrAttemptInProgress
		}
		if maxAttempts != nil && completed >= *maxAttempts {
			return domain.ErrAttemptLimitExceeded
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO attempts (id, quiz_id, learner_id, seed, started_at, answers)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		attempt.ID, attempt.QuizID, attempt.LearnerID, int64(attempt.Seed), attempt.StartedAt, string(answers))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "attempts_one_open" {
			return domain.ErrAttemptInProgress
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id=$1`, attemptID)
	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return attempt, nil
}

// SaveAnswer merges one answer into the jsonb array in a single UPDATE, which
// holds the row lock for the whole read-modify-write.
func (s *AttemptStore) SaveAnswer(ctx context.Context, attemptID string, answer domain.Answer) error {
	raw, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE attempts SET answers = CASE
			WHEN answers @> jsonb_build_array(jsonb_build_object('questionId', $2::text)) THEN (
				SELECT jsonb_agg(CASE WHEN e->>'questionId' = $2::text THEN $3::jsonb ELSE e END ORDER BY pos)
				FROM jsonb_array_elements(answers) WITH ORDINALITY AS t(e, pos))
			ELSE answers || jsonb_build_array($3::jsonb)
		END
		WHERE id=$1 AND completed_at IS NULL`,
		attemptID, answer.QuestionID, string(raw))
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.closedOrMissing(ctx, attemptID)
	}
	return nil
}

func (s *AttemptStore) Complete(ctx context.Context, attempt domain.Attempt) error {
	answers, err := json.Marshal(nonNilAnswers(attempt.Answers))
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	result, err := json.Marshal(attempt.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE attempts SET completed_at=$2, answers=$3::jsonb, result=$4::jsonb
		WHERE id=$1 AND completed_at IS NULL`,
		attempt.ID, attempt.CompletedAt, string(answers), string(result))
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.closedOrMissing(ctx, attempt.ID)
	}
	return nil
}

func (s *AttemptStore) closedOrMissing(ctx context.Context, attemptID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM attempts WHERE id=$1)`, attemptID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check attempt: %w", err)
	}
	if !exists {
		return domain.ErrAttemptNotFound
	}
	return domain.ErrAlreadyCompleted
}

func (s *AttemptStore) ListByLearner(ctx context.Context, learnerID string) ([]domain.Attempt, error) {
	return s.list(ctx, `SELECT `+attemptColumns+` FROM attempts
		WHERE learner_id=$1 ORDER BY started_at DESC, seq DESC`, learnerID)
}

func (s *AttemptStore) ListByQuiz(ctx context.Context, quizID, learnerID string) ([]domain.Attempt, error) {
	return s.list(ctx, `SELECT `+attemptColumns+` FROM attempts
		WHERE quiz_id=$1 AND ($2::text = '' OR learner_id=$2::text)
		ORDER BY started_at DESC, seq DESC`, quizID, learnerID)
}

func (s *AttemptStore) CountCompleted(ctx context.Context, quizID, learnerID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM attempts
		WHERE quiz_id=$1 AND learner_id=$2 AND completed_at IS NOT NULL`,
		quizID, learnerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed: %w", err)
	}
	return count, nil
}

func (s *AttemptStore) Delete(ctx context.Context, attemptID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM attempts WHERE id=$1`, attemptID)
	if err != nil {
		return fmt.Errorf("delete attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *AttemptStore) list(ctx context.Context, query string, args ...interface{}) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	attempts := []domain.Attempt{}
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	return attempts, nil
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var (
		attempt     domain.Attempt
		seed        int64
		completedAt *time.Time
		answers     []byte
		result      []byte
	)
	err := row.Scan(&attempt.ID, &attempt.QuizID, &attempt.LearnerID, &seed,
		&attempt.StartedAt, &completedAt, &answers, &result)
	if err != nil {
		return domain.Attempt{}, err
	}
	attempt.Seed = uint64(seed)
	attempt.StartedAt = attempt.StartedAt.UTC()
	if completedAt != nil {
		completed := completedAt.UTC()
		attempt.CompletedAt = &completed
	}
	if err := json.Unmarshal(answers, &attempt.Answers); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	if len(result) > 0 {
		var score domain.ScoreResult
		if err := json.Unmarshal(result, &score); err != nil {
			return domain.Attempt{}, fmt.Errorf("unmarshal result: %w", err)
		}
		attempt.Result = &score
	}
	return attempt, nil
}

func nonNilAnswers(answers []domain.Answer) []domain.Answer {
	if answers == nil {
		return []domain.Answer{}
	}
	return answers
}
