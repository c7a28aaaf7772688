package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"studyquiz-service/internal/domain"
)

// AttemptStore keeps the attempt ledger in Redis.
// Attempts are stored as:   SET  attempt:{id} {json}
// Answers of open attempts: HSET attempt:{id}:answers {questionID} {json}, RPUSH attempt:{id}:answered {questionID}
// Listing indexes:          ZADD attempts:learner:{l} / attempts:quiz:{q} / attempts:quiz-learner:{len(q)}:{q}:{l} {startedAtMicros} {id}
// Open attempt marker:      SET  attempts:open:{len(q)}:{q}:{l} {id}
// Completed counter:        INCR attempts:completed:{len(q)}:{q}:{l}
// Keys naming both a quiz and a learner carry the quiz id length so ids
// containing ':' cannot collide. Check-and-append, answer upserts and
// completion run as Lua scripts so they are atomic.
type AttemptStore struct {
	client *redis.Client
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

const (
	scriptOK        = 1
	scriptMissing   = -1
	scriptConflict  = -2
	scriptLimit     = -3
	scriptCompleted = -4
)

// KEYS: attempt, open, completed, learner index, quiz index, quiz+learner index
// ARGV: json, id, score, max (-1 = unlimited), guest flag
var openScript = redis.NewScript(`
if ARGV[5] == '0' then
  if redis.call('EXISTS', KEYS[2]) == 1 then return -2 end
  local max = tonumber(ARGV[4])
  if max >= 0 then
    local done = tonumber(redis.call('GET', KEYS[3]) or '0')
    if done >= max then return -3 end
  end
  redis.call('SET', KEYS[2], ARGV[2])
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[4], ARGV[3], ARGV[2])
redis.call('ZADD', KEYS[5], ARGV[3], ARGV[2])
redis.call('ZADD', KEYS[6], ARGV[3], ARGV[2])
return 1
`)

// KEYS: attempt, answers hash, answered list
// ARGV: question id, answer json
var saveAnswerScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return -1 end
if cjson.decode(raw)['completedAt'] then return -4 end
if redis.call('HSET', KEYS[2], ARGV[1], ARGV[2]) == 1 then
  redis.call('RPUSH', KEYS[3], ARGV[1])
end
return 1
`)

// KEYS: attempt, open, completed, answers hash, answered list
// ARGV: json, guest flag
var completeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return -1 end
if cjson.decode(raw)['completedAt'] then return -4 end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('DEL', KEYS[4], KEYS[5])
if ARGV[2] == '0' then
  redis.call('DEL', KEYS[2])
  redis.call('INCR', KEYS[3])
end
return 1
`)

// KEYS: attempt, open, completed, learner index, quiz index, quiz+learner index, answers hash, answered list
// ARGV: id, guest flag
var deleteScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return -1 end
if ARGV[2] == '0' then
  if cjson.decode(raw)['completedAt'] then
    if tonumber(redis.call('GET', KEYS[3]) or '0') > 0 then redis.call('DECR', KEYS[3]) end
  elseif redis.call('GET', KEYS[2]) == ARGV[1] then
    redis.call('DEL', KEYS[2])
  end
end
redis.call('DEL', KEYS[1], KEYS[7], KEYS[8])
redis.call('ZREM', KEYS[4], ARGV[1])
redis.call('ZREM', KEYS[5], ARGV[1])
redis.call('ZREM', KEYS[6], ARGV[1])
return 1
`)

func (s *AttemptStore) Open(ctx context.Context, attempt domain.Attempt, maxAttempts *int) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	limit := -1
	if maxAttempts != nil {
		limit = *maxAttempts
	}
	keys := []string{
		attemptKey(attempt.ID),
		openKey(attempt.QuizID, attempt.LearnerID),
		completedKey(attempt.QuizID, attempt.LearnerID),
		learnerIndexKey(attempt.LearnerID),
		quizIndexKey(attempt.QuizID),
		quizLearnerIndexKey(attempt.QuizID, attempt.LearnerID),
	}
	code, err := openScript.Run(ctx, s.client, keys, raw, attempt.ID, score(attempt), limit, guestFlag(attempt)).Int()
	if err != nil {
		return fmt.Errorf("open attempt: %w", err)
	}
	return scriptError(code)
}

// Get reads the attempt and its pending answers in one transaction.
func (s *AttemptStore) Get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	var (
		rawCmd      *redis.StringCmd
		answeredCmd *redis.StringSliceCmd
		answersCmd  *redis.MapStringStringCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		rawCmd = pipe.Get(ctx, attemptKey(attemptID))
		answeredCmd = pipe.LRange(ctx, answeredKey(attemptID), 0, -1)
		answersCmd = pipe.HGetAll(ctx, answersKey(attemptID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	raw, err := rawCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	attempt, err := decodeAttempt(raw)
	if err != nil {
		return domain.Attempt{}, err
	}
	if attempt.Open() {
		attempt.Answers, err = pendingAnswers(answeredCmd.Val(), answersCmd.Val())
		if err != nil {
			return domain.Attempt{}, err
		}
	}
	return attempt, nil
}

func pendingAnswers(order []string, byQuestion map[string]string) ([]domain.Answer, error) {
	answers := make([]domain.Answer, 0, len(order))
	for _, questionID := range order {
		raw, ok := byQuestion[questionID]
		if !ok {
			continue
		}
		var answer domain.Answer
		if err := json.Unmarshal([]byte(raw), &answer); err != nil {
			return nil, fmt.Errorf("unmarshal answer: %w", err)
		}
		answers = append(answers, answer)
	}
	return answers, nil
}

func (s *AttemptStore) SaveAnswer(ctx context.Context, attemptID string, answer domain.Answer) error {
	raw, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}
	keys := []string{attemptKey(attemptID), answersKey(attemptID), answeredKey(attemptID)}
	code, err := saveAnswerScript.Run(ctx, s.client, keys, answer.QuestionID, raw).Int()
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return scriptError(code)
}

func (s *AttemptStore) Complete(ctx context.Context, attempt domain.Attempt) error {
	raw, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	keys := []string{
		attemptKey(attempt.ID),
		openKey(attempt.QuizID, attempt.LearnerID),
		completedKey(attempt.QuizID, attempt.LearnerID),
		answersKey(attempt.ID),
		answeredKey(attempt.ID),
	}
	code, err := completeScript.Run(ctx, s.client, keys, raw, guestFlag(attempt)).Int()
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	return scriptError(code)
}

func (s *AttemptStore) ListByLearner(ctx context.Context, learnerID string) ([]domain.Attempt, error) {
	return s.list(ctx, learnerIndexKey(learnerID))
}

func (s *AttemptStore) ListByQuiz(ctx context.Context, quizID, learnerID string) ([]domain.Attempt, error) {
	if learnerID == "" {
		return s.list(ctx, quizIndexKey(quizID))
	}
	return s.list(ctx, quizLearnerIndexKey(quizID, learnerID))
}

func (s *AttemptStore) CountCompleted(ctx context.Context, quizID, learnerID string) (int, error) {
	count, err := s.client.Get(ctx, completedKey(quizID, learnerID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count completed: %w", err)
	}
	return count, nil
}

func (s *AttemptStore) Delete(ctx context.Context, attemptID string) error {
	attempt, err := s.Get(ctx, attemptID)
	if err != nil {
		return err
	}
	keys := []string{
		attemptKey(attempt.ID),
		openKey(attempt.QuizID, attempt.LearnerID),
		completedKey(attempt.QuizID, attempt.LearnerID),
		learnerIndexKey(attempt.LearnerID),
		quizIndexKey(attempt.QuizID),
		quizLearnerIndexKey(attempt.QuizID, attempt.LearnerID),
		answersKey(attempt.ID),
		answeredKey(attempt.ID),
	}
	code, err := deleteScript.Run(ctx, s.client, keys, attempt.ID, guestFlag(attempt)).Int()
	if err != nil {
		return fmt.Errorf("delete attempt: %w", err)
	}
	return scriptError(code)
}

func (s *AttemptStore) list(ctx context.Context, index string) ([]domain.Attempt, error) {
	ids, err := s.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	attempts := make([]domain.Attempt, 0, len(ids))
	if len(ids) == 0 {
		return attempts, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = attemptKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // removed between ZREVRANGE and MGET
		}
		attempt, err := decodeAttempt([]byte(raw))
		if err != nil {
			return nil, err
		}
		if attempt.Open() {
			// re-read so pending answers come with it
			attempt, err = s.Get(ctx, ids[i])
			if errors.Is(err, domain.ErrAttemptNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		attempts = append(attempts, attempt)
	}
	return attempts, nil
}

func decodeAttempt(raw []byte) (domain.Attempt, error) {
	var attempt domain.Attempt
	if err := json.Unmarshal(raw, &attempt); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal attempt: %w", err)
	}
	return attempt, nil
}

func scriptError(code int) error {
	switch code {
	case scriptOK:
		return nil
	case scriptMissing:
		return domain.ErrAttemptNotFound
	case scriptConflict:
		return domain.ErrAttemptInProgress
	case scriptLimit:
		return domain.ErrAttemptLimitExceeded
	case scriptCompleted:
		return domain.ErrAlreadyCompleted
	default:
		return fmt.Errorf("unexpected script result %d", code)
	}
}

func score(attempt domain.Attempt) int64 {
	return attempt.StartedAt.UnixMicro()
}

func guestFlag(attempt domain.Attempt) string {
	if attempt.LearnerID == "" {
		return "1"
	}
	return "0"
}

func attemptKey(id string) string {
	return "attempt:" + id
}

func answersKey(id string) string {
	return "attempt:" + id + ":answers"
}

func answeredKey(id string) string {
	return "attempt:" + id + ":answered"
}

// pairKey joins quiz and learner ids behind the quiz id length so that
// ("a:b", "c") and ("a", "b:c") map to different keys.
func pairKey(prefix, quizID, learnerID string) string {
	return prefix + strconv.Itoa(len(quizID)) + ":" + quizID + ":" + learnerID
}

func openKey(quizID, learnerID string) string {
	return pairKey("attempts:open:", quizID, learnerID)
}

func completedKey(quizID, learnerID string) string {
	return pairKey("attempts:completed:", quizID, learnerID)
}

func learnerIndexKey(learnerID string) string {
	return "attempts:learner:" + learnerID
}

func quizIndexKey(quizID string) string {
	return "attempts:quiz:" + quizID
}

func quizLearnerIndexKey(quizID, learnerID string) string {
	return pairKey("attempts:quiz-learner:", quizID, learnerID)
}
