package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/attempt"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Attempt flow errors.
var (
	ErrTestNotAvailable = errors.New("test is not available")
	ErrTestNotAssigned  = errors.New("test is not assigned to this group")
	ErrAlreadySubmitted = errors.New("test already submitted")
	ErrNoActiveAttempt  = errors.New("no active attempt for this test")
)

// AttemptState is the renderable snapshot of a live attempt.
type AttemptState struct {
	TestID           uuid.UUID              `json:"test_id"`
	Title            string                 `json:"title"`
	DurationMinutes  int                    `json:"duration_minutes"`
	Questions        []attempt.ViewQuestion `json:"questions"`
	RemainingSeconds int                    `json:"remaining_seconds"`
	LowTime          bool                   `json:"low_time"`
	State            attempt.State          `json:"state"`
}

type attemptKey struct {
	testID    uuid.UUID
	studentID int
}

// liveAttempt bundles one student's in-memory attempt machinery.
type liveAttempt struct {
	title    string
	duration time.Duration
	session  *attempt.Session
	timer    *attempt.Timer
	guard    *attempt.Guard
	cancel   context.CancelFunc
}

// AttemptService orchestrates live attempts: starting, answer recording,
// countdown ticking, and the single submission per attempt. Attempts live in
// an in-memory registry keyed by (test, student); Redis autosave plus the
// persisted selections table let an attempt be rebuilt after a restart.
type AttemptService struct {
	tests      TestSource
	questions  QuestionSource
	results    ResultStore
	selections SelectionStore
	rdb        *redis.Client
	log        zerolog.Logger

	mu       sync.Mutex
	attempts map[attemptKey]*liveAttempt

	randomizer *attempt.Randomizer
}

// NewAttemptService creates a new AttemptService. rdb may be nil when no
// cache is configured; autosave then falls back to the database alone.
func NewAttemptService(
	tests TestSource,
	questions QuestionSource,
	results ResultStore,
	selections SelectionStore,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		tests:      tests,
		questions:  questions,
		results:    results,
		selections: selections,
		rdb:        rdb,
		log:        log.With().Str("component", "attempt_service").Logger(),
		attempts:   make(map[attemptKey]*liveAttempt),
		randomizer: attempt.NewRandomizer(nil),
	}
}

// StartAttempt begins (or rejoins) an attempt. Starting is idempotent: if
// the student already has a live attempt for this test, its current state is
// returned instead of a second randomization. A student who already
// submitted gets ErrAlreadySubmitted.
func (s *AttemptService) StartAttempt(ctx context.Context, testID uuid.UUID, studentID, groupID int) (*AttemptState, error) {
	key := attemptKey{testID: testID, studentID: studentID}

	s.mu.Lock()
	if la, ok := s.attempts[key]; ok {
		s.mu.Unlock()
		return s.snapshot(la), nil
	}
	s.mu.Unlock()

	submitted, err := s.results.ExistsByTestAndStudent(ctx, testID, studentID)
	if err != nil {
		return nil, fmt.Errorf("check existing result: %w", err)
	}
	if submitted {
		return nil, ErrAlreadySubmitted
	}

	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if !test.IsActive {
		return nil, ErrTestNotAvailable
	}

	assigned, err := s.tests.IsAssignedToGroup(ctx, testID, groupID)
	if err != nil {
		return nil, fmt.Errorf("check assignment: %w", err)
	}
	if !assigned {
		return nil, ErrTestNotAssigned
	}

	canonical, err := s.loadQuestions(ctx, test)
	if err != nil {
		return nil, err
	}

	randomized, err := s.randomizer.Randomize(canonical)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	duration := time.Duration(test.DurationMinutes) * time.Minute

	sess, err := attempt.NewSession(testID, studentID, groupID, randomized, duration, now)
	if err != nil {
		return nil, err
	}

	timer := attempt.NewTimer(nil)
	if err := timer.Start(now, duration); err != nil {
		return nil, err
	}

	la := &liveAttempt{
		title:    test.Title,
		duration: duration,
		session:  sess,
		timer:    timer,
		guard:    attempt.NewGuard(nil),
	}

	s.restoreSelections(ctx, sess, testID, studentID)

	tickCtx, cancel := context.WithCancel(context.Background())
	la.cancel = cancel

	s.mu.Lock()
	if existing, ok := s.attempts[key]; ok {
		// Concurrent start lost the race; keep the winner's attempt.
		s.mu.Unlock()
		cancel()
		return s.snapshot(existing), nil
	}
	s.attempts[key] = la
	s.mu.Unlock()

	s.cacheStart(ctx, testID, studentID, now)
	go s.runTicker(tickCtx, key, la)

	s.log.Info().
		Str("test_id", testID.String()).
		Int("student_id", studentID).
		Int("questions", len(randomized)).
		Msg("Attempt started")

	return s.snapshot(la), nil
}

// GetAttemptState returns the current renderable state of a live attempt.
func (s *AttemptService) GetAttemptState(ctx context.Context, testID uuid.UUID, studentID int) (*AttemptState, error) {
	la, err := s.lookup(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(la), nil
}

// RecordSelection upserts the student's selection for one question and
// autosaves it. Selections after submission are silently ignored, matching
// the session's stale-write behavior.
func (s *AttemptService) RecordSelection(ctx context.Context, testID uuid.UUID, studentID int, questionID uuid.UUID, optionIndex int) error {
	la, err := s.lookup(ctx, testID, studentID)
	if err != nil {
		return err
	}

	if err := la.session.SelectAnswer(questionID, optionIndex); err != nil {
		return err
	}

	s.autosaveSelection(ctx, testID, studentID, questionID, optionIndex)
	return nil
}

// Tick advances the attempt's countdown and returns the snapshot. Expiry is
// driven by the internal ticker goroutine; this is for clients polling over
// HTTP or WebSocket.
func (s *AttemptService) Tick(ctx context.Context, testID uuid.UUID, studentID int) (*attempt.Tick, error) {
	la, err := s.lookup(ctx, testID, studentID)
	if err != nil {
		return nil, err
	}
	tick := la.timer.Tick()
	if tick.JustExpired {
		go s.forceSubmit(attemptKey{testID: testID, studentID: studentID}, la)
	}
	return &tick, nil
}

// Submit runs the manual submission path. Submitting an already-submitted
// attempt returns the original result.
func (s *AttemptService) Submit(ctx context.Context, testID uuid.UUID, studentID int, opts attempt.SubmitOptions) (*model.Result, error) {
	key := attemptKey{testID: testID, studentID: studentID}

	s.mu.Lock()
	la, ok := s.attempts[key]
	s.mu.Unlock()

	if !ok {
		// No live attempt; if a result exists the earlier submit won.
		res, err := s.results.GetByTestAndStudent(ctx, testID, studentID)
		if err != nil {
			return nil, ErrNoActiveAttempt
		}
		return res, nil
	}

	result, err := la.guard.Submit(ctx, la.session, la.timer, s.sink(), opts)
	if err != nil {
		return nil, err
	}

	s.cleanup(key, la, result)
	return result, nil
}

// Abandon cancels a live attempt without producing a result. The student may
// not restart: the attempt registry entry is removed but no result row is
// written, so the test reappears as available.
func (s *AttemptService) Abandon(ctx context.Context, testID uuid.UUID, studentID int) error {
	key := attemptKey{testID: testID, studentID: studentID}

	s.mu.Lock()
	la, ok := s.attempts[key]
	if ok {
		delete(s.attempts, key)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNoActiveAttempt
	}

	la.session.Abandon()
	la.timer.Cancel()
	la.cancel()
	s.clearAutosave(ctx, testID, studentID)

	s.log.Info().
		Str("test_id", testID.String()).
		Int("student_id", studentID).
		Msg("Attempt abandoned")
	return nil
}

// ────────────────────────────────────────────────────────────────────────────
// Internals
// ────────────────────────────────────────────────────────────────────────────

func (s *AttemptService) lookup(ctx context.Context, testID uuid.UUID, studentID int) (*liveAttempt, error) {
	s.mu.Lock()
	la, ok := s.attempts[attemptKey{testID: testID, studentID: studentID}]
	s.mu.Unlock()
	if ok {
		return la, nil
	}

	submitted, err := s.results.ExistsByTestAndStudent(ctx, testID, studentID)
	if err == nil && submitted {
		return nil, ErrAlreadySubmitted
	}
	return nil, ErrNoActiveAttempt
}

func (s *AttemptService) snapshot(la *liveAttempt) *AttemptState {
	tick := la.timer.Tick()
	if tick.JustExpired {
		go s.forceSubmit(attemptKey{testID: la.session.TestID(), studentID: la.session.StudentID()}, la)
	}
	return &AttemptState{
		TestID:           la.session.TestID(),
		Title:            la.title,
		DurationMinutes:  int(la.duration / time.Minute),
		Questions:        la.session.View(),
		RemainingSeconds: tick.RemainingSeconds,
		LowTime:          tick.LowTime,
		State:            la.session.State(),
	}
}

// loadQuestions reads the canonical payload from the Redis cache with a
// database fallback that self-heals the cache.
func (s *AttemptService) loadQuestions(ctx context.Context, test *model.Test) ([]model.Question, error) {
	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, config.CacheKey.TestPayloadKey(test.ID.String())).Bytes()
		if err == nil {
			var payload model.TestPayload
			if err := json.Unmarshal(data, &payload); err == nil && len(payload.Questions) > 0 {
				return payload.Questions, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn().Err(err).Msg("Payload cache read failed, falling back to database")
		}
	}

	questions, err := s.questions.ListByTest(ctx, test.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, attempt.ErrNoQuestions
	}

	if s.rdb != nil {
		payload := model.TestPayload{
			TestID:          test.ID,
			Title:           test.Title,
			DurationMinutes: test.DurationMinutes,
			Questions:       questions,
		}
		if data, err := json.Marshal(payload); err == nil {
			_ = s.rdb.Set(ctx, config.CacheKey.TestPayloadKey(test.ID.String()), data, 0).Err()
		}
	}

	return questions, nil
}

// restoreSelections replays autosaved answers into a fresh session: the
// persisted rows first, then the Redis hash which may be fresher. Selections
// for questions that no longer exist are dropped.
func (s *AttemptService) restoreSelections(ctx context.Context, sess *attempt.Session, testID uuid.UUID, studentID int) {
	saved, err := s.selections.ListByTestAndStudent(ctx, testID, studentID)
	if err != nil {
		s.log.Warn().Err(err).Msg("Restore from database failed")
	}
	for _, sel := range saved {
		_ = sess.SelectAnswer(sel.QuestionID, sel.SelectedIndex)
	}

	if s.rdb == nil {
		return
	}
	cached, err := s.rdb.HGetAll(ctx, config.CacheKey.StudentSelectionsKey(testID.String(), studentID)).Result()
	if err != nil {
		return
	}
	for qid, idxStr := range cached {
		questionID, err := uuid.Parse(qid)
		if err != nil {
			continue
		}
		idx, err := strconv.Atoi(idxStr)
		if err != nil {
			continue
		}
		_ = sess.SelectAnswer(questionID, idx)
	}
}

func (s *AttemptService) autosaveSelection(ctx context.Context, testID uuid.UUID, studentID int, questionID uuid.UUID, optionIndex int) {
	if s.rdb == nil {
		return
	}

	if err := s.rdb.HSet(ctx, config.CacheKey.StudentSelectionsKey(testID.String(), studentID), questionID.String(), optionIndex).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Selection cache write failed")
	}

	payload, err := json.Marshal(repository.Selection{
		TestID:        testID,
		StudentID:     studentID,
		QuestionID:    questionID,
		SelectedIndex: optionIndex,
	})
	if err != nil {
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistSelectionsQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Selection queue push failed")
	}
}

func (s *AttemptService) cacheStart(ctx context.Context, testID uuid.UUID, studentID int, start time.Time) {
	if s.rdb == nil {
		return
	}
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AttemptStartKey(testID.String(), studentID), start.Unix(), 0)
	pipe.Set(ctx, config.CacheKey.StudentActiveTestKey(studentID), testID.String(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Start time cache write failed")
	}
}

func (s *AttemptService) clearAutosave(ctx context.Context, testID uuid.UUID, studentID int) {
	if err := s.selections.DeleteByTestAndStudent(ctx, testID, studentID); err != nil {
		s.log.Warn().Err(err).Msg("Selection rows cleanup failed")
	}
	if s.rdb == nil {
		return
	}
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.StudentSelectionsKey(testID.String(), studentID))
	pipe.Del(ctx, config.CacheKey.AttemptStartKey(testID.String(), studentID))
	pipe.Del(ctx, config.CacheKey.StudentActiveTestKey(studentID))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Autosave cache cleanup failed")
	}
}

// runTicker drives the countdown for one attempt and fires the forced
// submission exactly once when the deadline passes.
func (s *AttemptService) runTicker(ctx context.Context, key attemptKey, la *liveAttempt) {
	ticker := time.NewTicker(attempt.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick := la.timer.Tick()
			if tick.JustExpired {
				s.forceSubmit(key, la)
				return
			}
			if tick.State != attempt.TimerRunning {
				return
			}
		}
	}
}

// forceSubmit is the timer-expiry submission path. A persist failure leaves
// the guard open, so it retries a few times before giving up; a later manual
// submit can still succeed.
func (s *AttemptService) forceSubmit(key attemptKey, la *liveAttempt) {
	ctx := context.Background()
	opts := attempt.SubmitOptions{Forced: true}

	for attemptNo := 1; attemptNo <= 3; attemptNo++ {
		result, err := la.guard.Submit(ctx, la.session, la.timer, s.sink(), opts)
		if err == nil {
			s.cleanup(key, la, result)
			s.log.Info().
				Str("test_id", key.testID.String()).
				Int("student_id", key.studentID).
				Int("score", result.Score).
				Msg("Attempt force-submitted on expiry")
			return
		}

		s.log.Error().Err(err).
			Str("test_id", key.testID.String()).
			Int("student_id", key.studentID).
			Int("try", attemptNo).
			Msg("Forced submit persist failed, retrying in 5s")
		time.Sleep(5 * time.Second)
	}
}

// sink adapts the result store to the submission guard. A duplicate-row
// violation means another process already persisted this attempt; surface it
// as ErrAlreadySubmitted so the caller treats the attempt as closed.
func (s *AttemptService) sink() attempt.ResultSink {
	return resultSinkFunc(func(ctx context.Context, result *model.Result) error {
		if err := s.results.Create(ctx, result); err != nil {
			if errors.Is(err, repository.ErrDuplicateResult) {
				return ErrAlreadySubmitted
			}
			return err
		}
		return nil
	})
}

type resultSinkFunc func(ctx context.Context, result *model.Result) error

func (f resultSinkFunc) SaveResult(ctx context.Context, result *model.Result) error {
	return f(ctx, result)
}

// cleanup removes a finished attempt from the registry and queues the group
// stats rollup.
func (s *AttemptService) cleanup(key attemptKey, la *liveAttempt, result *model.Result) {
	s.mu.Lock()
	delete(s.attempts, key)
	s.mu.Unlock()

	la.cancel()

	ctx := context.Background()
	s.clearAutosave(ctx, key.testID, key.studentID)

	if s.rdb == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"test_id":  result.TestID.String(),
		"group_id": result.GroupID,
	})
	if err != nil {
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.GroupStatsQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Stats queue push failed")
	}
}
