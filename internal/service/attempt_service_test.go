package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/attempt"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ─── fakes ──────────────────────────────────────────────────────────────────

type fakeTestSource struct {
	tests    map[uuid.UUID]*model.Test
	assigned map[uuid.UUID]map[int]bool
}

func (f *fakeTestSource) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	t, ok := f.tests[id]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTestSource) IsAssignedToGroup(_ context.Context, testID uuid.UUID, groupID int) (bool, error) {
	return f.assigned[testID][groupID], nil
}

type fakeQuestionSource struct {
	questions map[uuid.UUID][]model.Question
}

func (f *fakeQuestionSource) ListByTest(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	return f.questions[testID], nil
}

type fakeResultStore struct {
	results map[string]*model.Result
	failing bool
}

func resultKey(testID uuid.UUID, studentID int) string {
	return fmt.Sprintf("%s:%d", testID, studentID)
}

func (f *fakeResultStore) Create(_ context.Context, res *model.Result) error {
	if f.failing {
		return errors.New("store unavailable")
	}
	key := resultKey(res.TestID, res.StudentID)
	if _, ok := f.results[key]; ok {
		return repository.ErrDuplicateResult
	}
	f.results[key] = res
	return nil
}

func (f *fakeResultStore) ExistsByTestAndStudent(_ context.Context, testID uuid.UUID, studentID int) (bool, error) {
	_, ok := f.results[resultKey(testID, studentID)]
	return ok, nil
}

func (f *fakeResultStore) GetByTestAndStudent(_ context.Context, testID uuid.UUID, studentID int) (*model.Result, error) {
	res, ok := f.results[resultKey(testID, studentID)]
	if !ok {
		return nil, errors.New("no rows in result set")
	}
	return res, nil
}

type fakeSelectionStore struct {
	rows []repository.Selection
}

func (f *fakeSelectionStore) ListByTestAndStudent(_ context.Context, testID uuid.UUID, studentID int) ([]repository.Selection, error) {
	var out []repository.Selection
	for _, r := range f.rows {
		if r.TestID == testID && r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSelectionStore) DeleteByTestAndStudent(_ context.Context, testID uuid.UUID, studentID int) error {
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.TestID != testID || r.StudentID != studentID {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

// ─── fixture ────────────────────────────────────────────────────────────────

const (
	fixtureStudentID = 11
	fixtureGroupID   = 3
)

type attemptFixture struct {
	svc        *AttemptService
	testID     uuid.UUID
	results    *fakeResultStore
	selections *fakeSelectionStore
}

func newAttemptFixture(t *testing.T, questionCount int) *attemptFixture {
	t.Helper()

	testID := uuid.New()
	questions := make([]model.Question, questionCount)
	for i := range questions {
		questions[i] = model.Question{
			ID:           uuid.New(),
			TestID:       testID,
			Text:         fmt.Sprintf("question %d", i+1),
			Options:      []string{"a", "b", "c", "d"},
			CorrectIndex: i % 4,
			Points:       10,
			OrderNum:     i + 1,
		}
	}

	tests := &fakeTestSource{
		tests: map[uuid.UUID]*model.Test{
			testID: {
				ID:              testID,
				Title:           "Unit Conversions",
				TeacherID:       1,
				DurationMinutes: 30,
				IsActive:        true,
			},
		},
		assigned: map[uuid.UUID]map[int]bool{
			testID: {fixtureGroupID: true},
		},
	}
	results := &fakeResultStore{results: make(map[string]*model.Result)}
	selections := &fakeSelectionStore{}

	svc := NewAttemptService(
		tests,
		&fakeQuestionSource{questions: map[uuid.UUID][]model.Question{testID: questions}},
		results,
		selections,
		nil,
		zerolog.Nop(),
	)

	return &attemptFixture{svc: svc, testID: testID, results: results, selections: selections}
}

// ─── tests ──────────────────────────────────────────────────────────────────

func TestStartAttempt(t *testing.T) {
	f := newAttemptFixture(t, 5)

	state, err := f.svc.StartAttempt(context.Background(), f.testID, fixtureStudentID, fixtureGroupID)
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Questions) != 5 {
		t.Fatalf("questions = %d, want 5", len(state.Questions))
	}
	if state.State != attempt.StateInProgress {
		t.Fatalf("state = %s, want IN_PROGRESS", state.State)
	}
	if state.RemainingSeconds <= 0 || state.RemainingSeconds > 30*60 {
		t.Fatalf("remaining = %d, want within the 30 minute window", state.RemainingSeconds)
	}
	for _, q := range state.Questions {
		if q.SelectedIndex != model.UnansweredIndex {
			t.Fatalf("fresh attempt has selection %d", q.SelectedIndex)
		}
	}
}

func TestStartAttemptIdempotent(t *testing.T) {
	f := newAttemptFixture(t, 6)
	ctx := context.Background()

	first, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, fixtureGroupID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, fixtureGroupID)
	if err != nil {
		t.Fatal(err)
	}

	// Rejoining must not re-randomize the presentation order.
	for i := range first.Questions {
		if first.Questions[i].ID != second.Questions[i].ID {
			t.Fatalf("question order changed on rejoin at position %d", i)
		}
	}
}

func TestStartAttemptRejections(t *testing.T) {
	f := newAttemptFixture(t, 3)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, 99); err != ErrTestNotAssigned {
		t.Fatalf("foreign group err = %v, want ErrTestNotAssigned", err)
	}

	src := f.svc.tests.(*fakeTestSource)
	src.tests[f.testID].IsActive = false
	if _, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, fixtureGroupID); err != ErrTestNotAvailable {
		t.Fatalf("inactive test err = %v, want ErrTestNotAvailable", err)
	}
}

func TestStartAttemptAfterSubmission(t *testing.T) {
	f := newAttemptFixture(t, 2)
	ctx := context.Background()

	state, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, fixtureGroupID)
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range state.Questions {
		if err := f.svc.RecordSelection(ctx, f.testID, fixtureStudentID, q.ID, 0); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.svc.Submit(ctx, f.testID, fixtureStudentID, attempt.SubmitOptions{}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, fixtureGroupID); err != ErrAlreadySubmitted {
		t.Fatalf("restart err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestRecordSelectionValidation(t *testing.T) {
	f := newAttemptFixture(t, 2)
	ctx := context.Background()

	state, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, fixtureGroupID)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.svc.RecordSelection(ctx, f.testID, fixtureStudentID, uuid.New(), 0); err != attempt.ErrUnknownQuestion {
		t.Fatalf("unknown question err = %v", err)
	}
	if err := f.svc.RecordSelection(ctx, f.testID, fixtureStudentID, state.Questions[0].ID, 9); err != attempt.ErrOptionOutOfRange {
		t.Fatalf("out of range err = %v", err)
	}
	if err := f.svc.RecordSelection(ctx, uuid.New(), fixtureStudentID, state.Questions[0].ID, 0); err != ErrNoActiveAttempt {
		t.Fatalf("foreign test err = %v, want ErrNoActiveAttempt", err)
	}
}

func TestSubmitFlow(t *testing.T) {
	f := newAttemptFixture(t, 3)
	ctx := context.Background()

	state, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, fixtureGroupID)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.RecordSelection(ctx, f.testID, fixtureStudentID, state.Questions[0].ID, 1); err != nil {
		t.Fatal(err)
	}

	// Incomplete manual submit needs confirmation.
	if _, err := f.svc.Submit(ctx, f.testID, fixtureStudentID, attempt.SubmitOptions{}); err != attempt.ErrConfirmationRequired {
		t.Fatalf("incomplete submit err = %v, want ErrConfirmationRequired", err)
	}

	result, err := f.svc.Submit(ctx, f.testID, fixtureStudentID, attempt.SubmitOptions{ConfirmIncomplete: true})
	if err != nil {
		t.Fatal(err)
	}
	if result.MaxScore != 30 {
		t.Fatalf("max score = %d, want 30", result.MaxScore)
	}
	if len(f.results.results) != 1 {
		t.Fatalf("persisted %d results, want 1", len(f.results.results))
	}

	// The live attempt is gone; a repeat submit returns the stored result.
	again, err := f.svc.Submit(ctx, f.testID, fixtureStudentID, attempt.SubmitOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != result.ID {
		t.Fatal("repeat submit produced a different result")
	}

	if _, err := f.svc.GetAttemptState(ctx, f.testID, fixtureStudentID); err != ErrAlreadySubmitted {
		t.Fatalf("state after submit err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestSubmitPersistFailureKeepsAttemptOpen(t *testing.T) {
	f := newAttemptFixture(t, 1)
	ctx := context.Background()

	state, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, fixtureGroupID)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.RecordSelection(ctx, f.testID, fixtureStudentID, state.Questions[0].ID, 0); err != nil {
		t.Fatal(err)
	}

	f.results.failing = true
	if _, err := f.svc.Submit(ctx, f.testID, fixtureStudentID, attempt.SubmitOptions{}); err == nil {
		t.Fatal("submit succeeded against a failing store")
	}
	if _, err := f.svc.GetAttemptState(ctx, f.testID, fixtureStudentID); err != nil {
		t.Fatalf("attempt closed after failed persist: %v", err)
	}

	f.results.failing = false
	if _, err := f.svc.Submit(ctx, f.testID, fixtureStudentID, attempt.SubmitOptions{}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(f.results.results) != 1 {
		t.Fatalf("persisted %d results, want 1", len(f.results.results))
	}
}

func TestAbandonAttempt(t *testing.T) {
	f := newAttemptFixture(t, 2)
	ctx := context.Background()

	if _, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, fixtureGroupID); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Abandon(ctx, f.testID, fixtureStudentID); err != nil {
		t.Fatal(err)
	}

	if len(f.results.results) != 0 {
		t.Fatal("abandon persisted a result")
	}
	if _, err := f.svc.GetAttemptState(ctx, f.testID, fixtureStudentID); err != ErrNoActiveAttempt {
		t.Fatalf("state after abandon err = %v, want ErrNoActiveAttempt", err)
	}
	if err := f.svc.Abandon(ctx, f.testID, fixtureStudentID); err != ErrNoActiveAttempt {
		t.Fatalf("second abandon err = %v, want ErrNoActiveAttempt", err)
	}
}

func TestStartAttemptRestoresAutosavedSelections(t *testing.T) {
	f := newAttemptFixture(t, 4)
	ctx := context.Background()

	src := f.svc.questions.(*fakeQuestionSource)
	restored := src.questions[f.testID][2]
	f.selections.rows = append(f.selections.rows, repository.Selection{
		TestID:        f.testID,
		StudentID:     fixtureStudentID,
		QuestionID:    restored.ID,
		SelectedIndex: 3,
	})

	state, err := f.svc.StartAttempt(ctx, f.testID, fixtureStudentID, fixtureGroupID)
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, q := range state.Questions {
		if q.ID == restored.ID {
			found = true
			if q.SelectedIndex != 3 {
				t.Fatalf("restored selection = %d, want 3", q.SelectedIndex)
			}
		}
	}
	if !found {
		t.Fatal("restored question missing from attempt")
	}
}
