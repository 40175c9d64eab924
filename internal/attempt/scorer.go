package attempt

import (
	"math"
	"time"

	"github.com/quizdesk/quizdesk-backend/internal/model"
)

// Score grades a session: a pure function of the final selection map and the
// randomized question list. Every question contributes its point value to
// MaxScore; a question scores its points iff the selection matches the
// per-attempt correct index. Unanswered questions are recorded with the
// sentinel index and zero points.
func Score(s *Session, now time.Time) *model.Result {
	selections := s.Selections()
	questions := s.Questions()

	outcomes := make([]model.AnswerOutcome, 0, len(questions))
	score := 0
	maxScore := 0

	for _, q := range questions {
		maxScore += q.Points

		selected, answered := selections[q.ID]
		if !answered {
			selected = model.UnansweredIndex
		}

		correct := answered && selected == q.CorrectIndex
		awarded := 0
		if correct {
			awarded = q.Points
			score += q.Points
		}

		outcomes = append(outcomes, model.AnswerOutcome{
			QuestionID:    q.ID,
			SelectedIndex: selected,
			IsCorrect:     correct,
			Points:        awarded,
		})
	}

	percentage := 0
	if maxScore > 0 {
		percentage = int(math.Round(float64(score) / float64(maxScore) * 100))
	}

	return &model.Result{
		TestID:           s.TestID(),
		StudentID:        s.StudentID(),
		GroupID:          s.GroupID(),
		Score:            score,
		MaxScore:         maxScore,
		Percentage:       percentage,
		Answers:          outcomes,
		TimeSpentMinutes: int(math.Round(now.Sub(s.StartedAt()).Minutes())),
		SubmittedAt:      now,
	}
}
