package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSelect Action = "select"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// SelectRequest is sent by the client to record a single answer selection.
type SelectRequest struct {
	Action        Action `json:"action"`
	QuestionID    string `json:"question_id"`
	SelectedIndex int    `json:"selected_index"`
}

// SubmitRequest is sent by the client to finish and grade the attempt.
type SubmitRequest struct {
	Action            Action `json:"action"`
	ConfirmIncomplete bool   `json:"confirm_incomplete"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventAccepted Event = "accepted"
	EventTick     Event = "tick"
	EventGraded   Event = "graded"
	EventPong     Event = "pong"
)

// AcceptedResponse acknowledges a recorded selection.
type AcceptedResponse struct {
	Event      Event  `json:"event"`
	QuestionID string `json:"question_id"`
}

// TickResponse streams the countdown to the client once per second.
type TickResponse struct {
	Event            Event  `json:"event"`
	State            string `json:"state"`
	RemainingSeconds int    `json:"remaining_seconds"`
	LowTime          bool   `json:"low_time"`
}

// GradedResponse carries the final score after submission, manual or forced.
type GradedResponse struct {
	Event      Event `json:"event"`
	Forced     bool  `json:"forced"`
	Score      int   `json:"score"`
	MaxScore   int   `json:"max_score"`
	Percentage int   `json:"percentage"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
