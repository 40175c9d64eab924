package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quizdesk/quizdesk-backend/internal/attempt"
	"github.com/quizdesk/quizdesk-backend/internal/middleware"
	"github.com/quizdesk/quizdesk-backend/internal/model"
	"github.com/quizdesk/quizdesk-backend/internal/service"
	ws "github.com/quizdesk/quizdesk-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// wsConn serializes writes from the read loop and the tick goroutine,
// which share one connection. gorilla/websocket allows only one
// concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ws.WriteTyped(c.conn, v)
}

func (c *wsConn) writeError(code, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = ws.WriteError(c.conn, code, msg)
}

// WSHandler handles WebSocket attempt streaming.
type WSHandler struct {
	attemptService *service.AttemptService
	resultService  *service.ResultService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(attemptService *service.AttemptService, resultService *service.ResultService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		attemptService: attemptService,
		resultService:  resultService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

func decodeEnvelope(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// AttemptStream godoc
// WS /ws/v1/student/tests/:test_id/attempt
// Upgrades to WebSocket for the live attempt: selection autosave, a
// once-per-second countdown stream, and grading on submit or expiry.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	testID, err := uuid.Parse(c.Param("test_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid test ID"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer raw.Close()

	conn := &wsConn{conn: raw}
	studentID := claims.UserID

	// The student must have a live attempt before streaming begins.
	if _, err := h.attemptService.GetAttemptState(c.Request.Context(), testID, studentID); err != nil {
		conn.writeError("NO_ACTIVE_ATTEMPT", "no active attempt for this test")
		return
	}

	wsLog := h.log.With().
		Int("student_id", studentID).
		Str("test_id", testID.String()).
		Logger()

	wsLog.Info().Msg("Student connected")

	// gradedOnce ensures the client hears exactly one graded event, whether
	// it comes from a manual submit on this connection or from expiry.
	var gradedOnce sync.Once

	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()
	go h.streamTicks(streamCtx, conn, wsLog, testID, studentID, &gradedOnce)

	for {
		var env ws.RequestEnvelope
		data, err := ws.ReadRaw(raw)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		if err := decodeEnvelope(data, &env); err != nil {
			conn.writeError("INVALID_PAYLOAD", "malformed message")
			continue
		}

		switch env.Action {
		case ws.ActionSelect:
			h.handleSelect(conn, wsLog, testID, studentID, data)
		case ws.ActionSubmit:
			if done := h.handleSubmit(conn, wsLog, testID, studentID, data, &gradedOnce); done {
				return
			}
		case ws.ActionPing:
			_ = conn.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			conn.writeError("UNKNOWN_ACTION", "unknown action: "+string(env.Action))
		}
	}
}

// streamTicks pushes the countdown once per second until the attempt ends.
// When the attempt closes underneath the stream (expiry force-submits it),
// the stored result is fetched and delivered as a forced graded event.
func (h *WSHandler) streamTicks(ctx context.Context, conn *wsConn, wsLog zerolog.Logger, testID uuid.UUID, studentID int, gradedOnce *sync.Once) {
	ticker := time.NewTicker(attempt.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick, err := h.attemptService.Tick(ctx, testID, studentID)
			if err != nil {
				if errors.Is(err, service.ErrAlreadySubmitted) {
					h.sendStoredResult(ctx, conn, wsLog, testID, studentID, gradedOnce)
				}
				return
			}

			if err := conn.write(ws.TickResponse{
				Event:            ws.EventTick,
				State:            string(tick.State),
				RemainingSeconds: tick.RemainingSeconds,
				LowTime:          tick.LowTime,
			}); err != nil {
				return
			}

			if tick.State == attempt.TimerExpired {
				// forceSubmit is already running; wait for the result row.
				h.sendStoredResult(ctx, conn, wsLog, testID, studentID, gradedOnce)
				return
			}
		}
	}
}

// sendStoredResult polls briefly for the persisted result and streams it as a
// forced graded event. Expiry persistence retries for up to 15 seconds, so
// the poll window matches.
func (h *WSHandler) sendStoredResult(ctx context.Context, conn *wsConn, wsLog zerolog.Logger, testID uuid.UUID, studentID int, gradedOnce *sync.Once) {
	var result *model.Result
	for try := 0; try < 20; try++ {
		res, err := h.resultService.GetStudentResult(ctx, testID, studentID)
		if err == nil {
			result = res
			break
		}
		time.Sleep(time.Second)
	}
	if result == nil {
		wsLog.Error().Msg("Expired attempt result never appeared")
		conn.writeError("RESULT_PERSIST_FAILED", "result could not be saved")
		return
	}

	gradedOnce.Do(func() {
		_ = conn.write(ws.GradedResponse{
			Event:      ws.EventGraded,
			Forced:     true,
			Score:      result.Score,
			MaxScore:   result.MaxScore,
			Percentage: result.Percentage,
		})
	})
}

// handleSelect records one answer selection through the attempt service.
func (h *WSHandler) handleSelect(conn *wsConn, wsLog zerolog.Logger, testID uuid.UUID, studentID int, data []byte) {
	var msg ws.SelectRequest
	if err := decodeEnvelope(data, &msg); err != nil {
		conn.writeError("INVALID_PAYLOAD", "malformed select message")
		return
	}

	questionID, err := uuid.Parse(msg.QuestionID)
	if err != nil {
		conn.writeError("INVALID_ID", "invalid question_id format")
		return
	}

	if err := h.attemptService.RecordSelection(context.Background(), testID, studentID, questionID, msg.SelectedIndex); err != nil {
		switch {
		case errors.Is(err, attempt.ErrUnknownQuestion):
			conn.writeError("UNKNOWN_QUESTION", "question does not belong to this test")
		case errors.Is(err, attempt.ErrOptionOutOfRange):
			conn.writeError("OPTION_OUT_OF_RANGE", "selected option does not exist")
		case errors.Is(err, service.ErrNoActiveAttempt), errors.Is(err, service.ErrAlreadySubmitted):
			conn.writeError("NO_ACTIVE_ATTEMPT", "attempt is no longer live")
		default:
			wsLog.Error().Err(err).Msg("Selection record failed")
			conn.writeError("INTERNAL_ERROR", "save failed")
		}
		return
	}

	_ = conn.write(ws.AcceptedResponse{Event: ws.EventAccepted, QuestionID: msg.QuestionID})
}

// handleSubmit runs the manual submission path. Returns true when the
// attempt is closed and the connection should end.
func (h *WSHandler) handleSubmit(conn *wsConn, wsLog zerolog.Logger, testID uuid.UUID, studentID int, data []byte, gradedOnce *sync.Once) bool {
	var msg ws.SubmitRequest
	if err := decodeEnvelope(data, &msg); err != nil {
		conn.writeError("INVALID_PAYLOAD", "malformed submit message")
		return false
	}

	result, err := h.attemptService.Submit(context.Background(), testID, studentID, attempt.SubmitOptions{
		ConfirmIncomplete: msg.ConfirmIncomplete,
	})
	if err != nil {
		switch {
		case errors.Is(err, attempt.ErrConfirmationRequired):
			conn.writeError("CONFIRMATION_REQUIRED", "some questions are unanswered, confirm to submit anyway")
		case errors.Is(err, service.ErrNoActiveAttempt):
			conn.writeError("NO_ACTIVE_ATTEMPT", "no active attempt for this test")
		default:
			wsLog.Error().Err(err).Msg("Submit failed")
			conn.writeError("RESULT_PERSIST_FAILED", "result could not be saved, try again")
		}
		return false
	}

	wsLog.Info().
		Int("score", result.Score).
		Int("max_score", result.MaxScore).
		Msg("Attempt submitted and graded")

	gradedOnce.Do(func() {
		_ = conn.write(ws.GradedResponse{
			Event:      ws.EventGraded,
			Forced:     false,
			Score:      result.Score,
			MaxScore:   result.MaxScore,
			Percentage: result.Percentage,
		})
	})
	return true
}
