package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	SelectionBatchSize    = 50
	SelectionBatchTimeout = 2 * time.Second
	SelectionPollTimeout  = 1 * time.Second
)

// AutosaveWorker consumes persist_selections_queue and UPSERTs in-progress
// answer selections to PostgreSQL so attempts survive a restart.
type AutosaveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "autosave_worker").Logger(),
	}
}

type selectionPayload struct {
	TestID        string `json:"test_id"`
	StudentID     int    `json:"student_id"`
	QuestionID    string `json:"question_id"`
	SelectedIndex int    `json:"selected_index"`
}

// Start begins the batching worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AutosaveWorker started")

	batch := make([]*selectionPayload, 0, SelectionBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= SelectionBatchSize || time.Since(lastFlush) >= SelectionBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, SelectionPollTimeout, config.WorkerKey.PersistSelectionsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p selectionPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

func (w *AutosaveWorker) flushSafe(ctx context.Context, batch []*selectionPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk selection upsert failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistSelectionsQueue, raw)
			}
		}
	}
}

// bulkUpsert writes the whole batch in one UNNEST statement. Later writes for
// the same question win because the batch preserves queue order.
func (w *AutosaveWorker) bulkUpsert(ctx context.Context, batch []*selectionPayload) error {
	n := len(batch)

	testIDs := make([]uuid.UUID, 0, n)
	students := make([]int, 0, n)
	questionIDs := make([]uuid.UUID, 0, n)
	indexes := make([]int, 0, n)

	// Deduplicate to the last write per (test, student, question); a single
	// INSERT may not touch the same row twice.
	last := make(map[selectionRowKey]int, n)
	for _, p := range batch {
		tID, err := uuid.Parse(p.TestID)
		if err != nil {
			return err
		}
		qID, err := uuid.Parse(p.QuestionID)
		if err != nil {
			return err
		}
		key := selectionRowKey{testID: tID, studentID: p.StudentID, questionID: qID}
		if i, ok := last[key]; ok {
			indexes[i] = p.SelectedIndex
			continue
		}
		last[key] = len(testIDs)
		testIDs = append(testIDs, tID)
		students = append(students, p.StudentID)
		questionIDs = append(questionIDs, qID)
		indexes = append(indexes, p.SelectedIndex)
	}

	query := `
		INSERT INTO attempt_selections (test_id, student_id, question_id, selected_index)
		SELECT u.test_id, u.student_id, u.question_id, u.selected_index
		FROM UNNEST(
			$1::uuid[],
			$2::int[],
			$3::uuid[],
			$4::int[]
		) AS u (test_id, student_id, question_id, selected_index)
		ON CONFLICT (test_id, student_id, question_id) DO UPDATE
		SET selected_index = EXCLUDED.selected_index, updated_at = NOW()
	`

	_, err := w.pool.Exec(ctx, query, testIDs, students, questionIDs, indexes)
	return err
}

type selectionRowKey struct {
	testID     uuid.UUID
	studentID  int
	questionID uuid.UUID
}

func (w *AutosaveWorker) persistSingle(ctx context.Context, p *selectionPayload) error {
	testID, err := uuid.Parse(p.TestID)
	if err != nil {
		return err
	}
	questionID, err := uuid.Parse(p.QuestionID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`INSERT INTO attempt_selections (test_id, student_id, question_id, selected_index)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (test_id, student_id, question_id) DO UPDATE
		 SET selected_index = EXCLUDED.selected_index, updated_at = NOW()`,
		testID, p.StudentID, questionID, p.SelectedIndex,
	)
	return err
}
