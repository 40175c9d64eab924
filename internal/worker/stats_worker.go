package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/quizdesk/quizdesk-backend/internal/config"
	"github.com/quizdesk/quizdesk-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StatsWorker consumes group_stats_queue and recomputes the per-group rollup
// row for each submitted attempt's (test, group) pair.
type StatsWorker struct {
	statsRepo *repository.StatsRepository
	rdb       *redis.Client
	log       zerolog.Logger
}

// NewStatsWorker creates a new StatsWorker.
func NewStatsWorker(statsRepo *repository.StatsRepository, rdb *redis.Client, log zerolog.Logger) *StatsWorker {
	return &StatsWorker{
		statsRepo: statsRepo,
		rdb:       rdb,
		log:       log.With().Str("component", "stats_worker").Logger(),
	}
}

type statsPayload struct {
	TestID  string `json:"test_id"`
	GroupID int    `json:"group_id"`
}

// Start begins the worker loop. Call in a goroutine.
func (w *StatsWorker) Start(ctx context.Context) {
	w.log.Info().Msg("StatsWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("StatsWorker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *StatsWorker) processNext(ctx context.Context) {
	item, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.GroupStatsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(item) < 2 {
		return
	}

	var p statsPayload
	if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return
	}

	testID, err := uuid.Parse(p.TestID)
	if err != nil {
		w.log.Error().Err(err).Str("test_id", p.TestID).Msg("Invalid test id")
		return
	}

	if err := w.statsRepo.Refresh(ctx, testID, p.GroupID); err != nil {
		w.log.Error().Err(err).
			Str("test_id", p.TestID).
			Int("group_id", p.GroupID).
			Msg("Stats refresh failed, retrying in 5s")
		w.rdb.RPush(ctx, config.WorkerKey.GroupStatsQueue, item[1])
		time.Sleep(5 * time.Second)
	}
}
