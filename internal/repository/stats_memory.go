package repository

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
)

// memStats keeps the counters in process memory when redis is disabled.
type memStats struct {
	mu    sync.Mutex
	stats entity.Stats
}

func NewMemoryStatsRepository() StatsRepository {
	return &memStats{}
}

func (that *memStats) IncrRoomsCreated(_ context.Context) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.stats.RoomsCreated++

	return nil
}

func (that *memStats) RecordResult(_ context.Context, winner string) error {
	field, err := resultField(winner)
	if err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	switch field {
	case fieldFirstWins:
		that.stats.FirstWins++
	case fieldSecondWins:
		that.stats.SecondWins++
	default:
		that.stats.Draws++
	}

	return nil
}

func (that *memStats) Get(_ context.Context) (*entity.Stats, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	stats := that.stats

	return &stats, nil
}
