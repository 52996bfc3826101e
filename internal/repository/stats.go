package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
)

const (
	DefaultStatsKey = "connectfour:stats"

	fieldRoomsCreated = "rooms_created"
	fieldFirstWins    = "wins:" + entity.PlayerFirst
	fieldSecondWins   = "wins:" + entity.PlayerSecond
	fieldDraws        = "draws"
)

var ErrUnknownWinner = errors.New("unknown winner")

type StatsRepository interface {
	IncrRoomsCreated(ctx context.Context) error
	// RecordResult counts a finished game; an empty winner is a draw.
	RecordResult(ctx context.Context, winner string) error
	Get(ctx context.Context) (*entity.Stats, error)
}

type dbStats struct {
	client *redis.Client
	key    string
}

func NewStatsRepository(client *redis.Client, key string) StatsRepository {
	if key == "" {
		key = DefaultStatsKey
	}

	return &dbStats{
		client: client,
		key:    key,
	}
}

func (that *dbStats) IncrRoomsCreated(ctx context.Context) error {
	if err := that.client.HIncrBy(ctx, that.key, fieldRoomsCreated, 1).Err(); err != nil {
		return fmt.Errorf("failed to increment rooms created: %w", err)
	}

	return nil
}

func (that *dbStats) RecordResult(ctx context.Context, winner string) error {
	field, err := resultField(winner)
	if err != nil {
		return err
	}

	if err = that.client.HIncrBy(ctx, that.key, field, 1).Err(); err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}

	return nil
}

func (that *dbStats) Get(ctx context.Context) (*entity.Stats, error) {
	values, err := that.client.HGetAll(ctx, that.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	stats := &entity.Stats{}
	targets := map[string]*int64{
		fieldRoomsCreated: &stats.RoomsCreated,
		fieldFirstWins:    &stats.FirstWins,
		fieldSecondWins:   &stats.SecondWins,
		fieldDraws:        &stats.Draws,
	}

	for field, target := range targets {
		raw, ok := values[field]
		if !ok {
			continue
		}

		if *target, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", field, err)
		}
	}

	return stats, nil
}

func resultField(winner string) (string, error) {
	switch winner {
	case entity.PlayerFirst:
		return fieldFirstWins, nil
	case entity.PlayerSecond:
		return fieldSecondWins, nil
	case "":
		return fieldDraws, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownWinner, winner)
	}
}
