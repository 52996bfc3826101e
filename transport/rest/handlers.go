package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"go.uber.org/zap"
)

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)
	StatsHandler(w http.ResponseWriter, r *http.Request)
}

type statsReader interface {
	Get(ctx context.Context) (*entity.Stats, error)
}

type roomCounter interface {
	Len() int
}

type statsResponse struct {
	*entity.Stats
	GamesFinished int64 `json:"games_finished"`
	OpenRooms     int   `json:"open_rooms"`
}

type handlers struct {
	logger *zap.Logger
	stats  statsReader
	rooms  roomCounter
}

func NewHandlers(logger *zap.Logger, stats statsReader, rooms roomCounter) Handlers {
	return &handlers{
		logger: logger,
		stats:  stats,
		rooms:  rooms,
	}
}

func (that *handlers) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *handlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := that.stats.Get(r.Context())
	if err != nil {
		that.logger.Error("failed to get stats", zap.String("method", "StatsHandler"), zap.Error(err))
		http.Error(w, "Failed to get stats", http.StatusInternalServerError)
		return
	}

	resp := statsResponse{
		Stats:         stats,
		GamesFinished: stats.GamesFinished(),
		OpenRooms:     that.rooms.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(resp); err != nil {
		that.logger.Error("failed to encode stats", zap.String("method", "StatsHandler"), zap.Error(err))
	}
}
