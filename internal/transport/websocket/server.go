package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/connectfour-backend/internal/config"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"github.com/rocketscienceinc/connectfour-backend/internal/usecase"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type gameManager interface {
	Create(ctx context.Context, id entity.ConnID, name string) (*usecase.Session, error)
	Join(ctx context.Context, id entity.ConnID, token, name string) (*usecase.Session, error)
	Watch(ctx context.Context, id entity.ConnID, token string) (*usecase.Session, error)
	Play(ctx context.Context, sess *usecase.Session, column int) error
	Rematch(ctx context.Context, sess *usecase.Session) error
	Leave(ctx context.Context, sess *usecase.Session)
}

type Server struct {
	logger   *zap.Logger
	hub      *Hub
	games    gameManager
	settings config.Session
	upgrader websocket.Upgrader
	router   *mux.Router
}

func New(logger *zap.Logger, settings config.Session, hub *Hub, games gameManager) *Server {
	server := &Server{
		logger:   logger.With(zap.String("component", "websocket")),
		hub:      hub,
		games:    games,
		settings: settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		router: mux.NewRouter(),
	}

	server.router.HandleFunc("/", server.upgradeToWebSocket).Methods(http.MethodGet)
	server.router.HandleFunc("/ws", server.upgradeToWebSocket).Methods(http.MethodGet)

	return server
}

func (that *Server) Handler() http.Handler {
	return that.router
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown websocket server", zap.Error(err))
		}
	}()

	that.logger.Info("websocket server started", zap.String("port", port))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection and serves it until it closes.
func (that *Server) upgradeToWebSocket(writer http.ResponseWriter, req *http.Request) {
	ws, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		that.logger.Warn("failed to upgrade connection", zap.String("remote_addr", req.RemoteAddr), zap.Error(err))
		return
	}

	conn := newConn(
		entity.ConnID(uuid.NewString()),
		ws,
		that.settings.SendQueueSize,
		that.settings.WriteTimeout,
		that.settings.PingInterval,
	)
	conn.prepareRead(that.settings.MaxMessageSize)

	go conn.writePump()

	that.handleConnection(req.Context(), conn)
}
