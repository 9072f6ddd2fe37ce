package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/thereayou/heartmatch/internal/broker"
	"github.com/thereayou/heartmatch/internal/config"
	"github.com/thereayou/heartmatch/internal/database"
	"github.com/thereayou/heartmatch/internal/database/memory"
	"github.com/thereayou/heartmatch/internal/handlers"
	"github.com/thereayou/heartmatch/internal/middleware"
	"github.com/thereayou/heartmatch/internal/services"
	ws "github.com/thereayou/heartmatch/internal/websocket"
	"github.com/thereayou/heartmatch/pkg/auth"
)

// store is what both the postgres and the in-memory backends provide.
type store interface {
	services.UserDirectory
	services.LikeStore
	services.MatchStore
	services.MessageStore
	handlers.Accounts
}

type Server struct {
	cfg *config.Config
	log *zap.Logger

	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	Hub        *ws.Hub
	JWTManager *auth.JWTManager

	redisRelay *broker.RedisRelay
	httpServer *http.Server
}

func NewServer(cfg *config.Config, log *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, log: log}

	var st store
	switch cfg.Database.Storage {
	case config.StorageMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		st = memory.New()
	default:
		db := &database.Database{}
		if err := db.Connect(cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		s.DB = db
		st = db
	}

	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(redisOpts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			s.Close()
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		s.Redis = rdb
	}

	var blacklist auth.Blacklist = auth.NewMemoryBlacklist()
	if s.Redis != nil {
		blacklist = auth.NewRedisBlacklist(s.Redis)
	}

	s.Hub = ws.NewHub(log)

	var relay services.Relay = broker.NewLocalRelay(s.Hub)
	if cfg.Server.Fanout == config.FanoutRedis {
		s.redisRelay = broker.NewRedisRelay(s.Redis, s.Hub, log)
		relay = s.redisRelay
	}

	s.JWTManager = auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)

	likeSvc := services.NewLikeService(services.LikeDependencies{
		Users:   st,
		Likes:   st,
		Matches: st,
		Relay:   relay,
		Log:     log,
	})
	matchSvc := services.NewMatchService(services.MatchDependencies{
		Matches: st,
		Users:   st,
		Relay:   relay,
		Log:     log,
	})
	chatSvc := services.NewChatService(services.ChatDependencies{
		Matches:          st,
		Messages:         st,
		Rooms:            s.Hub,
		Relay:            relay,
		Log:              log,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		HistoryLimit:     cfg.Chat.HistoryLimit,
	})

	routes := Routes{
		Auth:     handlers.NewAuthHandler(st, s.JWTManager, blacklist, log),
		Users:    handlers.NewUserHandler(st, log),
		Likes:    handlers.NewLikeHandler(likeSvc, log),
		Matches:  handlers.NewMatchHandler(matchSvc, log),
		Messages: handlers.NewHTTPMessageHandler(chatSvc, log),
		WebSocket: handlers.NewWebSocketHandler(s.Hub, handlers.NewMessageHandler(chatSvc, log), handlers.WebSocketOptions{
			AllowedOrigins: cfg.Chat.AllowedOrigins,
			MessageRate:    cfg.Chat.MessageRate,
			MessageWindow:  cfg.Chat.MessageWindow,
		}, log),
		RequireAuth:   middleware.AuthMiddleware(s.JWTManager, blacklist, log),
		RequireWSAuth: middleware.WSAuthMiddleware(s.JWTManager, blacklist, log),
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log))
	APIEndpoints(router, routes)
	s.Router = router

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.Hub.Run()

	if s.redisRelay != nil {
		sub, err := s.redisRelay.Subscribe(ctx)
		if err != nil {
			return err
		}
		go s.redisRelay.Run(ctx, sub)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server run: %w", err)
		}
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Close sockets first; Shutdown does not wait for hijacked connections.
	s.Hub.Stop()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.Close()
	return err
}

func (s *Server) Close() {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.log.Warn("close redis", zap.Error(err))
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			s.log.Warn("close postgres", zap.Error(err))
		}
	}
}
