package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/hiveboardgame/realtime/internal/auth"
	"github.com/hiveboardgame/realtime/internal/broadcast"
	"github.com/hiveboardgame/realtime/internal/chat"
	"github.com/hiveboardgame/realtime/internal/chatlog"
	"github.com/hiveboardgame/realtime/internal/challenge"
	"github.com/hiveboardgame/realtime/internal/game"
	"github.com/hiveboardgame/realtime/internal/jobs"
	"github.com/hiveboardgame/realtime/internal/lock"
	"github.com/hiveboardgame/realtime/internal/presence"
	"github.com/hiveboardgame/realtime/internal/ratelimit"
	"github.com/hiveboardgame/realtime/internal/rating"
	"github.com/hiveboardgame/realtime/internal/redisclient"
	"github.com/hiveboardgame/realtime/internal/router"
	"github.com/hiveboardgame/realtime/internal/schedule"
	"github.com/hiveboardgame/realtime/internal/store"
	"github.com/hiveboardgame/realtime/internal/subscription"
	"github.com/hiveboardgame/realtime/internal/tournament"
)

// Server holds every dependency the process needs and the gin engine
// wired to serve them — the same role the teacher's Server/NewServer
// pair plays (cmd/server/server.go), generalized from a poker
// GameBridge+engine.Table pair to the store-as-truth realtime stack.
type Server struct {
	config Config

	store    *store.Store
	redis    *redisclient.Client
	locks    *lock.Manager
	auth     *auth.Service
	presence *presence.Registry
	subs     *subscription.Registry
	fabric   *broadcast.Fabric
	chatlog  *chatlog.Store
	ratings  *rating.Service

	games       *game.Handler
	challenges  *challenge.Handler
	tournaments *tournament.Handler
	schedules   *schedule.Handler
	chats       *chat.Handler

	limiter    *ratelimit.Limiter
	restLimit  *ratelimit.Limiter
	router     *router.Router
	jobs       *jobs.Runner
	upgrader   websocket.Upgrader
}

// NewServer wires every internal package into a Server ready to Run.
func NewServer(cfg Config) (*Server, error) {
	st, err := store.Open(store.Config{
		Driver:   cfg.DBDriver,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
	})
	if err != nil {
		return nil, err
	}

	rdb, err := redisclient.New(redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}

	authSvc := auth.NewService(cfg.SessionSecret)
	presenceReg := presence.New()
	subs := subscription.New()
	fabric := broadcast.New(subs)
	chatlogStore := chatlog.New()
	ratings := rating.NewService(st)

	games := game.New(st, ratings, chatlogStore, subs)
	challenges := challenge.New(st)
	tournaments := tournament.New(st, games)
	schedules := schedule.New(st)
	chats := chat.New(st, chatlogStore)

	limiter := ratelimit.New(ratelimit.ActionConfig)
	restLimit := ratelimit.New(ratelimit.DefaultConfig)

	rt := &router.Router{
		Auth:        authSvc,
		Presence:    presenceReg,
		Subs:        subs,
		Fabric:      fabric,
		Chatlog:     chatlogStore,
		Games:       games,
		Challenges:  challenges,
		Tournaments: tournaments,
		Schedules:   schedules,
		Chats:       chats,
		Limiter:     limiter,
	}

	locks := lock.NewManager(rdb.Client)
	jobRunner := jobs.New(locks, fabric, tournaments, schedules, jobs.Config{
		HeartbeatInterval:    cfg.HeartbeatInterval,
		PingInterval:         cfg.PingInterval,
		TournamentPollPeriod: cfg.TournamentPollPeriod,
		ScheduleSweepPeriod:  cfg.ScheduleSweepPeriod,
	})

	return &Server{
		config:      cfg,
		store:       st,
		redis:       rdb,
		locks:       locks,
		auth:        authSvc,
		presence:    presenceReg,
		subs:        subs,
		fabric:      fabric,
		chatlog:     chatlogStore,
		ratings:     ratings,
		games:       games,
		challenges:  challenges,
		tournaments: tournaments,
		schedules:   schedules,
		chats:       chats,
		limiter:     limiter,
		restLimit:   restLimit,
		router:      rt,
		jobs:        jobRunner,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(cfg.AllowedOrigins),
		},
	}, nil
}

// checkOrigin builds a websocket.Upgrader.CheckOrigin function from an
// allow-list, the same role the teacher's checkOrigin/AllowedOrigins
// pair plays (internal/server/websocket/websocket.go), generalized
// from a hard-coded "allow everything" stub to an env-driven list.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// Run starts the periodic-job runner and blocks serving HTTP until
// the process is killed.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.jobs.Run(ctx)

	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := s.setupRoutes()
	log.Printf("server starting on %s", s.config.BindAddr)
	return engine.Run(s.config.BindAddr)
}

// setupRoutes builds the gin engine: the websocket upgrade endpoint,
// the bot auth/play REST surface (original_source/apis/src/api/v1/bot),
// and the snapshot queries a freshly loaded client page uses before a
// websocket connection exists.
func (s *Server) setupRoutes() *gin.Engine {
	r := gin.Default()

	corsConfig := cors.Config{
		AllowOriginFunc: func(origin string) bool {
			for _, a := range s.config.AllowedOrigins {
				if a == "*" || strings.EqualFold(a, origin) {
					return true
				}
			}
			return false
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400 * time.Second,
	}
	r.Use(cors.New(corsConfig))
	r.Use(s.restRateLimit())

	r.GET("/ws", s.handleWebSocket)

	r.POST("/api/v1/auth/token", s.handleBotToken)

	r.GET("/api/challenges", s.handleListChallenges)
	r.GET("/api/tournaments", s.handleListTournaments)
	r.GET("/api/tournaments/:id", s.handleGetTournament)

	bot := r.Group("/api/v1/bot")
	bot.Use(s.botAuthMiddleware())
	{
		bot.GET("/challenges", s.handleBotChallenges)
		bot.GET("/challenge/accept/:id", s.handleBotAcceptChallenge)
		bot.POST("/games/play", s.handleBotPlay)
	}

	return r
}

// restRateLimit applies DefaultConfig REST throttling keyed by client IP.
func (s *Server) restRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.restLimit.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// Close releases the store and redis connections.
func (s *Server) Close() error {
	s.limiter.Stop()
	s.restLimit.Stop()
	if err := s.redis.Close(); err != nil {
		return err
	}
	return s.store.Close()
}
