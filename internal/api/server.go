// Package api provides the JVMPulse query API: stored events from
// ClickHouse, per-node agent status and live events from Redis.
// Uses Fiber v2 (zero-alloc, fasthttp-based).
package api

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/jvmpulse/internal/constants"
	"github.com/sureshkrishnan-v/jvmpulse/internal/event"
	"github.com/sureshkrishnan-v/jvmpulse/internal/storage"
)

// Config holds API server settings.
type Config struct {
	Addr      string        `yaml:"addr" validate:"required"`
	Channel   string        `yaml:"channel" validate:"required"`
	CacheTTL  time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	RateLimit int           `yaml:"rate_limit" validate:"gte=1"`
}

// DefaultConfig returns lean defaults.
func DefaultConfig() Config {
	return Config{
		Addr:      constants.APIDefaultAddr,
		Channel:   constants.RedisPubSubChannel,
		CacheTTL:  constants.APICacheTTL,
		RateLimit: constants.APIRateLimit,
	}
}

// Store is the event storage the API reads; *storage.ClickHouse implements it.
type Store interface {
	Events(ctx context.Context, q storage.EventQuery) ([]storage.EventRow, error)
	KindCounts(ctx context.Context, since time.Time) ([]storage.KindCount, error)
	Overview(ctx context.Context, node string, since time.Time) (storage.Overview, error)
}

// Cache is the Redis surface the API uses; *cache.Redis implements it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Status(ctx context.Context, node string) (map[string]string, error)
	Subscribe(ctx context.Context, channel string) *redis.PubSub
}

// Server is the HTTP API server.
type Server struct {
	cfg    Config
	app    *fiber.App
	store  Store
	cache  Cache
	logger *zap.Logger
	now    func() time.Time
}

// NewServer creates a Fiber API server with all routes.
func NewServer(cfg Config, store Store, cache Cache, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           constants.HTTPReadTimeout,
		WriteTimeout:          constants.HTTPWriteTimeout,
		IdleTimeout:           constants.HTTPIdleTimeout,
	})

	s := &Server{
		cfg:    cfg,
		app:    app,
		store:  store,
		cache:  cache,
		logger: logger.Named("api"),
		now:    time.Now,
	}

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{Format: "${time} ${status} ${method} ${path} ${latency}\n"}))
	app.Use(cors.New(cors.Config{AllowOrigins: "*"}))
	app.Use(compress.New())
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimit,
		Expiration: time.Second,
	}))

	// Routes
	v1 := app.Group("/api/v1")
	v1.Get("/events", s.handleEvents)
	v1.Get("/events/kinds", s.handleKinds)
	v1.Get("/overview", s.handleOverview)
	v1.Get("/nodes/:node/status", s.handleNodeStatus)

	// WebSocket for live events
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleWS))

	// Health
	app.Get(constants.PathHealthz, func(c *fiber.Ctx) error { return c.SendString("ok") })

	return s
}

// App exposes the Fiber app, for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start begins listening. Blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("API server listening", zap.String("addr", s.cfg.Addr))
	return s.app.Listen(s.cfg.Addr)
}

// Stop gracefully shuts down.
func (s *Server) Stop(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// ─── Handlers ────────────────────────────────────────────────────

type eventJSON struct {
	Timestamp time.Time          `json:"timestamp"`
	Kind      string             `json:"kind"`
	Node      string             `json:"node"`
	Instance  string             `json:"instance"`
	Thread    string             `json:"thread,omitempty"`
	Daemon    bool               `json:"daemon"`
	Labels    map[string]string  `json:"labels,omitempty"`
	Numerics  map[string]float64 `json:"numerics,omitempty"`
}

// handleEvents returns paginated events, newest first.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	q := storage.EventQuery{
		Node:   c.Query("node"),
		Thread: c.Query("thread"),
		Limit:  min(max(c.QueryInt("limit", constants.APIDefaultPageSize), 1), constants.APIMaxPageSize),
		Offset: max(c.QueryInt("offset", 0), 0),
	}

	if kind := c.Query("kind"); kind != "" {
		k, err := event.ParseKind(kind)
		if err != nil {
			return badRequest(c, err.Error())
		}
		q.Kind = k.String()
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return badRequest(c, "since must be RFC3339")
		}
		q.Since = t
	}

	rows, err := s.store.Events(c.UserContext(), q)
	if err != nil {
		s.logger.Error("Events query failed", zap.Error(err))
		return queryFailed(c)
	}

	events := make([]eventJSON, 0, len(rows))
	for _, r := range rows {
		events = append(events, eventJSON(r))
	}
	return c.JSON(fiber.Map{
		"events": events,
		"limit":  q.Limit,
		"offset": q.Offset,
	})
}

// handleKinds returns event counts by kind over ?window.
func (s *Server) handleKinds(c *fiber.Ctx) error {
	window := parseWindow(c.Query("window"))
	return s.cached(c, "kinds:"+window.String(), func(ctx context.Context) (any, error) {
		counts, err := s.store.KindCounts(ctx, s.now().Add(-window))
		if err != nil {
			return nil, err
		}
		if counts == nil {
			counts = []storage.KindCount{}
		}
		return fiber.Map{"kinds": counts, "window": window.String()}, nil
	})
}

// handleOverview returns dashboard summary metrics over ?window, optionally
// for one ?node.
func (s *Server) handleOverview(c *fiber.Ctx) error {
	window := parseWindow(c.Query("window"))
	node := c.Query("node")
	return s.cached(c, "overview:"+node+":"+window.String(), func(ctx context.Context) (any, error) {
		o, err := s.store.Overview(ctx, node, s.now().Add(-window))
		if err != nil {
			return nil, err
		}
		return fiber.Map{"overview": o, "node": node, "window": window.String()}, nil
	})
}

// handleNodeStatus returns the status hash a node's agent keeps in Redis:
// event counts by kind, last event time and agent version.
func (s *Server) handleNodeStatus(c *fiber.Ctx) error {
	node := c.Params("node")
	status, err := s.cache.Status(c.UserContext(), node)
	if err != nil {
		s.logger.Error("Status lookup failed", zap.String("node", node), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "status lookup failed"})
	}
	if len(status) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no live agent for node " + node})
	}

	counts := make(map[string]int64, len(status))
	resp := fiber.Map{"node": node, "counts": counts}
	for k, v := range status {
		switch k {
		case "agent_version":
			resp[k] = v
		case "last_event":
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				resp[k] = time.UnixMilli(ms).UTC()
			}
		default:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				counts[k] = n
			}
		}
	}
	return c.JSON(resp)
}

// handleWS streams live events via WebSocket (backed by Redis pub/sub).
func (s *Server) handleWS(c *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := s.cache.Subscribe(ctx, s.cfg.Channel)
	defer sub.Close()

	// The client never sends; a read error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		}
	}
}

// cached serves key from Redis, or computes, stores and serves it.
func (s *Server) cached(c *fiber.Ctx, key string, compute func(context.Context) (any, error)) error {
	ctx := c.UserContext()
	if hit, err := s.cache.Get(ctx, key); err == nil {
		c.Set("X-Cache", "HIT")
		c.Type("json")
		return c.SendString(hit)
	}

	v, err := compute(ctx)
	if err != nil {
		s.logger.Error("Aggregate query failed", zap.String("key", key), zap.Error(err))
		return queryFailed(c)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, key, string(data), s.cfg.CacheTTL); err != nil {
		s.logger.Debug("Cache store failed", zap.String("key", key), zap.Error(err))
	}
	c.Set("X-Cache", "MISS")
	c.Type("json")
	return c.Send(data)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func queryFailed(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "query failed"})
}

// parseWindow reads shorthand windows such as "15m", "6h" or "2d". Anything
// else, including values over the retention period, falls back to one hour.
func parseWindow(s string) time.Duration {
	if len(s) < 2 {
		return constants.APIDefaultWindow
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return constants.APIDefaultWindow
	}

	var d time.Duration
	switch s[len(s)-1] {
	case 'm':
		d = time.Duration(n) * time.Minute
	case 'h':
		d = time.Duration(n) * time.Hour
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	default:
		return constants.APIDefaultWindow
	}
	if d > constants.APIMaxWindow {
		return constants.APIDefaultWindow
	}
	return d
}
