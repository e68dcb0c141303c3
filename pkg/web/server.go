// Package web exposes the voice command system over HTTP and websockets.
//
// The REST surface covers text classification and parameter extraction,
// starting and cancelling interactions, pushing transcripts into a running
// interaction, and reading command history. Session state changes and
// finished interactions are broadcast on /ws/state.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-autovoice/pkg/command"
	"github.com/teslashibe/go-autovoice/pkg/history"
	"github.com/teslashibe/go-autovoice/pkg/hub"
	"github.com/teslashibe/go-autovoice/pkg/stt"
	"github.com/teslashibe/go-autovoice/pkg/voice"
)

// DefaultCacheSize bounds the classification cache.
const DefaultCacheSize = 512

// Server is the HTTP and websocket surface.
type Server struct {
	app      *fiber.App
	validate *validator.Validate
	logger   *slog.Logger

	classifier  *command.Classifier
	orch        *voice.Orchestrator
	inbox       *stt.Inbox
	transcriber stt.Provider
	history     history.Store
	stateHub    *hub.Hub
	cache       *lru.Cache[string, command.Result]
	cacheSize   int

	// lifetime of background interactions; set by Run
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithOrchestrator enables the interaction endpoints.
func WithOrchestrator(o *voice.Orchestrator) Option {
	return func(s *Server) { s.orch = o }
}

// WithInbox enables pushing transcripts over HTTP. The inbox should be the
// orchestrator's transcriber.
func WithInbox(b *stt.Inbox) Option {
	return func(s *Server) { s.inbox = b }
}

// WithTranscriptionProvider enables audio uploads to /api/transcripts/audio.
func WithTranscriptionProvider(p stt.Provider) Option {
	return func(s *Server) { s.transcriber = p }
}

// WithHistory sets the history store. Defaults to an in-memory store.
func WithHistory(h history.Store) Option {
	return func(s *Server) { s.history = h }
}

// WithClassifier sets the classifier used by the text endpoints.
// Defaults to the orchestrator's classifier, or the default registry.
func WithClassifier(c *command.Classifier) Option {
	return func(s *Server) { s.classifier = c }
}

// WithCacheSize bounds the classification cache. Zero disables it.
func WithCacheSize(n int) Option {
	return func(s *Server) { s.cacheSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates the server and registers its routes.
func NewServer(opts ...Option) (*Server, error) {
	s := &Server{
		validate:  validator.New(),
		logger:    slog.Default(),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")

	if s.classifier == nil {
		if s.orch != nil {
			s.classifier = s.orch.Classifier()
		} else {
			s.classifier = command.NewClassifier(nil)
		}
	}
	if s.history == nil {
		s.history = history.NewMemoryStore(0)
	}
	if s.cacheSize > 0 {
		cache, err := lru.New[string, command.Result](s.cacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	s.stateHub = hub.New("state", s.logger)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	app := fiber.New(fiber.Config{
		AppName:               "autovoice",
		DisableStartupMessage: true,
		BodyLimit:             25 * 1024 * 1024,
		JSONEncoder:           jsoniter.Marshal,
		JSONDecoder:           jsoniter.Unmarshal,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Output: &logWriter{logger: s.logger},
		Format: "${status} ${method} ${path} ${latency}\n",
	}))
	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/commands", s.handleListCommands)
	api.Post("/classify", s.handleClassify)
	api.Post("/extract", s.handleExtract)
	api.Get("/suggest", s.handleSuggest)

	api.Get("/state", s.handleState)
	api.Post("/interactions", s.handleStartInteraction)
	api.Post("/interactions/cancel", s.handleCancelInteraction)
	api.Get("/interactions/last", s.handleLastInteraction)
	api.Post("/transcripts", s.handleSubmitTranscript)
	api.Post("/transcripts/audio", s.handleSubmitAudio)
	api.Get("/metrics", s.handleMetrics)

	api.Get("/history", s.handleHistory)
	api.Get("/history/stats", s.handleHistoryStats)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	s.app = app
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the state broadcast hub.
func (s *Server) Hub() *hub.Hub {
	return s.stateHub
}

// Start begins broadcasting. It is called by Run and Serve; tests that drive
// the app directly call it themselves.
func (s *Server) Start() {
	go s.stateHub.Run(s.ctx)
	if s.orch != nil {
		changes, unsubscribe := s.orch.Subscribe(32)
		go func() {
			defer unsubscribe()
			hub.Forward(s.ctx, s.stateHub, hub.EventState, changes)
		}()
	}
}

// Run listens on addr until ctx is done, then shuts down.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.Start()
	s.logger.Info("web server listening", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listener(ln) }()

	select {
	case err := <-errc:
		s.stop()
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown cancels running interactions and stops the server.
func (s *Server) Shutdown() error {
	s.stop()
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

func (s *Server) stop() {
	if s.orch != nil {
		s.orch.Cancel()
	}
	s.cancel()
	s.wg.Wait()
}

// logWriter adapts the fiber access log to slog.
type logWriter struct {
	logger *slog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Debug("request", "line", strings.TrimSpace(string(p)))
	return len(p), nil
}

// handleError renders errors that escaped a handler.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}
	return s.fail(c, err, "unhandled")
}
