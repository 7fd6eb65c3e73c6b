// Package api exposes a sale over HTTP. Reads are open; state-changing
// routes require an EIP-191 signature from the acting account.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Mohsinsiddi/w3sale/internal/journal"
	"github.com/Mohsinsiddi/w3sale/internal/sale"
	"github.com/Mohsinsiddi/w3sale/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultRequestTTL bounds how far in the future a signed request's
// deadline may be.
const DefaultRequestTTL = 5 * time.Minute

// Server serializes every state-changing request: the sale operation, the
// state file write and the journal append happen under one lock.
type Server struct {
	mu sync.Mutex

	world   *store.World
	journal *journal.Journal
	events  *sale.Recorder
	logger  *zap.Logger
	clock   sale.Clock
	ttl     time.Duration
	replay  *replayCache
}

// Option configures a Server.
type Option func(*Server)

// WithJournal appends committed events to j.
func WithJournal(j *journal.Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithClock overrides the clock used for request deadlines.
func WithClock(c sale.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// WithRequestTTL overrides DefaultRequestTTL.
func WithRequestTTL(d time.Duration) Option {
	return func(s *Server) { s.ttl = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer serves world. events must be the sink the world's sale emits into.
func NewServer(world *store.World, events *sale.Recorder, opts ...Option) *Server {
	s := &Server{
		world:  world,
		events: events,
		logger: zap.NewNop(),
		clock:  sale.SystemClock,
		ttl:    DefaultRequestTTL,
		replay: newReplayCache(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// InitRoutes registers every endpoint on e.
func (s *Server) InitRoutes(e *gin.Engine) {
	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	e.GET("/sale", s.handleStatus)
	e.GET("/sale/amount-out", s.handleAmountOut)
	e.GET("/sale/depositors/:address", s.handleDepositor)
	e.GET("/sale/commitments/:id", s.handleCommitment)
	e.GET("/events", s.handleEvents)

	e.POST("/sale/buy", s.handleBuy)
	e.POST("/sale/claim", s.handleClaim)
	e.POST("/sale/finalize", s.handleFinalize)
	e.POST("/sale/sweep", s.handleSweep)
}

// Handler returns a gin engine with recovery and request logging.
func (s *Server) Handler() http.Handler {
	e := gin.New()
	e.Use(gin.Recovery(), s.requestLogger())
	s.InitRoutes(e)
	return e
}

// ListenAndServe runs the API on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readHeaderTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down api: %w", err)
	}
	return nil
}

// transact runs op and commits its effects. A request already committed
// under g's key is refused. Events of a failed op are dropped. When the
// state write fails, the world is reset to its state before op. g is
// recorded only after a successful write. Chain-linked token transfers that
// op already broadcast cannot be rolled back.
func (s *Server) transact(ctx context.Context, g *grant, op func(*sale.Sale) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g != nil && s.replay.used(g.key, s.clock.Now().Unix()) {
		return ErrRequestReplayed
	}
	sl, err := s.world.Sale()
	if err != nil {
		return err
	}
	before := s.world.Snapshot()
	if err := op(sl); err != nil {
		s.events.Drain()
		return err
	}
	if err := s.world.Save(); err != nil {
		s.rollback(before)
		return fmt.Errorf("saving state: %w", err)
	}
	if g != nil {
		s.replay.remember(g.key, g.deadline)
	}
	records := s.events.Drain()
	if s.journal != nil {
		if err := s.journal.Append(ctx, records); err != nil {
			// The state file is already written; the journal only lags.
			s.logger.Error("journal append failed", zap.Int("events", len(records)), zap.Error(err))
		}
	}
	return nil
}

func (s *Server) rollback(before *store.Snapshot) {
	s.events.Drain()
	if err := s.world.Reset(before); err != nil {
		s.logger.Error("rolling back state failed", zap.Error(err))
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
