package session

import (
	"context"
	"log/slog"
	"time"

	"inventory-console/internal/cache"
	"inventory-console/internal/models"
	"inventory-console/internal/notify"
	"inventory-console/internal/view"
)

// Metrics is what the session layer reports; ConsoleTelemetry implements it
type Metrics interface {
	view.Metrics
	RecordNotification(ctx context.Context, level string)
}

// Session is the per-browser state: one list view and its notification feed
type Session struct {
	ID      string
	View    *view.Controller
	Feed    *notify.Feed
	metrics Metrics
}

// Notify pushes a notification to the session's feed
func (s *Session) Notify(level, title, message string) models.Notification {
	n := s.Feed.Notify(level, title, message)
	if s.metrics != nil {
		s.metrics.RecordNotification(context.Background(), level)
	}
	return n
}

// StoreConfig holds configuration for a session store
type StoreConfig struct {
	Fetcher            view.Fetcher
	TTL                time.Duration
	CleanupInterval    time.Duration
	PageSize           int
	Columns            []string
	NotificationBuffer int
	Metrics            Metrics
	Logger             *slog.Logger
}

// Store keeps sessions in a TTL cache. Idle sessions expire after TTL.
type Store struct {
	config   StoreConfig
	sessions *cache.TTLCache[*Session]
	logger   *slog.Logger
}

// NewStore creates a session store and starts its janitor
func NewStore(config StoreConfig) *Store {
	if config.TTL <= 0 {
		config.TTL = 30 * time.Minute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Store{
		config:   config,
		sessions: cache.NewTTLCache[*Session]("sessions", config.TTL, config.CleanupInterval),
		logger:   config.Logger,
	}
}

// Get returns the session for id, creating it on first use
func (s *Store) Get(id string) *Session {
	sess, created := s.sessions.GetOrCreate(id, func() *Session {
		return s.newSession(id)
	})
	if created {
		s.logger.Info("View session created", "session_id", id)
	}
	return sess
}

// Lookup returns an existing session without creating one
func (s *Store) Lookup(id string) (*Session, bool) {
	return s.sessions.Touch(id)
}

// Active returns the number of live sessions
func (s *Store) Active() int {
	return s.sessions.ActiveSize()
}

// Stats returns the underlying cache statistics
func (s *Store) Stats() cache.Stats {
	return s.sessions.Stats()
}

// Close stops the janitor
func (s *Store) Close() {
	s.sessions.Stop()
}

func (s *Store) newSession(id string) *Session {
	logger := s.logger.With("session_id", id)
	sess := &Session{
		ID: id,
		Feed: notify.NewFeed(notify.FeedConfig{
			MaxNotifications: s.config.NotificationBuffer,
			Logger:           logger,
		}),
		metrics: s.config.Metrics,
	}

	var viewMetrics view.Metrics
	if s.config.Metrics != nil {
		viewMetrics = s.config.Metrics
	}
	sess.View = view.NewController(s.config.Fetcher, sess, view.Options{
		PageSize: s.config.PageSize,
		Columns:  s.config.Columns,
		Metrics:  viewMetrics,
		Logger:   logger,
	})
	return sess
}
