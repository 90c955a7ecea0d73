package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nextpost/backend/models"
	"github.com/nextpost/backend/repository"
	ws "github.com/nextpost/backend/websocket"
)

const (
	DefaultDispatchInterval = 30 * time.Second
	DefaultWorkers          = 4
	DefaultMaxRetries       = 3
	DefaultFailedMaxAge     = 7 * 24 * time.Hour

	// Claim batch per dispatch tick; keeps one slow tick from hoarding work
	dispatchBatchSize = 50

	// Failure messages stored on posts are capped at this length
	maxStoredErrorLen = 1000

	retryBackoffBase = time.Minute
	cleanupInterval  = time.Hour
)

// Scheduler polls for due posts and publishes them through a worker pool,
// retrying failures with exponential backoff
type Scheduler struct {
	repo           *repository.GORMRepository
	publisher      *Publisher
	hub            *ws.Hub
	interval       time.Duration
	workers        int
	maxRetries     int
	failedMaxAge   time.Duration
	cleanupEnabled bool
	queue          chan models.Post
	wg             sync.WaitGroup
}

func NewScheduler(repo *repository.GORMRepository, publisher *Publisher, hub *ws.Hub, config SchedulerConfig) *Scheduler {
	interval, err := time.ParseDuration(config.Interval)
	if err != nil || interval <= 0 {
		interval = DefaultDispatchInterval
	}
	failedMaxAge, err := time.ParseDuration(config.FailedMaxAge)
	if err != nil || failedMaxAge <= 0 {
		failedMaxAge = DefaultFailedMaxAge
	}
	workers := config.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	maxRetries := config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Scheduler{
		repo:           repo,
		publisher:      publisher,
		hub:            hub,
		interval:       interval,
		workers:        workers,
		maxRetries:     maxRetries,
		failedMaxAge:   failedMaxAge,
		cleanupEnabled: config.CleanupEnabled,
		queue:          make(chan models.Post, 256),
	}
}

// Start launches the dispatcher, the worker pool and the cleanup loop. It
// returns immediately; everything stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	s.wg.Add(1)
	go s.dispatchLoop(ctx)

	if s.cleanupEnabled {
		s.wg.Add(1)
		go s.cleanupLoop(ctx)
	}

	slog.Info("Scheduler started", "interval", s.interval, "workers", s.workers, "max_retries", s.maxRetries)
}

// Wait blocks until all scheduler goroutines have drained
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Enqueue hands a post already claimed as publishing to the worker pool.
// Used by the publish-now endpoint.
func (s *Scheduler) Enqueue(post models.Post) {
	select {
	case s.queue <- post:
	default:
		slog.Warn("Scheduler queue full, publishing inline", "post_id", post.ID)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.publishPost(context.Background(), post)
		}()
	}
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler dispatcher stopping")
			return
		case <-ticker.C:
			s.dispatchDuePosts(ctx)
		}
	}
}

func (s *Scheduler) dispatchDuePosts(ctx context.Context) {
	claimed, err := s.repo.ClaimDuePosts(ctx, time.Now(), dispatchBatchSize)
	if err != nil {
		slog.Error("Failed to claim due posts", "error", err)
		return
	}
	if len(claimed) == 0 {
		return
	}

	slog.Info("Dispatching due posts", "count", len(claimed))
	for _, post := range claimed {
		s.notify(post.UserID, post.ID, models.PostStatusPublishing, "")
		select {
		case s.queue <- post:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case post := <-s.queue:
			s.publishPost(ctx, post)
		}
	}
}

// publishPost runs one publish attempt and records the outcome
func (s *Scheduler) publishPost(ctx context.Context, post models.Post) {
	result, err := s.publisher.Publish(ctx, &post)
	if err != nil {
		s.handleFailure(ctx, post, err)
		return
	}

	now := time.Now()
	post.Status = models.PostStatusPublished
	post.PublishedAt = &now
	post.PlatformPostID = result.PlatformPostID
	post.PublishedURL = result.PublishedURL
	post.ErrorMessage = ""
	post.NextAttemptAt = nil

	if err := s.repo.UpdatePost(ctx, &post); err != nil {
		slog.Error("Failed to record published post", "post_id", post.ID, "error", err)
		return
	}
	if err := s.repo.IncrementAccountUsage(ctx, post.SocialAccountID); err != nil {
		slog.Error("Failed to update account usage", "post_id", post.ID, "account_id", post.SocialAccountID, "error", err)
	}

	s.notify(post.UserID, post.ID, models.PostStatusPublished, "")
	slog.Info("Post published successfully", "post_id", post.ID, "platform_post_id", result.PlatformPostID)
}

func (s *Scheduler) handleFailure(ctx context.Context, post models.Post, publishErr error) {
	post.Attempts++
	post.ErrorMessage = truncateError(publishErr.Error())

	if post.Attempts < s.maxRetries {
		// Requeue with exponential backoff
		next := time.Now().Add(RetryBackoff(post.Attempts))
		post.Status = models.PostStatusScheduled
		post.NextAttemptAt = &next

		if err := s.repo.UpdatePost(ctx, &post); err != nil {
			slog.Error("Failed to requeue post", "post_id", post.ID, "error", err)
			return
		}
		slog.Warn("Publish attempt failed, retry scheduled",
			"post_id", post.ID, "attempt", post.Attempts, "next_attempt_at", next, "error", publishErr)
		return
	}

	post.Status = models.PostStatusFailed
	post.NextAttemptAt = nil
	if err := s.repo.UpdatePost(ctx, &post); err != nil {
		slog.Error("Failed to mark post failed", "post_id", post.ID, "error", err)
		return
	}

	s.notify(post.UserID, post.ID, models.PostStatusFailed, post.ErrorMessage)
	slog.Error("Post failed after retries", "post_id", post.ID, "attempts", post.Attempts, "error", publishErr)
}

// truncateError caps a failure message at maxStoredErrorLen bytes without
// splitting a multi-byte character
func truncateError(message string) string {
	if len(message) <= maxStoredErrorLen {
		return message
	}
	cut := maxStoredErrorLen
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}

// RetryBackoff returns the delay before the given retry attempt:
// 1m, 2m, 4m, ...
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return retryBackoffBase << (attempt - 1)
}

func (s *Scheduler) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler cleanup stopping")
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.failedMaxAge)
			if _, err := s.repo.PurgeFailedPosts(ctx, cutoff); err != nil {
				slog.Error("Failed posts cleanup failed", "error", err)
			}
		}
	}
}

// ScheduledPostIssue flags a scheduled post that would fail to publish
type ScheduledPostIssue struct {
	PostID string   `json:"post_id"`
	Errors []string `json:"errors"`
}

// ValidationSweep is the outcome of checking scheduled posts ahead of time
type ValidationSweep struct {
	TotalChecked int                  `json:"total_checked"`
	ValidPosts   int                  `json:"valid_posts"`
	InvalidPosts int                  `json:"invalid_posts"`
	Issues       []ScheduledPostIssue `json:"issues,omitempty"`
}

// ValidateScheduledPosts checks scheduled posts against their platform rules
// so problems surface before publish time. An empty userID sweeps all users.
func (s *Scheduler) ValidateScheduledPosts(ctx context.Context, userID string) (*ValidationSweep, error) {
	posts, err := s.repo.GetScheduledPosts(ctx, userID)
	if err != nil {
		return nil, err
	}

	sweep := &ValidationSweep{}
	for _, post := range posts {
		sweep.TotalChecked++
		errs := s.publisher.ValidateForPublication(&post, &post.SocialAccount)
		if len(errs) == 0 {
			sweep.ValidPosts++
			continue
		}
		sweep.InvalidPosts++
		sweep.Issues = append(sweep.Issues, ScheduledPostIssue{PostID: post.ID, Errors: errs})
		slog.Warn("Scheduled post has validation issues", "post_id", post.ID, "errors", errs)
	}

	slog.Info("Scheduled post validation complete", "valid", sweep.ValidPosts, "total", sweep.TotalChecked)
	return sweep, nil
}

func (s *Scheduler) notify(userID, postID string, status models.PostStatus, errMsg string) {
	if s.hub == nil {
		return
	}
	s.hub.Notify(ws.Event{
		UserID: userID,
		Type:   "post_status",
		PostID: postID,
		Status: string(status),
		Error:  errMsg,
	})
}
