package services

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nextpost/backend/models"
	"github.com/nextpost/backend/repository"
)

type PostEndpoints struct {
	repo      *repository.GORMRepository
	publisher *Publisher
	scheduler *Scheduler
}

func NewPostEndpoints(repo *repository.GORMRepository, publisher *Publisher, scheduler *Scheduler) *PostEndpoints {
	return &PostEndpoints{
		repo:      repo,
		publisher: publisher,
		scheduler: scheduler,
	}
}

type CreatePostRequest struct {
	SocialAccountID string     `json:"social_account_id" validate:"required,uuid"`
	Title           string     `json:"title" validate:"max=255"`
	Content         string     `json:"content" validate:"required,min=5,max=2000"`
	MediaURLs       []string   `json:"media_urls" validate:"omitempty,dive,url"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
}

type UpdatePostRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,max=255"`
	Content     *string    `json:"content,omitempty" validate:"omitempty,min=5,max=2000"`
	MediaURLs   *[]string  `json:"media_urls,omitempty" validate:"omitempty,dive,url"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	// Distinguishes "unschedule" from "leave the schedule alone"
	ClearSchedule bool `json:"clear_schedule,omitempty"`
}

type ValidateContentRequest struct {
	Content   string                `json:"content" validate:"required"`
	Platform  models.SocialPlatform `json:"platform" validate:"required"`
	MediaURLs []string              `json:"media_urls" validate:"omitempty,dive,url"`
}

func (e *PostEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/posts", func(r chi.Router) {
		r.Post("/", e.CreatePostHandler)
		r.Get("/", e.GetPostsHandler)
		r.Get("/drafts", e.statusListHandler(models.PostStatusDraft))
		r.Get("/scheduled", e.statusListHandler(models.PostStatusScheduled))
		r.Get("/published", e.statusListHandler(models.PostStatusPublished))
		r.Get("/failed", e.statusListHandler(models.PostStatusFailed))
		r.Get("/stats", e.StatsHandler)
		r.Post("/validate-content", e.ValidateContentHandler)
		r.Post("/validate-scheduled", e.ValidateScheduledHandler)
		r.Get("/{id}", e.GetPostHandler)
		r.Patch("/{id}", e.UpdatePostHandler)
		r.Delete("/{id}", e.DeletePostHandler)
		r.Post("/{id}/publish-now", e.PublishNowHandler)
		r.Post("/{id}/cancel", e.CancelHandler)
		r.Post("/{id}/duplicate", e.DuplicateHandler)
		r.Get("/{id}/validate", e.ValidatePostHandler)
	})
}

func (e *PostEndpoints) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	// Length rules apply to the trimmed content
	req.Content = strings.TrimSpace(req.Content)
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ScheduledAt != nil && !req.ScheduledAt.After(time.Now()) {
		http.Error(w, "Scheduled time must be in the future", http.StatusBadRequest)
		return
	}

	// The target account must exist and belong to the user
	account, err := e.repo.GetSocialAccountByID(r.Context(), req.SocialAccountID, user.ID)
	if err != nil {
		http.Error(w, "Failed to validate social account", http.StatusInternalServerError)
		return
	}
	if account == nil {
		http.Error(w, "Social account not found", http.StatusNotFound)
		return
	}

	post := models.Post{
		UserID:          user.ID,
		SocialAccountID: account.ID,
		Title:           req.Title,
		Content:         req.Content,
		MediaURLs:       req.MediaURLs,
		ScheduledAt:     req.ScheduledAt,
		Status:          models.PostStatusDraft,
	}
	if req.ScheduledAt != nil {
		post.Status = models.PostStatusScheduled
	}

	if err := e.repo.CreatePost(r.Context(), &post); err != nil {
		slog.Error("Failed to create post", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to create post", http.StatusInternalServerError)
		return
	}
	post.SocialAccount = *account

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"post":    post,
		"message": "Post created successfully",
	})

	slog.Info("Post created", "post_id", post.ID, "user_id", user.ID, "status", post.Status)
}

func (e *PostEndpoints) GetPostsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	status := models.PostStatus(r.URL.Query().Get("status"))
	e.writePostList(w, r, user.ID, status)
}

func (e *PostEndpoints) statusListHandler(status models.PostStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			http.Error(w, "User not found in context", http.StatusInternalServerError)
			return
		}
		e.writePostList(w, r, user.ID, status)
	}
}

func (e *PostEndpoints) writePostList(w http.ResponseWriter, r *http.Request, userID string, status models.PostStatus) {
	posts, err := e.repo.GetPosts(r.Context(), userID, status)
	if err != nil {
		slog.Error("Failed to get posts", "error", err, "user_id", userID)
		http.Error(w, "Failed to get posts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"posts": posts,
		"count": len(posts),
	})
}

func (e *PostEndpoints) GetPostHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	post, err := e.loadPost(w, r, user.ID)
	if post == nil || err != nil {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"post": post,
	})
}

func (e *PostEndpoints) UpdatePostHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	post, err := e.loadPost(w, r, user.ID)
	if post == nil || err != nil {
		return
	}

	if post.Status == models.PostStatusPublished {
		http.Error(w, "Cannot modify a published post", http.StatusBadRequest)
		return
	}

	var req UpdatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content != nil {
		trimmed := strings.TrimSpace(*req.Content)
		req.Content = &trimmed
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Title != nil {
		post.Title = *req.Title
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	if req.MediaURLs != nil {
		post.MediaURLs = *req.MediaURLs
	}
	if req.ClearSchedule {
		post.ScheduledAt = nil
		post.Status = models.PostStatusDraft
		post.NextAttemptAt = nil
		post.Attempts = 0
	} else if req.ScheduledAt != nil {
		if !req.ScheduledAt.After(time.Now()) {
			http.Error(w, "Scheduled time must be in the future", http.StatusBadRequest)
			return
		}
		post.ScheduledAt = req.ScheduledAt
		post.Status = models.PostStatusScheduled
		post.NextAttemptAt = nil
		post.Attempts = 0
	}

	if err := e.repo.UpdatePost(r.Context(), post); err != nil {
		slog.Error("Failed to update post", "error", err, "post_id", post.ID)
		http.Error(w, "Failed to update post", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"post":    post,
		"message": "Post updated",
	})

	slog.Info("Post updated", "post_id", post.ID, "user_id", user.ID, "status", post.Status)
}

func (e *PostEndpoints) DeletePostHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	post, err := e.loadPost(w, r, user.ID)
	if post == nil || err != nil {
		return
	}

	if err := e.repo.DeletePost(r.Context(), post.ID); err != nil {
		http.Error(w, "Failed to delete post", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Post deleted",
	})

	slog.Info("Post deleted", "post_id", post.ID, "user_id", user.ID)
}

func (e *PostEndpoints) PublishNowHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	post, err := e.loadPost(w, r, user.ID)
	if post == nil || err != nil {
		return
	}

	if post.Status == models.PostStatusPublished {
		http.Error(w, "This post is already published", http.StatusBadRequest)
		return
	}
	if post.Status == models.PostStatusPublishing {
		http.Error(w, "This post is currently being published", http.StatusBadRequest)
		return
	}

	if errs := e.publisher.ValidateForPublication(post, &post.SocialAccount); len(errs) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":             "Post validation failed",
			"validation_errors": errs,
		})
		return
	}

	// Claim the post and hand it to the worker pool
	post.Status = models.PostStatusPublishing
	post.Attempts = 0
	post.NextAttemptAt = nil
	if err := e.repo.UpdatePost(r.Context(), post); err != nil {
		http.Error(w, "Failed to queue post", http.StatusInternalServerError)
		return
	}
	e.scheduler.Enqueue(*post)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Post queued for immediate publication",
		"post_id": post.ID,
	})

	slog.Info("Post queued for immediate publication", "post_id", post.ID, "user_id", user.ID)
}

func (e *PostEndpoints) CancelHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	post, err := e.loadPost(w, r, user.ID)
	if post == nil || err != nil {
		return
	}

	if post.Status != models.PostStatusScheduled && post.Status != models.PostStatusPublishing {
		http.Error(w, "This post is not scheduled or being published", http.StatusBadRequest)
		return
	}

	post.Status = models.PostStatusCancelled
	post.NextAttemptAt = nil
	if err := e.repo.UpdatePost(r.Context(), post); err != nil {
		http.Error(w, "Failed to cancel post", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Post scheduling cancelled",
		"post":    post,
	})

	slog.Info("Post scheduling cancelled", "post_id", post.ID, "user_id", user.ID)
}

func (e *PostEndpoints) DuplicateHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	original, err := e.loadPost(w, r, user.ID)
	if original == nil || err != nil {
		return
	}

	title := original.Title
	if title != "" {
		title = "Copy of " + title
	}
	copyPost := models.Post{
		UserID:          user.ID,
		SocialAccountID: original.SocialAccountID,
		Title:           title,
		Content:         original.Content,
		MediaURLs:       append(models.MediaURLs{}, original.MediaURLs...),
		Status:          models.PostStatusDraft,
	}

	if err := e.repo.CreatePost(r.Context(), &copyPost); err != nil {
		http.Error(w, "Failed to duplicate post", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Post duplicated successfully",
		"post":    copyPost,
	})

	slog.Info("Post duplicated", "original_post_id", original.ID, "post_id", copyPost.ID, "user_id", user.ID)
}

func (e *PostEndpoints) ValidatePostHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	post, err := e.loadPost(w, r, user.ID)
	if post == nil || err != nil {
		return
	}

	errs := e.publisher.ValidateForPublication(post, &post.SocialAccount)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"is_valid":          len(errs) == 0,
		"validation_errors": errs,
		"platform_rules":    post.SocialAccount.Platform.Capabilities(),
	})
}

func (e *PostEndpoints) ValidateContentHandler(w http.ResponseWriter, r *http.Request) {
	var req ValidateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if !req.Platform.IsValid() {
		http.Error(w, "Unsupported platform: "+string(req.Platform), http.StatusBadRequest)
		return
	}

	probe := models.Post{Content: req.Content, MediaURLs: req.MediaURLs}
	errs := probe.ValidateForPlatform(req.Platform)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"is_valid":          len(errs) == 0,
		"validation_errors": errs,
		"platform_rules":    req.Platform.Capabilities(),
	})
}

func (e *PostEndpoints) StatsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	stats, err := e.repo.GetPostStats(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to get post stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)

	slog.Info("Post stats retrieved", "user_id", user.ID, "total", stats.Total)
}

func (e *PostEndpoints) ValidateScheduledHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	sweep, err := e.scheduler.ValidateScheduledPosts(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to validate scheduled posts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sweep)

	slog.Info("Scheduled posts validated", "user_id", user.ID, "total", sweep.TotalChecked, "invalid", sweep.InvalidPosts)
}

// loadPost fetches the post named in the URL, writing the error response on
// failure; callers bail out when it returns nil
func (e *PostEndpoints) loadPost(w http.ResponseWriter, r *http.Request, userID string) (*models.Post, error) {
	postID := chi.URLParam(r, "id")
	if postID == "" {
		http.Error(w, "Post ID is required", http.StatusBadRequest)
		return nil, nil
	}

	post, err := e.repo.GetPostByID(r.Context(), postID, userID)
	if err != nil {
		slog.Error("Failed to get post", "error", err, "post_id", postID, "user_id", userID)
		http.Error(w, "Failed to get post", http.StatusInternalServerError)
		return nil, err
	}
	if post == nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return nil, nil
	}
	return post, nil
}
