// Package community implements the discussion board: posts, comments and
// like toggling. Mentors and admins can remove any content; authors can
// remove their own.
package community

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	maxTagsPerPost  = 5
)

type Handlers struct {
	posts *db.PostRepository
}

func NewHandlers(posts *db.PostRepository) *Handlers {
	return &Handlers{posts: posts}
}

type postRequest struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if req.Title == "" || req.Body == "" {
		return apperrors.ValidationError("Title and body are required")
	}
	if len(req.Title) > 200 {
		return apperrors.ValidationError("Title must be 200 characters or fewer")
	}

	tags := NormalizeTags(req.Tags)
	if len(tags) > maxTagsPerPost {
		tags = tags[:maxTagsPerPost]
	}

	now := time.Now()
	post := &db.Post{
		ID:        uuid.New(),
		AuthorID:  user.ID,
		Title:     req.Title,
		Body:      req.Body,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.posts.Create(r.Context(), post); err != nil {
		return err
	}

	created, err := h.posts.GetByID(r.Context(), post.ID)
	if err != nil {
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusCreated, created, "")
	return nil
}

func (h *Handlers) ListPosts(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	q := r.URL.Query()

	tag := ""
	if raw := q.Get("tag"); raw != "" {
		normalized := NormalizeTags([]string{raw})
		if len(normalized) > 0 {
			tag = normalized[0]
		}
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apperrors.ValidationError("page must be a positive integer")
		}
		page = n
	}
	pageSize := defaultPageSize
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apperrors.ValidationError("pageSize must be a positive integer")
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		pageSize = n
	}

	posts, total, err := h.posts.List(r.Context(), tag, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	if posts == nil {
		posts = []*db.Post{}
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, map[string]any{
		"posts": posts,
		"pagination": map[string]int{
			"page":     page,
			"pageSize": pageSize,
			"total":    total,
		},
	}, "")
	return nil
}

func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid post ID")
	}

	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			return apperrors.NotFound("Post")
		}
		return err
	}

	comments, err := h.posts.ListComments(r.Context(), id)
	if err != nil {
		return err
	}
	if comments == nil {
		comments = []*db.Comment{}
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, map[string]any{
		"post":     post,
		"comments": comments,
	}, "")
	return nil
}

// UpdatePost edits a post's title, body and tags. Only the author can
// edit; for anyone else the post simply does not exist.
func (h *Handlers) UpdatePost(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid post ID")
	}

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if req.Title == "" || req.Body == "" {
		return apperrors.ValidationError("Title and body are required")
	}
	if len(req.Title) > 200 {
		return apperrors.ValidationError("Title must be 200 characters or fewer")
	}

	tags := NormalizeTags(req.Tags)
	if len(tags) > maxTagsPerPost {
		tags = tags[:maxTagsPerPost]
	}

	post := &db.Post{
		ID:       id,
		AuthorID: user.ID,
		Title:    req.Title,
		Body:     req.Body,
		Tags:     tags,
	}
	if err := h.posts.Update(r.Context(), post); err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			return apperrors.NotFound("Post")
		}
		return err
	}

	updated, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusOK, updated, "")
	return nil
}

// DeletePost removes a post. Authors delete their own; mentors and admins
// delete anyone's.
func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid post ID")
	}

	post, err := h.posts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			return apperrors.NotFound("Post")
		}
		return err
	}

	if !canModerate(user, post.AuthorID) {
		return apperrors.Forbidden("You can only delete your own posts")
	}

	if err := h.posts.Delete(r.Context(), id); err != nil {
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil, "Post deleted")
	return nil
}

// ToggleLike flips the caller's like on a post.
func (h *Handlers) ToggleLike(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid post ID")
	}

	count, liked, err := h.posts.ToggleLike(r.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			return apperrors.NotFound("Post")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, map[string]any{
		"likeCount": count,
		"liked":     liked,
	}, "")
	return nil
}

func (h *Handlers) CreateComment(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	postID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid post ID")
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		return apperrors.ValidationError("Comment body is required")
	}
	if len(req.Body) > 1000 {
		return apperrors.ValidationError("Comment must be 1000 characters or fewer")
	}

	// Ensure the post exists before attaching a comment.
	if _, err := h.posts.GetByID(r.Context(), postID); err != nil {
		if errors.Is(err, db.ErrPostNotFound) {
			return apperrors.NotFound("Post")
		}
		return err
	}

	comment := &db.Comment{
		ID:        uuid.New(),
		PostID:    postID,
		AuthorID:  user.ID,
		Body:      req.Body,
		CreatedAt: time.Now(),
	}
	if err := h.posts.CreateComment(r.Context(), comment); err != nil {
		return err
	}

	created, err := h.posts.GetComment(r.Context(), comment.ID)
	if err != nil {
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusCreated, created, "")
	return nil
}

func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("commentId"))
	if err != nil {
		return apperrors.BadRequest("Invalid comment ID")
	}

	comment, err := h.posts.GetComment(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrCommentNotFound) {
			return apperrors.NotFound("Comment")
		}
		return err
	}

	if !canModerate(user, comment.AuthorID) {
		return apperrors.Forbidden("You can only delete your own comments")
	}

	if err := h.posts.DeleteComment(r.Context(), id); err != nil {
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil, "Comment deleted")
	return nil
}

func canModerate(user *auth.UserContext, authorID uuid.UUID) bool {
	return user.ID == authorID || user.Role == db.RoleMentor || user.Role == db.RoleAdmin
}
