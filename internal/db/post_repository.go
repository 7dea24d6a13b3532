package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrPostNotFound = errors.New("post not found")
var ErrCommentNotFound = errors.New("comment not found")

type Post struct {
	ID         uuid.UUID   `json:"id"`
	AuthorID   uuid.UUID   `json:"authorId"`
	AuthorName string      `json:"authorName,omitempty"`
	Title      string      `json:"title"`
	Body       string      `json:"body"`
	Tags       []string    `json:"tags"`
	Likes      []uuid.UUID `json:"-"`
	LikeCount  int         `json:"likeCount"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

type Comment struct {
	ID         uuid.UUID `json:"id"`
	PostID     uuid.UUID `json:"postId"`
	AuthorID   uuid.UUID `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

type PostRepository struct {
	db *DB
}

func NewPostRepository(db *DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, p *Post) error {
	query := `
		INSERT INTO posts (id, author_id, title, body, tags, likes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '{}', $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.AuthorID, p.Title, p.Body, pq.Array(p.Tags), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *PostRepository) GetByID(ctx context.Context, id uuid.UUID) (*Post, error) {
	query := `
		SELECT p.id, p.author_id, u.name, p.title, p.body, p.tags, p.likes,
			p.created_at, p.updated_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1
	`
	return scanPost(r.db.QueryRowContext(ctx, query, id))
}

// List returns posts newest-first with the total count, optionally filtered
// by tag.
func (r *PostRepository) List(ctx context.Context, tag string, limit, offset int) ([]*Post, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE ($1 = '' OR $1 = ANY(tags))`, tag,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT p.id, p.author_id, u.name, p.title, p.body, p.tags, p.likes,
			p.created_at, p.updated_at
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE ($1 = '' OR $1 = ANY(p.tags))
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, tag, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, p)
	}
	return posts, total, rows.Err()
}

func (r *PostRepository) Update(ctx context.Context, p *Post) error {
	query := `
		UPDATE posts
		SET title = $3, body = $4, tags = $5, updated_at = NOW()
		WHERE id = $1 AND author_id = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		p.ID, p.AuthorID, p.Title, p.Body, pq.Array(p.Tags),
	)
	if err != nil {
		return err
	}
	return expectRow(result, ErrPostNotFound)
}

// Delete removes a post. The caller enforces that only the author or a
// moderator reaches this point.
func (r *PostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrPostNotFound)
}

// ToggleLike adds the user to the post's like set if absent, removes them if
// present, and returns the resulting like count and liked state.
func (r *PostRepository) ToggleLike(ctx context.Context, postID, userID uuid.UUID) (int, bool, error) {
	query := `
		UPDATE posts
		SET likes = CASE
				WHEN $2 = ANY(likes) THEN array_remove(likes, $2)
				ELSE array_append(likes, $2)
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING cardinality(likes), $2 = ANY(likes)
	`
	var count int
	var liked bool
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&count, &liked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, ErrPostNotFound
		}
		return 0, false, err
	}
	return count, liked, nil
}

func (r *PostRepository) CreateComment(ctx context.Context, c *Comment) error {
	query := `
		INSERT INTO comments (id, post_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.PostID, c.AuthorID, c.Body, c.CreatedAt)
	return err
}

func (r *PostRepository) ListComments(ctx context.Context, postID uuid.UUID) ([]*Comment, error) {
	query := `
		SELECT c.id, c.post_id, c.author_id, u.name, c.body, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		c := &Comment{}
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *PostRepository) GetComment(ctx context.Context, id uuid.UUID) (*Comment, error) {
	query := `
		SELECT c.id, c.post_id, c.author_id, u.name, c.body, c.created_at
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id = $1
	`
	c := &Comment{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.PostID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *PostRepository) DeleteComment(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrCommentNotFound)
}

func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	p := &Post{}
	var likes []string
	err := row.Scan(
		&p.ID, &p.AuthorID, &p.AuthorName, &p.Title, &p.Body,
		pq.Array(&p.Tags), pq.Array(&likes), &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	for _, s := range likes {
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		p.Likes = append(p.Likes, id)
	}
	p.LikeCount = len(p.Likes)
	return p, nil
}
