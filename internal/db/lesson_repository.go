package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrLessonNotFound = errors.New("lesson not found")

// QuizQuestion is one multiple-choice question in a lesson quiz. The correct
// answer index is stored but stripped before the quiz reaches learners.
type QuizQuestion struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

type Lesson struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	Slug            string         `json:"slug"`
	ContentMarkdown string         `json:"contentMarkdown"`
	DurationMins    int            `json:"durationMins"`
	Quiz            []QuizQuestion `json:"quiz,omitempty"`
	Tags            []string       `json:"tags"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type LessonRepository struct {
	db *DB
}

func NewLessonRepository(db *DB) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonColumns = `id, title, slug, content_markdown, duration_mins, quiz, tags, created_at, updated_at`

func (r *LessonRepository) Create(ctx context.Context, l *Lesson) error {
	quiz, err := json.Marshal(l.Quiz)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO lessons (` + lessonColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		l.ID, l.Title, l.Slug, l.ContentMarkdown, l.DurationMins,
		quiz, pq.Array(l.Tags), l.CreatedAt, l.UpdatedAt,
	)
	return err
}

func (r *LessonRepository) GetByID(ctx context.Context, id uuid.UUID) (*Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`
	return scanLesson(r.db.QueryRowContext(ctx, query, id))
}

func (r *LessonRepository) GetBySlug(ctx context.Context, slug string) (*Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE slug = $1`
	return scanLesson(r.db.QueryRowContext(ctx, query, slug))
}

// List returns lessons oldest-first, optionally filtered to those carrying
// the given tag.
func (r *LessonRepository) List(ctx context.Context, tag string) ([]*Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons
		WHERE ($1 = '' OR $1 = ANY(tags))
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, tag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []*Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

func (r *LessonRepository) Update(ctx context.Context, l *Lesson) error {
	quiz, err := json.Marshal(l.Quiz)
	if err != nil {
		return err
	}
	query := `
		UPDATE lessons
		SET title = $2, slug = $3, content_markdown = $4, duration_mins = $5,
			quiz = $6, tags = $7, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		l.ID, l.Title, l.Slug, l.ContentMarkdown, l.DurationMins, quiz, pq.Array(l.Tags),
	)
	if err != nil {
		return err
	}
	return expectRow(result, ErrLessonNotFound)
}

func (r *LessonRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrLessonNotFound)
}

func scanLesson(row interface{ Scan(...any) error }) (*Lesson, error) {
	l := &Lesson{}
	var quiz []byte
	err := row.Scan(
		&l.ID, &l.Title, &l.Slug, &l.ContentMarkdown, &l.DurationMins,
		&quiz, pq.Array(&l.Tags), &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(quiz, &l.Quiz); err != nil {
		return nil, err
	}
	return l, nil
}
