// Package learning serves lessons and quizzes and tracks per-user progress.
// Completing a lesson's quiz awards points exactly once per lesson.
package learning

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
	"github.com/finwise/backend/internal/gamification"
)

// Points granted on first completion of a lesson.
const completionPoints = 10

// Minimum quiz score (percent) that counts as passing.
const passingScore = 60

type Handlers struct {
	lessons      *db.LessonRepository
	progress     *db.ProgressRepository
	gamification *gamification.Service
}

func NewHandlers(lessons *db.LessonRepository, progress *db.ProgressRepository, g *gamification.Service) *Handlers {
	return &Handlers{lessons: lessons, progress: progress, gamification: g}
}

// lessonView is a lesson as learners see it: quiz prompts and options
// without the answer keys.
type lessonView struct {
	*db.Lesson
	Quiz []quizQuestionView `json:"quiz"`
}

type quizQuestionView struct {
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

func newLessonView(l *db.Lesson) lessonView {
	quiz := make([]quizQuestionView, len(l.Quiz))
	for i, q := range l.Quiz {
		quiz[i] = quizQuestionView{Prompt: q.Prompt, Options: q.Options}
	}
	return lessonView{Lesson: l, Quiz: quiz}
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	lessons, err := h.lessons.List(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		return err
	}

	views := make([]lessonView, 0, len(lessons))
	for _, l := range lessons {
		views = append(views, newLessonView(l))
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, views, "")
	return nil
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	lesson, err := h.lookupLesson(r)
	if err != nil {
		return err
	}

	// Opening a lesson marks it in progress.
	if err := h.progress.MarkStarted(r.Context(), user.ID, lesson.ID); err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, newLessonView(lesson), "")
	return nil
}

type submitQuizRequest struct {
	Answers []int `json:"answers"`
}

type submitQuizResponse struct {
	Score           int         `json:"score"`
	Correct         int         `json:"correct"`
	Total           int         `json:"total"`
	Passed          bool        `json:"passed"`
	PointsAwarded   int         `json:"pointsAwarded"`
	TotalPoints     int         `json:"totalPoints"`
	FirstCompletion bool        `json:"firstCompletion"`
	NewBadges       []*db.Badge `json:"newBadges,omitempty"`
}

// SubmitQuiz grades the learner's answers. Passing completes the lesson;
// the first completion awards points, repeats only improve the recorded
// score.
func (h *Handlers) SubmitQuiz(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	lesson, err := h.lookupLesson(r)
	if err != nil {
		return err
	}
	if len(lesson.Quiz) == 0 {
		return apperrors.BadRequest("This lesson has no quiz")
	}

	var req submitQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if len(req.Answers) != len(lesson.Quiz) {
		return apperrors.ValidationError("Answer count must match question count")
	}

	correct, score := gradeQuiz(lesson.Quiz, req.Answers)

	resp := submitQuizResponse{
		Score:   score,
		Correct: correct,
		Total:   len(lesson.Quiz),
		Passed:  score >= passingScore,
	}

	if resp.Passed {
		first, err := h.progress.Complete(r.Context(), user.ID, lesson.ID, score)
		if err != nil {
			return err
		}
		resp.FirstCompletion = first
		if first {
			total, badges, err := h.gamification.AwardPoints(r.Context(), user.ID, completionPoints)
			if err != nil {
				return err
			}
			resp.PointsAwarded = completionPoints
			resp.TotalPoints = total
			resp.NewBadges = badges
		}
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, resp, "")
	return nil
}

// gradeQuiz scores submitted answers: percentage of questions answered
// correctly, truncated.
func gradeQuiz(quiz []db.QuizQuestion, answers []int) (correct, score int) {
	for i, q := range quiz {
		if answers[i] == q.Answer {
			correct++
		}
	}
	return correct, correct * 100 / len(quiz)
}

type progressView struct {
	LessonID    uuid.UUID `json:"lessonId"`
	Status      string    `json:"status"`
	Score       *int      `json:"score,omitempty"`
	CompletedAt *string   `json:"completedAt,omitempty"`
}

func (h *Handlers) Progress(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	records, err := h.progress.ListByUser(r.Context(), user.ID)
	if err != nil {
		return err
	}

	views := make([]progressView, 0, len(records))
	for _, p := range records {
		v := progressView{LessonID: p.LessonID, Status: p.Status}
		if p.Score.Valid {
			score := int(p.Score.Int64)
			v.Score = &score
		}
		if p.CompletedAt.Valid {
			completed := p.CompletedAt.Time.Format("2006-01-02T15:04:05Z07:00")
			v.CompletedAt = &completed
		}
		views = append(views, v)
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, views, "")
	return nil
}

// lookupLesson resolves the path parameter as a lesson UUID first, then as
// a slug.
func (h *Handlers) lookupLesson(r *http.Request) (*db.Lesson, error) {
	key := r.PathValue("id")
	if id, err := uuid.Parse(key); err == nil {
		lesson, err := h.lessons.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, db.ErrLessonNotFound) {
				return nil, apperrors.NotFound("Lesson")
			}
			return nil, err
		}
		return lesson, nil
	}

	lesson, err := h.lessons.GetBySlug(r.Context(), key)
	if err != nil {
		if errors.Is(err, db.ErrLessonNotFound) {
			return nil, apperrors.NotFound("Lesson")
		}
		return nil, err
	}
	return lesson, nil
}
