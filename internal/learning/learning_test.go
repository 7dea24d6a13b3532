package learning

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/db"
)

func TestLessonViewStripsAnswers(t *testing.T) {
	lesson := &db.Lesson{
		ID:    uuid.New(),
		Slug:  "budgeting-basics",
		Title: "Budgeting Basics",
		Quiz: []db.QuizQuestion{
			{Prompt: "What is a budget?", Options: []string{"A plan", "A loan"}, Answer: 0},
			{Prompt: "How often review it?", Options: []string{"Never", "Monthly"}, Answer: 1},
		},
	}

	view := newLessonView(lesson)

	if len(view.Quiz) != 2 {
		t.Fatalf("quiz length = %d, want 2", len(view.Quiz))
	}
	for i, q := range view.Quiz {
		if q.Prompt != lesson.Quiz[i].Prompt {
			t.Errorf("question %d prompt = %q, want %q", i, q.Prompt, lesson.Quiz[i].Prompt)
		}
	}

	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshaling view: %v", err)
	}
	if strings.Contains(string(raw), "answer") {
		t.Errorf("serialized lesson view leaks answer keys: %s", raw)
	}
}

func TestQuizScoring(t *testing.T) {
	quiz := []db.QuizQuestion{
		{Answer: 0}, {Answer: 1}, {Answer: 2}, {Answer: 0}, {Answer: 3},
	}

	tests := []struct {
		name        string
		answers     []int
		wantCorrect int
		wantScore   int
		wantPassed  bool
	}{
		{"all correct", []int{0, 1, 2, 0, 3}, 5, 100, true},
		{"three of five passes", []int{0, 1, 2, 9, 9}, 3, 60, true},
		{"two of five fails", []int{0, 1, 9, 9, 9}, 2, 40, false},
		{"none correct", []int{9, 9, 9, 9, 9}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, score := gradeQuiz(quiz, tt.answers)

			if correct != tt.wantCorrect {
				t.Errorf("correct = %d, want %d", correct, tt.wantCorrect)
			}
			if score != tt.wantScore {
				t.Errorf("score = %d, want %d", score, tt.wantScore)
			}
			if passed := score >= passingScore; passed != tt.wantPassed {
				t.Errorf("passed = %v, want %v", passed, tt.wantPassed)
			}
		})
	}
}
