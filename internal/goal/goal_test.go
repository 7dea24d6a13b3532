package goal

import (
	"testing"
	"time"

	"github.com/finwise/backend/internal/db"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		target  float64
		want    string
	}{
		{"zero progress", 0, 1000, db.GoalNotStarted},
		{"partial progress", 250, 1000, db.GoalInProgress},
		{"exactly met", 1000, 1000, db.GoalCompleted},
		{"overshot", 1200, 1000, db.GoalCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.current, tt.target); got != tt.want {
				t.Errorf("statusFor(%v, %v) = %q, want %q", tt.current, tt.target, got, tt.want)
			}
		})
	}
}

func TestMonthsUntil(t *testing.T) {
	now := time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		deadline time.Time
		want     int
	}{
		{"past deadline", now.AddDate(0, 0, -1), 0},
		{"same instant", now, 0},
		{"two weeks counts as one month", now.AddDate(0, 0, 14), 1},
		{"exactly one month", now.AddDate(0, 1, 0), 1},
		{"one month and a day rounds up", now.AddDate(0, 1, 1), 2},
		{"exactly six months", now.AddDate(0, 6, 0), 6},
		{"one year", now.AddDate(1, 0, 0), 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := monthsUntil(now, tt.deadline); got != tt.want {
				t.Errorf("monthsUntil(now, %s) = %d, want %d", tt.deadline.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestGoalRequestValidate(t *testing.T) {
	valid := goalRequest{
		Title:        "Emergency fund",
		TargetAmount: 5000,
		Deadline:     "2030-06-01",
	}

	t.Run("valid", func(t *testing.T) {
		deadline, err := valid.validate()
		if err != nil {
			t.Fatalf("validate() error = %v", err)
		}
		if deadline.Year() != 2030 || deadline.Month() != time.June {
			t.Errorf("deadline = %s, want 2030-06-01", deadline.Format("2006-01-02"))
		}
	})

	tests := []struct {
		name   string
		mutate func(*goalRequest)
	}{
		{"missing title", func(r *goalRequest) { r.Title = "" }},
		{"zero target", func(r *goalRequest) { r.TargetAmount = 0 }},
		{"negative current", func(r *goalRequest) { r.CurrentAmount = -1 }},
		{"negative contribution", func(r *goalRequest) { r.MonthlyContribution = -10 }},
		{"bad deadline format", func(r *goalRequest) { r.Deadline = "June 2030" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			if _, err := req.validate(); err == nil {
				t.Error("validate() expected error, got nil")
			}
		})
	}
}
