package expense

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseFilter(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/expenses", nil)
		filter, page, err := parseFilter(r)
		if err != nil {
			t.Fatalf("parseFilter() error = %v", err)
		}
		if page != 1 {
			t.Errorf("page = %d, want 1", page)
		}
		if filter.Limit != defaultPageSize || filter.Offset != 0 {
			t.Errorf("limit/offset = %d/%d, want %d/0", filter.Limit, filter.Offset, defaultPageSize)
		}
		if filter.Category != "" || !filter.From.IsZero() || !filter.To.IsZero() {
			t.Errorf("unexpected filter fields: %+v", filter)
		}
	})

	t.Run("full query", func(t *testing.T) {
		r := httptest.NewRequest("GET",
			"/api/v1/expenses?category=food&from=2025-01-01&to=2025-01-31&page=3&pageSize=50", nil)
		filter, page, err := parseFilter(r)
		if err != nil {
			t.Fatalf("parseFilter() error = %v", err)
		}
		if filter.Category != "food" {
			t.Errorf("category = %q, want food", filter.Category)
		}
		if page != 3 || filter.Limit != 50 || filter.Offset != 100 {
			t.Errorf("page/limit/offset = %d/%d/%d, want 3/50/100", page, filter.Limit, filter.Offset)
		}
		wantFrom := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
		if !filter.From.Equal(wantFrom) {
			t.Errorf("from = %s, want %s", filter.From, wantFrom)
		}
		// "to" covers the whole final day.
		wantTo := time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
		if !filter.To.Equal(wantTo) {
			t.Errorf("to = %s, want %s", filter.To, wantTo)
		}
	})

	t.Run("page size is capped", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/v1/expenses?pageSize=1000", nil)
		filter, _, err := parseFilter(r)
		if err != nil {
			t.Fatalf("parseFilter() error = %v", err)
		}
		if filter.Limit != maxPageSize {
			t.Errorf("limit = %d, want %d", filter.Limit, maxPageSize)
		}
	})

	bad := []struct {
		name  string
		query string
	}{
		{"bad from", "from=01-01-2025"},
		{"bad to", "to=tomorrow"},
		{"zero page", "page=0"},
		{"non-numeric page", "page=two"},
		{"negative page size", "pageSize=-5"},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/expenses?"+tt.query, nil)
			if _, _, err := parseFilter(r); err == nil {
				t.Error("parseFilter() expected error, got nil")
			}
		})
	}
}

func TestParseMonth(t *testing.T) {
	t.Run("explicit month", func(t *testing.T) {
		from, to, err := parseMonth("2025-02")
		if err != nil {
			t.Fatalf("parseMonth() error = %v", err)
		}
		if from.Year() != 2025 || from.Month() != time.February || from.Day() != 1 {
			t.Errorf("from = %s, want 2025-02-01", from.Format("2006-01-02"))
		}
		if to.Month() != time.March {
			t.Errorf("to = %s, want start of March", to.Format("2006-01-02"))
		}
	})

	t.Run("defaults to current month", func(t *testing.T) {
		from, to, err := parseMonth("")
		if err != nil {
			t.Fatalf("parseMonth() error = %v", err)
		}
		now := time.Now()
		if from.Year() != now.Year() || from.Month() != now.Month() || from.Day() != 1 {
			t.Errorf("from = %s, want first of current month", from.Format("2006-01-02"))
		}
		if !to.Equal(from.AddDate(0, 1, 0)) {
			t.Errorf("to = %s, want one month after from", to.Format("2006-01-02"))
		}
	})

	t.Run("rejects bad format", func(t *testing.T) {
		if _, _, err := parseMonth("Feb 2025"); err == nil {
			t.Error("parseMonth() expected error, got nil")
		}
	})
}

func TestExpenseRequestValidate(t *testing.T) {
	t.Run("defaults currency and date", func(t *testing.T) {
		req := expenseRequest{Amount: 12.50, Category: "food"}
		date, err := req.validate()
		if err != nil {
			t.Fatalf("validate() error = %v", err)
		}
		if req.Currency != "USD" {
			t.Errorf("currency = %q, want USD", req.Currency)
		}
		if time.Since(date) > time.Minute {
			t.Errorf("date = %s, want approximately now", date)
		}
	})

	t.Run("accepts date-only format", func(t *testing.T) {
		req := expenseRequest{Amount: 5, Category: "transport", Date: "2025-03-10"}
		date, err := req.validate()
		if err != nil {
			t.Fatalf("validate() error = %v", err)
		}
		if date.Day() != 10 {
			t.Errorf("date = %s, want 2025-03-10", date.Format("2006-01-02"))
		}
	})

	t.Run("accepts RFC 3339", func(t *testing.T) {
		req := expenseRequest{Amount: 5, Category: "transport", Date: "2025-03-10T15:04:05Z"}
		date, err := req.validate()
		if err != nil {
			t.Fatalf("validate() error = %v", err)
		}
		if date.Hour() != 15 {
			t.Errorf("date = %s, want 15:04:05", date.Format(time.RFC3339))
		}
	})

	bad := []struct {
		name string
		req  expenseRequest
	}{
		{"zero amount", expenseRequest{Amount: 0, Category: "food"}},
		{"negative amount", expenseRequest{Amount: -3, Category: "food"}},
		{"missing category", expenseRequest{Amount: 10}},
		{"garbage date", expenseRequest{Amount: 10, Category: "food", Date: "yesterday"}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.req.validate(); err == nil {
				t.Error("validate() expected error, got nil")
			}
		})
	}
}
