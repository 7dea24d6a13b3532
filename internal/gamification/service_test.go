package gamification

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/cache"
	"github.com/finwise/backend/internal/db"
)

type fakeUsers struct {
	users map[uuid.UUID]*db.User
	top   []db.LeaderboardEntry
}

func (f *fakeUsers) AddPoints(_ context.Context, id uuid.UUID, delta int) (int, string, error) {
	u, ok := f.users[id]
	if !ok {
		return 0, "", db.ErrUserNotFound
	}
	u.Points += delta
	return u.Points, u.Role, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*db.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) TopByPoints(_ context.Context, limit int) ([]db.LeaderboardEntry, error) {
	if len(f.top) > limit {
		return f.top[:limit], nil
	}
	return f.top, nil
}

type fakeBadges struct {
	eligible []*db.Badge
	awarded  []uuid.UUID
}

func (f *fakeBadges) Eligible(_ context.Context, _ uuid.UUID, _ int) ([]*db.Badge, error) {
	return f.eligible, nil
}

func (f *fakeBadges) Award(_ context.Context, _, badgeID uuid.UUID) (bool, error) {
	f.awarded = append(f.awarded, badgeID)
	return true, nil
}

func (f *fakeBadges) ListForUser(_ context.Context, _ uuid.UUID) ([]*db.UserBadge, error) {
	return nil, nil
}

func (f *fakeBadges) List(_ context.Context) ([]*db.Badge, error) {
	return nil, nil
}

type fakeLeaderboardCache struct {
	scores map[string]int
	ranked []cache.RankedUser
}

func (f *fakeLeaderboardCache) SetLeaderboardScore(_ context.Context, userID string, points int) error {
	if f.scores == nil {
		f.scores = make(map[string]int)
	}
	f.scores[userID] = points
	return nil
}

func (f *fakeLeaderboardCache) TopScores(_ context.Context, limit int) ([]cache.RankedUser, error) {
	if len(f.ranked) > limit {
		return f.ranked[:limit], nil
	}
	return f.ranked, nil
}

func TestAwardPointsMirrorsOnlyPlainUsers(t *testing.T) {
	tests := []struct {
		role       string
		wantMirror bool
	}{
		{db.RoleUser, true},
		{db.RoleMentor, false},
		{db.RoleAdmin, false},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			id := uuid.New()
			users := &fakeUsers{users: map[uuid.UUID]*db.User{
				id: {ID: id, Role: tt.role, Points: 5},
			}}
			lb := &fakeLeaderboardCache{}
			svc := NewService(users, &fakeBadges{}, lb)

			total, _, err := svc.AwardPoints(context.Background(), id, 10)
			if err != nil {
				t.Fatalf("AwardPoints() error = %v", err)
			}
			if total != 15 {
				t.Errorf("total = %d, want 15", total)
			}

			_, mirrored := lb.scores[id.String()]
			if mirrored != tt.wantMirror {
				t.Errorf("mirrored = %v, want %v", mirrored, tt.wantMirror)
			}
		})
	}
}

func TestAwardPointsGrantsEligibleBadges(t *testing.T) {
	id := uuid.New()
	badge := &db.Badge{ID: uuid.New(), Name: "Saver"}
	users := &fakeUsers{users: map[uuid.UUID]*db.User{
		id: {ID: id, Role: db.RoleUser},
	}}
	badges := &fakeBadges{eligible: []*db.Badge{badge}}
	svc := NewService(users, badges, nil)

	_, earned, err := svc.AwardPoints(context.Background(), id, 10)
	if err != nil {
		t.Fatalf("AwardPoints() error = %v", err)
	}
	if len(earned) != 1 || earned[0].ID != badge.ID {
		t.Errorf("earned = %v, want the eligible badge", earned)
	}
}

func TestLeaderboardCacheHidesPromotedUsers(t *testing.T) {
	player := &db.User{ID: uuid.New(), Name: "Player", Role: db.RoleUser}
	mentor := &db.User{ID: uuid.New(), Name: "Mentor", Role: db.RoleMentor}
	users := &fakeUsers{users: map[uuid.UUID]*db.User{
		player.ID: player,
		mentor.ID: mentor,
	}}
	lb := &fakeLeaderboardCache{ranked: []cache.RankedUser{
		{UserID: mentor.ID.String(), Points: 500},
		{UserID: player.ID.String(), Points: 120},
	}}
	svc := NewService(users, &fakeBadges{}, lb)

	entries, err := svc.Leaderboard(context.Background(), 10)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want the mentor filtered out", len(entries))
	}
	if entries[0].ID != player.ID || entries[0].Points != 120 {
		t.Errorf("entry = %+v, want the plain user", entries[0])
	}
}

func TestLeaderboardFallsBackToDatabase(t *testing.T) {
	top := []db.LeaderboardEntry{{ID: uuid.New(), Name: "Player", Points: 50}}
	users := &fakeUsers{top: top}
	lb := &fakeLeaderboardCache{}
	svc := NewService(users, &fakeBadges{}, lb)

	entries, err := svc.Leaderboard(context.Background(), 10)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ID != top[0].ID {
		t.Fatalf("entries = %v, want database ranking", entries)
	}
	// The empty sorted set is warmed from the database result.
	if lb.scores[top[0].ID.String()] != 50 {
		t.Errorf("warm scores = %v, want %s=50", lb.scores, top[0].ID)
	}
}
