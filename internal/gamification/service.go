// Package gamification awards points and badges and serves the leaderboard.
package gamification

import (
	"context"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/cache"
	"github.com/finwise/backend/internal/db"
	"github.com/finwise/backend/internal/logger"
)

// UserStore is the slice of the user repository the points economy needs.
type UserStore interface {
	AddPoints(ctx context.Context, id uuid.UUID, delta int) (int, string, error)
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	TopByPoints(ctx context.Context, limit int) ([]db.LeaderboardEntry, error)
}

// BadgeStore grants and lists badges.
type BadgeStore interface {
	Eligible(ctx context.Context, userID uuid.UUID, points int) ([]*db.Badge, error)
	Award(ctx context.Context, userID, badgeID uuid.UUID) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*db.UserBadge, error)
	List(ctx context.Context) ([]*db.Badge, error)
}

// LeaderboardCache mirrors point totals into a sorted set. A nil cache means
// every leaderboard read goes to the database.
type LeaderboardCache interface {
	SetLeaderboardScore(ctx context.Context, userID string, points int) error
	TopScores(ctx context.Context, limit int) ([]cache.RankedUser, error)
}

// Service owns the points economy. Points live on the user row; the Redis
// sorted set mirrors them for cheap leaderboard reads and is repopulated
// lazily from the database when empty. Only plain users are mirrored: the
// leaderboard excludes mentors and admins everywhere, not just on the
// database path.
type Service struct {
	users  UserStore
	badges BadgeStore
	cache  LeaderboardCache
	log    *logger.Logger
}

func NewService(users UserStore, badges BadgeStore, c LeaderboardCache) *Service {
	return &Service{
		users:  users,
		badges: badges,
		cache:  c,
		log:    logger.Default().WithComponent("gamification"),
	}
}

// AwardPoints adds points to the user, mirrors the new total into the
// leaderboard when the user competes on it, and grants any badges the total
// now qualifies for. Returns the new total and the freshly earned badges.
func (s *Service) AwardPoints(ctx context.Context, userID uuid.UUID, delta int) (int, []*db.Badge, error) {
	total, role, err := s.users.AddPoints(ctx, userID, delta)
	if err != nil {
		return 0, nil, err
	}

	if s.cache != nil && role == db.RoleUser {
		if err := s.cache.SetLeaderboardScore(ctx, userID.String(), total); err != nil {
			s.log.Warn(ctx, "failed to update leaderboard score", map[string]interface{}{
				"user_id": userID.String(), "error": err.Error(),
			})
		}
	}

	earned, err := s.grantEligibleBadges(ctx, userID, total)
	if err != nil {
		// Points landed; badge grant failures should not fail the caller.
		s.log.Error(ctx, "failed to grant badges", err, map[string]interface{}{
			"user_id": userID.String(),
		})
		return total, nil, nil
	}
	return total, earned, nil
}

func (s *Service) grantEligibleBadges(ctx context.Context, userID uuid.UUID, points int) ([]*db.Badge, error) {
	eligible, err := s.badges.Eligible(ctx, userID, points)
	if err != nil {
		return nil, err
	}

	var earned []*db.Badge
	for _, badge := range eligible {
		awarded, err := s.badges.Award(ctx, userID, badge.ID)
		if err != nil {
			return earned, err
		}
		if awarded {
			earned = append(earned, badge)
		}
	}
	return earned, nil
}

// Leaderboard returns the top plain users by points. Redis serves the
// ranking when populated; otherwise the database is queried and the sorted
// set is warmed for next time.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]db.LeaderboardEntry, error) {
	if s.cache != nil {
		if entries, ok := s.leaderboardFromCache(ctx, limit); ok {
			return entries, nil
		}
	}

	entries, err := s.users.TopByPoints(ctx, limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		for _, e := range entries {
			_ = s.cache.SetLeaderboardScore(ctx, e.ID.String(), e.Points)
		}
	}
	return entries, nil
}

func (s *Service) leaderboardFromCache(ctx context.Context, limit int) ([]db.LeaderboardEntry, bool) {
	ranked, err := s.cache.TopScores(ctx, limit)
	if err != nil || len(ranked) == 0 {
		return nil, false
	}

	entries := make([]db.LeaderboardEntry, 0, len(ranked))
	for _, r := range ranked {
		id, err := uuid.Parse(r.UserID)
		if err != nil {
			continue
		}
		user, err := s.users.GetByID(ctx, id)
		if err != nil {
			continue
		}
		// Stale sorted-set entries for since-promoted users stay hidden.
		if user.Role != db.RoleUser {
			continue
		}
		entries = append(entries, db.LeaderboardEntry{
			ID:        user.ID,
			Name:      user.Name,
			AvatarURL: user.AvatarURL,
			Points:    r.Points,
		})
	}
	if len(entries) == 0 {
		return nil, false
	}
	return entries, true
}

// BadgesForUser lists the user's earned badges.
func (s *Service) BadgesForUser(ctx context.Context, userID uuid.UUID) ([]*db.UserBadge, error) {
	return s.badges.ListForUser(ctx, userID)
}

// AllBadges lists every badge in the catalog.
func (s *Service) AllBadges(ctx context.Context) ([]*db.Badge, error) {
	return s.badges.List(ctx)
}
