package api

import (
	"net/http"

	"github.com/finwise/backend/internal/admin"
	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/budget"
	"github.com/finwise/backend/internal/community"
	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
	"github.com/finwise/backend/internal/expense"
	"github.com/finwise/backend/internal/gamification"
	"github.com/finwise/backend/internal/goal"
	"github.com/finwise/backend/internal/health"
	"github.com/finwise/backend/internal/learning"
	"github.com/finwise/backend/internal/simulator"
	"github.com/finwise/backend/internal/user"
)

// Handlers bundles every feature's handlers for route wiring.
type Handlers struct {
	Auth         *auth.Handlers
	AuthService  *auth.Service
	Expense      *expense.Handlers
	Budget       *budget.Handlers
	Goal         *goal.Handlers
	Learning     *learning.Handlers
	Simulator    *simulator.Handlers
	Community    *community.Handlers
	Gamification *gamification.Handlers
	User         *user.Handlers
	Admin        *admin.Handlers
	Health       *health.Handler
}

type Router struct {
	mux      *http.ServeMux
	handlers *Handlers
}

func NewRouter(handlers *Handlers) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: handlers,
	}
	r.setupRoutes()
	return r
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) setupRoutes() {
	h := r.handlers

	// Health probes
	r.mux.HandleFunc("GET /health", h.Health.LivenessHandler)
	r.mux.HandleFunc("GET /health/ready", h.Health.ReadinessHandler)

	// Auth routes (no auth required)
	h.Auth.RegisterRoutes(r.mux)

	// Users
	r.authed("GET /api/v1/users/me", h.User.Me)
	r.authed("PUT /api/v1/users/me", h.User.UpdateMe)
	r.authed("GET /api/v1/users/me/summary", h.User.Summary)
	r.authed("POST /api/v1/users/me/avatar", h.User.UploadAvatar)
	r.authed("GET /api/v1/users/me/avatar", h.User.ServeAvatar)
	r.authed("GET /api/v1/users/{id}", h.User.Get)
	r.authed("GET /api/v1/users/{id}/badges", h.Gamification.UserBadges)

	// Expenses
	r.authed("POST /api/v1/expenses", h.Expense.Create)
	r.authed("GET /api/v1/expenses", h.Expense.List)
	r.authed("GET /api/v1/expenses/export", h.Expense.Export)
	r.authed("GET /api/v1/expenses/summary", h.Expense.Summary)
	r.authed("GET /api/v1/expenses/{id}", h.Expense.Get)
	r.authed("PUT /api/v1/expenses/{id}", h.Expense.Update)
	r.authed("DELETE /api/v1/expenses/{id}", h.Expense.Delete)

	// Budgets
	r.authed("POST /api/v1/budgets", h.Budget.Create)
	r.authed("GET /api/v1/budgets", h.Budget.List)
	r.authed("GET /api/v1/budgets/status", h.Budget.Status)
	r.authed("GET /api/v1/budgets/{id}", h.Budget.Get)
	r.authed("PUT /api/v1/budgets/{id}", h.Budget.Update)
	r.authed("DELETE /api/v1/budgets/{id}", h.Budget.Delete)

	// Goals
	r.authed("POST /api/v1/goals", h.Goal.Create)
	r.authed("GET /api/v1/goals", h.Goal.List)
	r.authed("POST /api/v1/goals/calculate", h.Goal.Calculate)
	r.authed("GET /api/v1/goals/{id}", h.Goal.Get)
	r.authed("PUT /api/v1/goals/{id}", h.Goal.Update)
	r.authed("DELETE /api/v1/goals/{id}", h.Goal.Delete)

	// Learning
	r.authed("GET /api/v1/lessons", h.Learning.List)
	r.authed("GET /api/v1/lessons/{id}", h.Learning.Get)
	r.authed("POST /api/v1/lessons/{id}/quiz", h.Learning.SubmitQuiz)
	r.authed("GET /api/v1/progress", h.Learning.Progress)

	// Simulator
	r.authed("GET /api/v1/simulator/market", h.Simulator.GetMarket)
	r.authed("GET /api/v1/simulator/portfolio", h.Simulator.GetPortfolio)
	r.authed("GET /api/v1/simulator/portfolio/{userId}", h.Simulator.GetUserPortfolio)
	r.authed("POST /api/v1/simulator/trade", h.Simulator.Trade)
	r.authed("POST /api/v1/simulator/reset", h.Simulator.Reset)
	// Websocket; authenticates via token query param, not the bearer header.
	r.mux.HandleFunc("GET /api/v1/simulator/stream", h.Simulator.Stream(h.AuthService))

	// Community
	r.authed("POST /api/v1/posts", h.Community.CreatePost)
	r.authed("GET /api/v1/posts", h.Community.ListPosts)
	r.authed("GET /api/v1/posts/{id}", h.Community.GetPost)
	r.authed("PUT /api/v1/posts/{id}", h.Community.UpdatePost)
	r.authed("DELETE /api/v1/posts/{id}", h.Community.DeletePost)
	r.authed("POST /api/v1/posts/{id}/like", h.Community.ToggleLike)
	r.authed("POST /api/v1/posts/{id}/comments", h.Community.CreateComment)
	r.authed("DELETE /api/v1/posts/{id}/comments/{commentId}", h.Community.DeleteComment)

	// Gamification
	r.authed("GET /api/v1/leaderboard", h.Gamification.Leaderboard)
	r.authed("GET /api/v1/badges", h.Gamification.Badges)
	r.authed("GET /api/v1/badges/mine", h.Gamification.MyBadges)

	// Admin
	r.role("POST /api/v1/admin/lessons", h.Admin.CreateLesson, db.RoleAdmin)
	r.role("PUT /api/v1/admin/lessons/{id}", h.Admin.UpdateLesson, db.RoleAdmin)
	r.role("DELETE /api/v1/admin/lessons/{id}", h.Admin.DeleteLesson, db.RoleAdmin)
	r.role("POST /api/v1/admin/badges", h.Admin.CreateBadge, db.RoleAdmin)
	r.role("PUT /api/v1/admin/badges/{id}", h.Admin.UpdateBadge, db.RoleAdmin)
	r.role("DELETE /api/v1/admin/badges/{id}", h.Admin.DeleteBadge, db.RoleAdmin)
	r.role("GET /api/v1/admin/users", h.Admin.ListUsers, db.RoleAdmin)
	r.role("PUT /api/v1/admin/users/{id}/role", h.Admin.UpdateUserRole, db.RoleAdmin)
}

// authed registers a handler behind bearer authentication.
func (r *Router) authed(pattern string, handler apperrors.Handler) {
	r.mux.Handle(pattern, r.handlers.Auth.Middleware(apperrors.HandleFunc(handler)))
}

// role registers a handler behind authentication plus a role check.
func (r *Router) role(pattern string, handler apperrors.Handler, roles ...string) {
	gated := auth.RequireRole(roles...)(apperrors.HandleFunc(handler))
	r.mux.Handle(pattern, r.handlers.Auth.Middleware(gated))
}
