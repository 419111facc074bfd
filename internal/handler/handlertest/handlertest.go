// Package handlertest wires the API router over in-memory stores for tests.
package handlertest

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gymii/dashboard/internal/auth"
	"github.com/gymii/dashboard/internal/cost"
	"github.com/gymii/dashboard/internal/datastore"
	"github.com/gymii/dashboard/internal/errreport"
	"github.com/gymii/dashboard/internal/handler"
	"github.com/gymii/dashboard/internal/kpi"
	"github.com/gymii/dashboard/internal/metrics"
	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/repository"
	"github.com/gymii/dashboard/internal/service"
)

// Test identities.
const (
	Secret     = "handlertest-secret-with-at-least-32-characters"
	AdminEmail = "admin@gymii.ai"
	AdminID    = int64(1)
)

// Snapshot is an in-memory SnapshotReader and Refresher.
type Snapshot struct {
	mu        sync.Mutex
	users     []model.User
	dau       []model.DAU
	retention []model.RetentionDay
	cohorts   []model.CohortRetention
	refreshes int

	// RefreshErr, when set, is returned by Refresh. With PartialRefresh the
	// result is returned alongside it.
	RefreshErr     error
	PartialRefresh bool
}

func (s *Snapshot) Users() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users
}

func (s *Snapshot) DAU() []model.DAU {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dau
}

func (s *Snapshot) Retention() []model.RetentionDay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retention
}

func (s *Snapshot) CohortRetention() []model.CohortRetention {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cohorts
}

func (s *Snapshot) Meta() []datastore.Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []datastore.Meta{
		{Name: datastore.QueryUsers, Rows: len(s.users), Source: datastore.SourceDatabase},
		{Name: datastore.QueryDAU, Rows: len(s.dau), Source: datastore.SourceDatabase},
		{Name: datastore.QueryRetention, Rows: len(s.retention), Source: datastore.SourceDatabase},
		{Name: datastore.QueryCohortRetention, Rows: len(s.cohorts), Source: datastore.SourceDatabase},
	}
}

// Refresh counts the call and reports every query as reloaded.
func (s *Snapshot) Refresh(context.Context) (*datastore.RefreshResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++

	res := &datastore.RefreshResult{
		RunID:    "01HZY0TESTRUN0000000000000",
		Started:  time.Now().UTC(),
		Duration: 12 * time.Millisecond,
		Queries: []datastore.QueryResult{
			{Name: datastore.QueryUsers, Rows: len(s.users)},
			{Name: datastore.QueryDAU, Rows: len(s.dau)},
			{Name: datastore.QueryRetention, Rows: len(s.retention)},
			{Name: datastore.QueryCohortRetention, Rows: len(s.cohorts)},
		},
	}
	if s.RefreshErr != nil {
		if s.PartialRefresh {
			return res, s.RefreshErr
		}
		return nil, s.RefreshErr
	}
	return res, nil
}

// Refreshes returns how many times Refresh ran.
func (s *Snapshot) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

// Store is an in-memory main and analytics database.
type Store struct {
	mu       sync.Mutex
	profiles map[string]model.User
	admins   []model.AdminUser
	comments map[int64]model.AdminComment
	visits   map[string][]model.ScreenVisit
	nextID   int64
}

func (s *Store) GetSubscriptionProfile(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.profiles[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) ListAdminUsers(context.Context) ([]model.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AdminUser{}, s.admins...), nil
}

func (s *Store) GetAdminUserByEmail(_ context.Context, email string) (*model.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if strings.EqualFold(a.Email, email) {
			return &a, nil
		}
	}
	return nil, repository.ErrAdminUserNotFound
}

func (s *Store) ListComments(_ context.Context, userID string) ([]model.AdminComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.AdminComment{}
	for _, c := range s.comments {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) CreateComment(_ context.Context, c *model.AdminComment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	c.CreatedAt = time.Now().UTC()
	s.comments[c.ID] = *c
	return nil
}

func (s *Store) UpdateComment(_ context.Context, id int64, upd repository.CommentUpdate) (*model.AdminComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, repository.ErrCommentNotFound
	}
	if upd.IsEmpty() {
		return &c, nil
	}
	if upd.Text != nil {
		c.Text = *upd.Text
	}
	switch {
	case upd.ClearMood:
		c.Mood = nil
	case upd.Mood != nil:
		c.Mood = upd.Mood
	}
	now := time.Now().UTC()
	c.UpdatedAt = &now
	s.comments[id] = c
	return &c, nil
}

func (s *Store) DeleteComment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.comments[id]; !ok {
		return repository.ErrCommentNotFound
	}
	delete(s.comments, id)
	return nil
}

func (s *Store) ListScreenVisits(_ context.Context, userID string) ([]model.ScreenVisit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ScreenVisit{}, s.visits[userID]...), nil
}

// Env is a ready-to-serve router with its fakes exposed.
type Env struct {
	Router   *chi.Mux
	Snapshot *Snapshot
	Store    *Store
	Verifier *auth.Verifier
	Metrics  *metrics.InMemoryRecorder
	Reporter *errreport.Memory
}

// New returns an Env seeded with Fixture data.
func New() *Env {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users, dau, days, cohorts, visits := Fixture()

	snap := &Snapshot{users: users, dau: dau, retention: days, cohorts: cohorts}
	store := &Store{
		profiles: make(map[string]model.User, len(users)),
		admins:   []model.AdminUser{{ID: AdminID, Username: "admin", Email: AdminEmail}},
		comments: make(map[int64]model.AdminComment),
		visits:   visits,
	}
	for _, u := range users {
		store.profiles[u.ID] = u
	}

	verifier := auth.NewVerifier(Secret, auth.DefaultAudience, []string{AdminEmail, "orphan@gymii.ai"})
	rec := metrics.NewInMemory()
	reporter := &errreport.Memory{}

	userSvc := service.NewUserService(store, store, snap)
	comments := service.NewCommentService(store, rec, logger)

	router := handler.NewRouter(handler.RouterConfig{
		Logger:      logger,
		Reporter:    reporter,
		Metrics:     rec,
		ServiceName: "dashboard-test",
		Auth:        verifier,
		Root:        handler.New("test"),
		Health:      handler.NewHealthHandler(nil, nil, nil),
		Analytics: handler.NewAnalyticsHandler(handler.AnalyticsConfig{
			Snapshot:   snap,
			Refresher:  snap,
			Classifier: kpi.DefaultClassifier(),
			Logger:     logger,
		}),
		Cost:  handler.NewCostHandler(cost.DefaultPrices(), rec, logger),
		Admin: handler.NewAdminHandler(userSvc, comments, logger),
	})

	return &Env{
		Router:   router,
		Snapshot: snap,
		Store:    store,
		Verifier: verifier,
		Metrics:  rec,
		Reporter: reporter,
	}
}

// Token issues a one-hour token for email.
func (e *Env) Token(email string) string {
	tok, err := e.Verifier.Issue("", email, time.Hour)
	if err != nil {
		panic(err)
	}
	return tok
}

// Fixture returns a small, consistent data set.
func Fixture() ([]model.User, []model.DAU, []model.RetentionDay, []model.CohortRetention, map[string][]model.ScreenVisit) {
	created := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	users := []model.User{
		{
			ID: "u-paying", FirstName: "Paula", Email: "paula@example.com",
			Status: model.StatusActive, AutoRenewEnabled: true, ProductID: "gymii.monthly",
			ExpectedMMR: "9.99", OnboardingComplete: true,
			PromoCodesUsed: []string{}, DietaryPreferences: map[string]bool{"vegan": true},
			CreatedAt: &created,
		},
		{
			ID: "u-trial", FirstName: "Tom", Email: "tom@example.com",
			Status: model.StatusActive, AutoRenewEnabled: true, ProductID: "gymii.yearly",
			ExpectedMMR: "4.17", OnboardingComplete: true,
			PromoCodesUsed: []string{"14-day-free"}, DietaryPreferences: map[string]bool{},
			CreatedAt: &created,
		},
		{
			ID: "u-free", FirstName: "Fiona", Email: "fiona@example.com",
			Status: model.StatusActive, AutoRenewEnabled: true, ProductID: "gymii.monthly",
			ExpectedMMR: "0", OnboardingComplete: true,
			PromoCodesUsed: []string{"FREEMONTH"}, DietaryPreferences: map[string]bool{},
			CreatedAt: &created,
		},
		{
			ID: "u-lapsed", FirstName: "Lars", Email: "lars@example.com",
			Status: 0, ProductID: "gymii.monthly",
			PromoCodesUsed: []string{}, DietaryPreferences: map[string]bool{},
			CreatedAt: &created,
		},
	}

	dau := []model.DAU{
		{Date: "2025-01-10", ActiveUsers: 120},
		{Date: "2025-01-11", ActiveUsers: 131},
	}

	days := []model.RetentionDay{
		{Date: "2025-01-01", Day1RetentionRate: "40.00", Day7RetentionRate: "20.00", Day14RetentionRate: "10.00", TotalUsers: 50},
		{Date: "2025-01-02", Day1RetentionRate: "42.50", Day7RetentionRate: "21.00", Day14RetentionRate: "11.00", TotalUsers: 40},
	}

	cohorts := []model.CohortRetention{
		{CohortDate: "2025-01-06", CohortSize: 100, Day1ActiveUsers: 50, Day7ActiveUsers: 30, Day14ActiveUsers: 20, Day30ActiveUsers: 10,
			Day1Retention: 50, Day7Retention: 30, Day14Retention: 20, Day30Retention: 10},
		{CohortDate: "2025-01-07", CohortSize: 50, Day1ActiveUsers: 20, Day7ActiveUsers: 10, Day14ActiveUsers: 5, Day30ActiveUsers: 5,
			Day1Retention: 40, Day7Retention: 20, Day14Retention: 10, Day30Retention: 10},
	}

	start := time.Date(2025, 1, 11, 8, 0, 0, 0, time.UTC)
	visits := map[string][]model.ScreenVisit{
		"u-paying": {
			{UserID: "u-paying", SessionID: "s1", Screen: "home", ScreenStartTime: start, DurationSeconds: 40, SessionStartTime: start, VisitDate: "2025-01-11"},
			{UserID: "u-paying", SessionID: "s1", Screen: "workout", ScreenStartTime: start.Add(time.Minute), DurationSeconds: 300, SessionStartTime: start, VisitDate: "2025-01-11"},
		},
	}

	return users, dau, days, cohorts, visits
}
