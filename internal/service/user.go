package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/paging"
	"github.com/gymii/dashboard/internal/repository"
)

// ProfileStore reads users from the main database.
type ProfileStore interface {
	GetSubscriptionProfile(ctx context.Context, id string) (*model.User, error)
	ListAdminUsers(ctx context.Context) ([]model.AdminUser, error)
}

// VisitStore reads screen activity from the analytics database.
type VisitStore interface {
	ListScreenVisits(ctx context.Context, userID string) ([]model.ScreenVisit, error)
}

// UserSnapshot exposes the cached subscription profiles.
type UserSnapshot interface {
	Users() []model.User
}

// UserService serves user listings, details and activity.
type UserService struct {
	profiles ProfileStore
	visits   VisitStore
	snapshot UserSnapshot
}

// NewUserService creates a new UserService.
func NewUserService(profiles ProfileStore, visits VisitStore, snapshot UserSnapshot) *UserService {
	return &UserService{
		profiles: profiles,
		visits:   visits,
		snapshot: snapshot,
	}
}

// ListAdminUsers returns every row of the main database user table.
func (s *UserService) ListAdminUsers(ctx context.Context) ([]model.AdminUser, error) {
	users, err := s.profiles.ListAdminUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list admin users: %w", err)
	}
	return users, nil
}

// Get returns one subscription profile straight from the database.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.profiles.GetSubscriptionProfile(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Search filters the snapshot by term and returns the requested page.
func (s *UserService) Search(term string, page, size int) paging.Page[model.User] {
	if size <= 0 {
		size = paging.DefaultPageSize
	}
	return paging.Paginate(paging.SearchUsers(s.snapshot.Users(), term), page, size)
}

// Sessions groups a user's screen visits into sessions and pages them.
func (s *UserService) Sessions(ctx context.Context, userID string, page, size int) (paging.Page[model.ActivitySession], error) {
	visits, err := s.visits.ListScreenVisits(ctx, userID)
	if err != nil {
		return paging.Page[model.ActivitySession]{}, fmt.Errorf("list screen visits: %w", err)
	}
	if size <= 0 {
		size = paging.SessionsPageSize
	}
	return paging.Paginate(model.GroupSessions(visits), page, size), nil
}
