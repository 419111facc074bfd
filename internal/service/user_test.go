package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gymii/dashboard/internal/model"
	"github.com/gymii/dashboard/internal/repository"
)

type fakeProfiles struct {
	users map[string]model.User
}

func (f *fakeProfiles) GetSubscriptionProfile(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeProfiles) ListAdminUsers(context.Context) ([]model.AdminUser, error) {
	return []model.AdminUser{{ID: 1, Username: "root", Email: "admin@gymii.ai"}}, nil
}

type fakeVisits struct {
	visits []model.ScreenVisit
	err    error
}

func (f *fakeVisits) ListScreenVisits(context.Context, string) ([]model.ScreenVisit, error) {
	return f.visits, f.err
}

type staticSnapshot []model.User

func (s staticSnapshot) Users() []model.User { return s }

func TestUserService_Get(t *testing.T) {
	t.Parallel()

	svc := NewUserService(&fakeProfiles{users: map[string]model.User{"a": {ID: "a", FirstName: "Ann"}}}, &fakeVisits{}, staticSnapshot(nil))

	u, err := svc.Get(context.Background(), "a")
	if err != nil || u.FirstName != "Ann" {
		t.Fatalf("Get() = %v, %v", u, err)
	}
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrUserNotFound", err)
	}
}

func TestUserService_Search(t *testing.T) {
	t.Parallel()

	var users staticSnapshot
	for i := 0; i < 23; i++ {
		users = append(users, model.User{ID: fmt.Sprintf("id-%02d", i), FirstName: "User", Email: fmt.Sprintf("u%d@example.com", i)})
	}
	users = append(users, model.User{ID: "zed", FirstName: "Zed", Email: "zed@gymii.ai"})
	svc := NewUserService(&fakeProfiles{}, &fakeVisits{}, users)

	page := svc.Search("", 3, 0)
	if page.TotalItems != 24 || page.TotalPages != 3 || len(page.Items) != 4 {
		t.Errorf("page 3 = items %d total %d pages %d", len(page.Items), page.TotalItems, page.TotalPages)
	}

	page = svc.Search("ZED", 1, 10)
	if page.TotalItems != 1 || page.Items[0].ID != "zed" {
		t.Errorf("search by name = %+v", page)
	}

	page = svc.Search("id-05", 1, 10)
	if page.TotalItems != 1 {
		t.Errorf("exact id search found %d users", page.TotalItems)
	}
}

func TestUserService_Sessions(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var visits []model.ScreenVisit
	for i := 0; i < 7; i++ {
		start := base.Add(time.Duration(i) * time.Hour)
		visits = append(visits, model.ScreenVisit{
			SessionID:        fmt.Sprintf("s%d", i),
			Screen:           "home",
			ScreenStartTime:  start,
			DurationSeconds:  30,
			SessionStartTime: start,
		})
	}
	svc := NewUserService(&fakeProfiles{}, &fakeVisits{visits: visits}, staticSnapshot(nil))

	page, err := svc.Sessions(context.Background(), "u", 1, 0)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if page.PageSize != 5 || len(page.Items) != 5 || page.TotalPages != 2 {
		t.Errorf("page = size %d items %d pages %d", page.PageSize, len(page.Items), page.TotalPages)
	}
	if page.Items[0].SessionID != "s6" {
		t.Errorf("newest session first, got %s", page.Items[0].SessionID)
	}

	failing := NewUserService(&fakeProfiles{}, &fakeVisits{err: errors.New("boom")}, staticSnapshot(nil))
	if _, err := failing.Sessions(context.Background(), "u", 1, 0); err == nil {
		t.Error("expected error from visit store")
	}
}
