// Package paging provides search filtering and page slicing for list views.
package paging

import (
	"strings"

	"github.com/gymii/dashboard/internal/model"
)

// Default page sizes.
const (
	DefaultPageSize  = 10
	SessionsPageSize = 5
	MaxPageSize      = 100
)

// Page is one slice of a larger ordered list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// HasNext reports whether a later page exists.
func (p Page[T]) HasNext() bool {
	return p.Page < p.TotalPages
}

// HasPrev reports whether an earlier page exists.
func (p Page[T]) HasPrev() bool {
	return p.Page > 1
}

// TotalPages returns ceil(n/size). An empty list has zero pages.
func TotalPages(n, size int) int {
	if size <= 0 || n <= 0 {
		return 0
	}
	return (n + size - 1) / size
}

// Paginate returns the 1-based page of items. Out of range pages are clamped
// to the nearest valid page; a non-positive size falls back to DefaultPageSize.
// Concatenating every page reproduces items in order.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	total := TotalPages(len(items), size)
	if page < 1 {
		page = 1
	}
	if total > 0 && page > total {
		page = total
	}

	start := (page - 1) * size
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}

	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		PageSize:   size,
		TotalItems: len(items),
		TotalPages: total,
	}
}

// Filter keeps elements for which match returns true, preserving order.
func Filter[T any](items []T, match func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if match(it) {
			out = append(out, it)
		}
	}
	return out
}

// SearchUsers matches first name or email by case-insensitive substring, or
// the id exactly. A blank term returns every user.
func SearchUsers(users []model.User, term string) []model.User {
	term = strings.TrimSpace(term)
	if term == "" {
		return users
	}
	needle := strings.ToLower(term)

	return Filter(users, func(u model.User) bool {
		return u.ID == term ||
			strings.Contains(strings.ToLower(u.FirstName), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle)
	})
}
