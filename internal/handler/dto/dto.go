// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"bytes"
	"encoding/json"

	"github.com/gymii/dashboard/internal/cost"
	"github.com/gymii/dashboard/internal/datastore"
	"github.com/gymii/dashboard/internal/kpi"
	"github.com/gymii/dashboard/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ValidationErrorResponse is an ErrorResponse carrying per-field failures.
type ValidationErrorResponse struct {
	Error  string       `json:"error"`
	Code   string       `json:"code"`
	Fields []FieldError `json:"fields"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// RefreshResponse reports a completed snapshot refresh.
type RefreshResponse struct {
	Message  string                  `json:"message"`
	RunID    string                  `json:"run_id"`
	Duration string                  `json:"duration"`
	Queries  []datastore.QueryResult `json:"queries"`
}

// UsersByID is the analytics user listing keyed by user id.
type UsersByID map[string]model.User

// ToUsersByID indexes users by id.
func ToUsersByID(users []model.User) UsersByID {
	out := make(UsersByID, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out
}

// KPIResponse is the dashboard headline block.
type KPIResponse struct {
	Metrics               kpi.UserMetrics  `json:"metrics"`
	Summary               kpi.Summary      `json:"summary"`
	Distribution          []kpi.Point      `json:"distribution"`
	Funnel                []kpi.Point      `json:"funnel"`
	SubscriptionBreakdown []kpi.Point      `json:"subscription_breakdown"`
	Snapshot              []datastore.Meta `json:"snapshot"`
}

// MeResponse describes the authenticated admin.
type MeResponse struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// CreateCommentRequest is the body of POST /api/admin/{userID}/comments.
type CreateCommentRequest struct {
	Text string  `json:"text"`
	Mood *string `json:"mood"`
}

// UpdateCommentRequest is the body of PUT /api/admin/comments/{commentID}.
// An explicit "mood": null clears the mood; an absent key leaves it alone.
type UpdateCommentRequest struct {
	Text *string        `json:"text"`
	Mood OptionalString `json:"mood"`
}

// OptionalString tells an absent JSON field apart from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON records that the field was present.
func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

// CostReportResponse pairs token totals with their dollar cost.
type CostReportResponse struct {
	Usage  cost.Report     `json:"usage"`
	Costs  cost.CostReport `json:"costs"`
	Prices cost.PriceTable `json:"prices"`
}
