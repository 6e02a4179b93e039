// Package store persists applicant records across restarts.
package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the review state of an application.
type Status string

const (
	// StatusPending awaits a reviewer decision.
	StatusPending Status = "pending"
	// StatusApproved unlocks payment options.
	StatusApproved Status = "approved"
	// StatusRejected blocks the user for the cooldown window.
	StatusRejected Status = "rejected"
)

// StringMap stores a flat answers snapshot as JSONB.
type StringMap map[string]string

// Value implements driver.Valuer.
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *StringMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		if s, sok := src.(string); sok {
			raw = []byte(s)
		} else {
			return fmt.Errorf("store: cannot scan %T into StringMap", src)
		}
	}
	return json.Unmarshal(raw, m)
}

// StringList stores pending reminder offsets as JSONB.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = nil
		return nil
	}
	raw, ok := src.([]byte)
	if !ok {
		if s, sok := src.(string); sok {
			raw = []byte(s)
		} else {
			return fmt.Errorf("store: cannot scan %T into StringList", src)
		}
	}
	return json.Unmarshal(raw, l)
}

// UserRecord is everything persisted about one applicant.
type UserRecord struct {
	UserID        int64      `db:"user_id"`
	Username      string     `db:"username"`
	FullName      string     `db:"full_name"`
	Email         string     `db:"email"`
	Role          string     `db:"role"`
	Status        Status     `db:"status"`
	RejectedAt    *time.Time `db:"rejected_at"`
	Plan          string     `db:"plan"`
	Expiry        *time.Time `db:"subscription_expiry"`
	LastActive    time.Time  `db:"last_active"`
	CommunitySize int64      `db:"community_size"`
	Answers       StringMap  `db:"answers"`
	Reminders     StringList `db:"reminders"`
}

// HasPlan reports whether the user holds an active subscription entry.
func (u *UserRecord) HasPlan() bool {
	return u != nil && u.Plan != "" && u.Expiry != nil
}

// UserStore is the persistence surface for applicant records.
// Get returns (nil, nil) when no record exists.
type UserStore interface {
	Get(ctx context.Context, userID int64) (*UserRecord, error)
	Set(ctx context.Context, rec *UserRecord) error
	Delete(ctx context.Context, userID int64) error
	All(ctx context.Context) ([]*UserRecord, error)
}
