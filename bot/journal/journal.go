// Package journal keeps append-style JSON records that survive database
// resets: verified payments, the paid-user roster, and raw application
// answers per role.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"log/slog"

	"github.com/dailyinfluencing/listingbot/core/logger"
)

const (
	paymentsFile  = "payments.json"
	paidUsersFile = "successful_payments.json"
)

// PaymentRecord is one verified payment, keyed by provider reference.
type PaymentRecord struct {
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Reference string    `json:"reference"`
	// AmountMinor is in the currency's minor units (kobo).
	AmountMinor int64     `json:"amount_minor"`
	Plan        string    `json:"plan"`
	Date        time.Time `json:"date"`
}

// Journal owns the data directory. All writes replace the file atomically via
// a temp file rename; missing or corrupt files read as empty.
type Journal struct {
	dir string
	mu  sync.Mutex
}

// New creates the data directory if needed.
func New(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create dir %s: %w", dir, err)
	}
	return &Journal{dir: dir}, nil
}

func (j *Journal) path(name string) string {
	return filepath.Join(j.dir, name)
}

func roleFile(role string) string {
	return role + "_data.json"
}

// readMap loads a JSON object file into out, tolerating absence and
// corruption: both yield an empty map.
func readMap[V any](path string) map[string]V {
	out := make(map[string]V)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn(context.Background(), "journal", "journal.read",
				slog.String("payload", filepath.Base(path)),
				slog.String("err", err.Error()),
			)
		}
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Warn(context.Background(), "journal", "journal.corrupt",
			slog.String("payload", filepath.Base(path)),
			slog.String("err", err.Error()),
		)
		return make(map[string]V)
	}
	return out
}

func writeMap[V any](path string, m map[string]V) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("journal: marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("journal: write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("journal: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// AppendPayment records a verified payment under its reference and marks the
// user as paid in the roster.
func (j *Journal) AppendPayment(rec PaymentRecord, username string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	payments := readMap[PaymentRecord](j.path(paymentsFile))
	payments[rec.Reference] = rec
	if err := writeMap(j.path(paymentsFile), payments); err != nil {
		return err
	}

	paid := readMap[string](j.path(paidUsersFile))
	name := username
	if name == "" {
		name = rec.Name
	}
	paid[strconv.FormatInt(rec.UserID, 10)] = name
	return writeMap(j.path(paidUsersFile), paid)
}

// HasPayment reports whether the reference was already journalled, which
// doubles as the durable half of the verification idempotency guard.
func (j *Journal) HasPayment(reference string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	payments := readMap[PaymentRecord](j.path(paymentsFile))
	_, ok := payments[reference]
	return ok
}

// PaidUsers returns userID -> display name for everyone who has paid.
func (j *Journal) PaidUsers() (map[int64]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	raw := readMap[string](j.path(paidUsersFile))
	out := make(map[int64]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out, nil
}

// AppendAnswers stores the raw submitted answers under the role's file.
// A write failure here must abort the submission.
func (j *Journal) AppendAnswers(role string, userID int64, answers map[string]string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	data := readMap[map[string]string](j.path(roleFile(role)))
	data[strconv.FormatInt(userID, 10)] = answers
	return writeMap(j.path(roleFile(role)), data)
}

// RemoveUser clears the user from every role file and the paid roster.
// It reports whether anything was removed.
func (j *Journal) RemoveUser(roles []string, userID int64) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := strconv.FormatInt(userID, 10)
	removed := false
	for _, role := range roles {
		path := j.path(roleFile(role))
		data := readMap[map[string]string](path)
		if _, ok := data[key]; !ok {
			continue
		}
		delete(data, key)
		if err := writeMap(path, data); err != nil {
			return removed, err
		}
		removed = true
	}

	paid := readMap[string](j.path(paidUsersFile))
	if _, ok := paid[key]; ok {
		delete(paid, key)
		if err := writeMap(j.path(paidUsersFile), paid); err != nil {
			return removed, err
		}
		removed = true
	}
	return removed, nil
}
