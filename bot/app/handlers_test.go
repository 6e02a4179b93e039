package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/dailyinfluencing/listingbot/bot/session"
	"github.com/dailyinfluencing/listingbot/bot/subscription"
	coreconfig "github.com/dailyinfluencing/listingbot/core/config"
	"github.com/dailyinfluencing/listingbot/core/telegram/callbacks"
)

func TestParseUserPayload(t *testing.T) {
	id, rest, err := parseUserPayload("123456789 hello there")
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), id)
	assert.Equal(t, "hello there", rest)

	id, rest, err = parseUserPayload("  987  ")
	require.NoError(t, err)
	assert.Equal(t, int64(987), id)
	assert.Empty(t, rest)

	_, _, err = parseUserPayload("")
	assert.Error(t, err)

	_, _, err = parseUserPayload("not-a-number text")
	assert.Error(t, err)
}

func TestDatabaseConfigConversion(t *testing.T) {
	cfg := &coreconfig.Config{
		Database: coreconfig.DatabaseConfig{
			Host:           "db.internal",
			Port:           "5433",
			User:           "bot",
			Password:       "secret",
			Name:           "listings",
			SSLMode:        "require",
			MaxConnections: 12,
		},
	}
	out := databaseConfig(cfg)
	assert.Equal(t, "db.internal", out.Host)
	assert.Equal(t, "5433", out.Port)
	assert.Equal(t, "listings", out.Name)
	assert.Equal(t, "require", out.SSLMode)
	assert.Equal(t, 12, out.MaxConnections)
}

func TestEncodeConfirmRoundTrip(t *testing.T) {
	payload := encodeConfirm("cac_registered", "yes")
	fields := []string{"cac_registered", "yes"}
	assert.Equal(t, callbacks.EncodeFields(fields...), payload)
}

func TestRelayPinsFirstReviewer(t *testing.T) {
	a := &App{
		cfg: &coreconfig.Config{
			Review: coreconfig.ReviewConfig{ReviewerIDs: []int64{111, 222}},
		},
		messenger: newBotMessenger("https://t.me/support"),
	}
	s := session.New(session.Key{UserID: 5, ChatID: 5})
	s.Phase = session.PhaseSubmitted

	a.relayToReviewers(context.Background(), s, &tele.User{ID: 5, FirstName: "Ada"}, "hello")
	assert.Equal(t, int64(111), s.ChattingWith)

	// A pinned reviewer stays pinned on later messages.
	a.relayToReviewers(context.Background(), s, &tele.User{ID: 5, FirstName: "Ada"}, "again")
	assert.Equal(t, int64(111), s.ChattingWith)
}

func TestFormatReceiptHTML(t *testing.T) {
	r := &subscription.Receipt{
		UserID:      42,
		FullName:    "Ada Obi <script>",
		Email:       "ada@example.com",
		Reference:   "ref-123",
		Plan:        subscription.Plan3Months,
		AmountMinor: 9150000,
		Expiry:      time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
	}
	out := formatReceiptHTML(r)
	assert.Contains(t, out, "Amount Paid: 91500 NGN")
	assert.Contains(t, out, "Reference: ref-123")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.NotContains(t, out, "<script>")
}
