package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyinfluencing/listingbot/core/telegram/sender"
)

func TestMessengerDispatchInlineWithoutDispatcher(t *testing.T) {
	m := newBotMessenger("https://t.me/support")
	ran := false
	err := m.dispatch(context.Background(), "send.text", func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestMessengerDispatchQueuesThroughDispatcher(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1, QueueSize: 4})
	defer d.Close()

	m := newBotMessenger("https://t.me/support")
	m.Bind(nil, d)

	done := make(chan struct{})
	err := m.dispatch(context.Background(), "send.text", func() error {
		close(done)
		return nil
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued send never ran")
	}
}
