package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(t.TempDir())
	require.NoError(t, err)
	return j
}

func TestPaymentRoundTrip(t *testing.T) {
	j := newJournal(t)

	rec := PaymentRecord{
		UserID:      42,
		Name:        "Ada Obi",
		Email:       "ada@example.com",
		Reference:   "ref-1",
		AmountMinor: 3750000,
		Plan:        "1month",
		Date:        time.Now().UTC(),
	}
	require.NoError(t, j.AppendPayment(rec, "ada"))

	assert.True(t, j.HasPayment("ref-1"))
	assert.False(t, j.HasPayment("ref-2"))

	paid, err := j.PaidUsers()
	require.NoError(t, err)
	assert.Equal(t, "ada", paid[42])
}

func TestAppendAnswersPerRole(t *testing.T) {
	j := newJournal(t)

	require.NoError(t, j.AppendAnswers("designer", 1, map[string]string{"full_name": "Ada"}))
	require.NoError(t, j.AppendAnswers("influencer", 2, map[string]string{"full_name": "Ngozi"}))

	removed, err := j.RemoveUser([]string{"designer", "influencer"}, 1)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = j.RemoveUser([]string{"designer", "influencer"}, 1)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCorruptFileReadsAsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payments.json"), []byte("{not json"), 0o644))

	j, err := New(dir)
	require.NoError(t, err)
	assert.False(t, j.HasPayment("anything"))

	// Writing after a corrupt read replaces the file cleanly.
	require.NoError(t, j.AppendPayment(PaymentRecord{UserID: 1, Reference: "r"}, "u"))
	assert.True(t, j.HasPayment("r"))
}

func TestRemovePaidUser(t *testing.T) {
	j := newJournal(t)
	require.NoError(t, j.AppendPayment(PaymentRecord{UserID: 9, Reference: "r9"}, "u9"))

	removed, err := j.RemoveUser(nil, 9)
	require.NoError(t, err)
	assert.True(t, removed)

	paid, err := j.PaidUsers()
	require.NoError(t, err)
	assert.Empty(t, paid)
}
