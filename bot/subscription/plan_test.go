package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyinfluencing/listingbot/bot/catalog"
)

func TestResolveTier(t *testing.T) {
	cases := []struct {
		name string
		role string
		size int64
		want Tier
		err  error
	}{
		{"designer ignores size", catalog.RoleDesigner, 0, TierDesigner, nil},
		{"mega at threshold", catalog.RoleInfluencer, 100000, TierMega, nil},
		{"standard at threshold", catalog.RoleInfluencer, 50000, TierStandard, nil},
		{"standard below mega", catalog.RoleInfluencer, 99999, TierStandard, nil},
		{"micro at threshold", catalog.RoleInfluencer, 10000, TierMicro, nil},
		{"below minimum", catalog.RoleInfluencer, 9999, "", ErrIneligible},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveTier(tc.role, tc.size)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPriceMinor(t *testing.T) {
	price, err := PriceMinor(TierDesigner, Plan1Month)
	require.NoError(t, err)
	assert.Equal(t, int64(3750000), price)

	price, err = PriceMinor(TierMega, Plan12Months)
	require.NoError(t, err)
	assert.Equal(t, int64(55100000), price)

	_, err = PriceMinor(TierDesigner, Plan("2weeks"))
	require.ErrorIs(t, err, ErrUnknownPlan)

	_, err = PriceMinor(Tier("nano_influencer"), Plan1Month)
	require.ErrorIs(t, err, ErrUnknownPlan)
}

func TestPlanDuration(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, Plan1Month.Duration())
	assert.Equal(t, 90*24*time.Hour, Plan3Months.Duration())
	assert.Equal(t, 360*24*time.Hour, Plan12Months.Duration())
	assert.Zero(t, Plan("weekly").Duration())
	assert.False(t, Plan("weekly").Valid())
}

func TestOptions(t *testing.T) {
	opts, err := Options(TierMicro)
	require.NoError(t, err)
	require.Len(t, opts, 3)
	assert.Equal(t, Plan1Month, opts[0].Plan)
	assert.Equal(t, "Subscribe to 1 Month (₦34,000)", opts[0].Label)
	assert.Equal(t, "Subscribe to 12 Months (₦313,000)", opts[2].Label)

	_, err = Options(Tier("unknown"))
	require.ErrorIs(t, err, ErrUnknownPlan)
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("user@example.com"))
	assert.True(t, ValidEmail("a.b+c@sub.domain.ng"))
	assert.False(t, ValidEmail("not-an-email"))
	assert.False(t, ValidEmail("user@nodot"))
	assert.False(t, ValidEmail("spaced user@example.com"))
	assert.False(t, ValidEmail(""))
}
