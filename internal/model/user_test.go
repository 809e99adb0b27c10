package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeFlattensStats(t *testing.T) {
	u := &User{ID: 3, Username: "ana", Email: "ana@example.com", DisplayName: "Ana", Credits: 12, EmailVerified: true}
	b, err := json.Marshal(u.Me(UserStats{PostCount: 4, Followers: 2, Following: 1}))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "Ana", got["displayName"])
	assert.Equal(t, "Ana", got["display_name"])
	assert.Equal(t, true, got["emailVerified"])
	assert.EqualValues(t, 12, got["credits"])
	assert.EqualValues(t, 4, got["postCount"])
	assert.EqualValues(t, 2, got["followers"])
	assert.EqualValues(t, 1, got["following"])
	_, leaked := got["PasswordHash"]
	assert.False(t, leaked)
}

func TestSubscriptionActive(t *testing.T) {
	assert.True(t, (&User{SubscriptionStatus: "active"}).SubscriptionActive())
	assert.True(t, (&User{SubscriptionStatus: "trialing"}).SubscriptionActive())
	assert.False(t, (&User{SubscriptionStatus: "canceled"}).SubscriptionActive())
	assert.False(t, (&User{}).SubscriptionActive())
}

func TestParseMediaType(t *testing.T) {
	mt, ok := ParseMediaType("")
	assert.True(t, ok)
	assert.Equal(t, MediaImage, mt)

	mt, ok = ParseMediaType(" Video ")
	assert.True(t, ok)
	assert.Equal(t, MediaVideo, mt)

	_, ok = ParseMediaType("gif")
	assert.False(t, ok)

	mt, ok = MediaTypeFromMIME("video/mp4")
	assert.True(t, ok)
	assert.Equal(t, MediaVideo, mt)
	_, ok = MediaTypeFromMIME("application/pdf")
	assert.False(t, ok)
}

func TestPacksAndTips(t *testing.T) {
	p, ok := FindPack("popular")
	require.True(t, ok)
	assert.Equal(t, int64(200), p.Credits)
	assert.Equal(t, int64(1499), p.PriceCents)

	_, ok = FindPack("mega")
	assert.False(t, ok)

	tip, ok := FindTipAmount("tip_10")
	require.True(t, ok)
	assert.Equal(t, int64(1000), tip.AmountCents)

	assert.Equal(t, int64(1), CostOf(KindImage))
	assert.Equal(t, int64(5), CostOf(KindVideo))
}
