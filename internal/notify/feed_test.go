package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFeedKeepsNewestInOrder(t *testing.T) {
	feed := NewFeed(3, zaptest.NewLogger(t))

	for i := 0; i < 5; i++ {
		Info(feed, fmt.Sprintf("n%d", i), "")
	}

	recent := feed.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "n2", recent[0].Title)
	assert.Equal(t, "n4", recent[2].Title)

	latest, ok := feed.Latest()
	require.True(t, ok)
	assert.Equal(t, "n4", latest.Title)
}

func TestFeedPartial(t *testing.T) {
	feed := NewFeed(4, nil)
	_, ok := feed.Latest()
	assert.False(t, ok)

	Alert(feed, "Connection Failed", "try again")
	recent := feed.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, VariantDestructive, recent[0].Variant)
	assert.False(t, recent[0].Time.IsZero())
}

func TestNilNotifierIsIgnored(t *testing.T) {
	assert.NotPanics(t, func() {
		Info(nil, "x", "y")
		Alert(nil, "x", "y")
	})
}
