package cache

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterKeyRoundTrip(t *testing.T) {
	id := uuid.New()
	at := time.Date(2025, 6, 30, 23, 30, 0, 0, time.FixedZone("IST", 19800))

	key := counterKey(id, at)
	assert.Equal(t, "analytics:"+id.String()+":2025-06-30", key)

	gotID, day, err := parseKey(key)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), day)
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	for _, key := range []string{
		"analytics:",
		"analytics:not-a-uuid:2025-06-30",
		"analytics:" + uuid.NewString() + ":30-06-2025",
		"analytics:" + uuid.NewString(),
	} {
		_, _, err := parseKey(key)
		assert.Error(t, err, key)
	}
}

func TestEventValid(t *testing.T) {
	assert.True(t, EventView.Valid())
	assert.True(t, EventInquiry.Valid())
	assert.False(t, Event("shares").Valid())
}
