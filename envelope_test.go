package xcast

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uuidV4 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestWeakUUID_Shape(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := WeakUUID()
		require.Len(t, id, 36)
		require.Regexp(t, uuidV4, id)

		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(4), parsed.Version())
		assert.Equal(t, uuid.RFC4122, parsed.Variant())

		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}

func TestWeakReader_FillsOddLengths(t *testing.T) {
	for _, n := range []int{0, 1, 7, 8, 9, 16, 33} {
		buf := make([]byte, n)
		got, err := weakReader{}.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}

func TestNewEnvelope(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_123)
	env := newEnvelope("id-1", "room:1", map[string]string{"text": "hi"}, now)

	assert.Equal(t, "id-1", env.ID())
	assert.Equal(t, "room:1", env.Key())
	assert.True(t, env.HasData())
	assert.Equal(t, map[string]string{"text": "hi"}, env.Data())
	assert.Equal(t, int64(1_700_000_000_123), env.Timestamp())
	assert.True(t, now.Equal(env.Time()))
	assert.Contains(t, env.String(), "room:1")
}

func TestNewEnvelope_NoData(t *testing.T) {
	env := newEnvelope("id-1", "x", nil, time.Now())
	assert.False(t, env.HasData())
	assert.Nil(t, env.Data())
}

type chatMessage struct {
	Text string
}

func TestAs(t *testing.T) {
	msg := &chatMessage{Text: "hi"}
	env := newEnvelope("id-1", "room:1", msg, time.Now())
	env.seq = 7

	typed, ok := As[*chatMessage](env)
	require.True(t, ok)
	assert.Equal(t, env.ID(), typed.ID())
	assert.Equal(t, env.Key(), typed.Key())
	assert.Equal(t, env.Timestamp(), typed.Timestamp())
	assert.Equal(t, uint64(7), typed.Seq())
	// same reference, not a copy
	assert.Same(t, msg, typed.Data())

	_, ok = As[string](env)
	assert.False(t, ok)
}

func TestAs_AbsentData(t *testing.T) {
	env := newEnvelope("id-1", "x", nil, time.Now())
	typed, ok := As[*chatMessage](env)
	require.True(t, ok)
	assert.False(t, typed.HasData())
	assert.Nil(t, typed.Data())
}
