package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanFullStackDev/AgrolinkHubAfricaProject/internal/apperr"
)

// scriptedClock returns each time in turn and then repeats the last one.
func scriptedClock(times ...time.Time) Clock {
	i := 0
	return func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
}

// runMessageStoreTests exercises the behaviour every message backend shares.
func runMessageStoreTests(t *testing.T, newStore func(t *testing.T) (MessageStore, func(Clock))) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	t.Run("append assigns id seq and sent_at", func(t *testing.T) {
		s, setClock := newStore(t)
		setClock(scriptedClock(base))

		msg, err := s.Append(ctx, "a_b", "a", "b", "hello")
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.Positive(t, msg.Seq)
		assert.True(t, msg.SentAt.Equal(base))
		assert.False(t, msg.Read)
	})

	t.Run("invalid append writes nothing", func(t *testing.T) {
		s, _ := newStore(t)

		cases := []struct{ room, sender, recipient, text string }{
			{"a_b", "a", "b", ""},
			{"a_b", "a", "b", "   "},
			{"a_b", "", "b", "hi"},
			{"a_b", "a", "", "hi"},
			{"", "a", "b", "hi"},
		}
		for _, c := range cases {
			_, err := s.Append(ctx, c.room, c.sender, c.recipient, c.text)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		}

		msgs, err := s.ListByRoom(ctx, "a_b")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("empty room is an empty slice", func(t *testing.T) {
		s, _ := newStore(t)

		msgs, err := s.ListByRoom(ctx, "nobody_here")
		require.NoError(t, err)
		assert.NotNil(t, msgs)
		assert.Len(t, msgs, 0)
	})

	t.Run("timestamp ties keep append order", func(t *testing.T) {
		s, setClock := newStore(t)
		setClock(scriptedClock(base))

		for _, text := range []string{"first", "second", "third"} {
			_, err := s.Append(ctx, "a_b", "a", "b", text)
			require.NoError(t, err)
		}

		msgs, err := s.ListByRoom(ctx, "a_b")
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "first", msgs[0].Text)
		assert.Equal(t, "second", msgs[1].Text)
		assert.Equal(t, "third", msgs[2].Text)
		assert.Less(t, msgs[0].Seq, msgs[1].Seq)
		assert.Less(t, msgs[1].Seq, msgs[2].Seq)
	})

	t.Run("history is ordered by sent_at", func(t *testing.T) {
		s, setClock := newStore(t)
		setClock(scriptedClock(base.Add(time.Minute), base))

		_, err := s.Append(ctx, "a_b", "a", "b", "later")
		require.NoError(t, err)
		_, err = s.Append(ctx, "a_b", "b", "a", "earlier")
		require.NoError(t, err)

		msgs, err := s.ListByRoom(ctx, "a_b")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "earlier", msgs[0].Text)
		assert.Equal(t, "later", msgs[1].Text)
	})

	t.Run("list by participant covers sent and received", func(t *testing.T) {
		s, setClock := newStore(t)
		setClock(scriptedClock(base, base.Add(time.Second), base.Add(2*time.Second)))

		_, err := s.Append(ctx, "a_b", "a", "b", "a to b")
		require.NoError(t, err)
		_, err = s.Append(ctx, "a_c", "c", "a", "c to a")
		require.NoError(t, err)
		_, err = s.Append(ctx, "b_c", "b", "c", "b to c")
		require.NoError(t, err)

		msgs, err := s.ListByParticipant(ctx, "a")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "a to b", msgs[0].Text)
		assert.Equal(t, "c to a", msgs[1].Text)

		msgs, err = s.ListByParticipant(ctx, "stranger")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}
