package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/combatcore/internal/game/stats"
)

func TestOutbox_Push(t *testing.T) {
	o := NewOutbox(uuid.New(), 4)
	require.NoError(t, o.Push("hello"))
	assert.Equal(t, "hello", <-o.Messages())
}

func TestOutbox_PushClosed(t *testing.T) {
	o := NewOutbox(uuid.New(), 4)
	o.Close()
	assert.Error(t, o.Push("fail"))
}

func TestOutbox_PushFullEvictsOldest(t *testing.T) {
	o := NewOutbox(uuid.New(), 2)
	require.NoError(t, o.Push("first"))
	require.NoError(t, o.Push("second"))
	require.NoError(t, o.Push("third"))
	assert.Equal(t, uint64(1), o.Dropped())
	assert.Equal(t, "second", <-o.Messages())
	assert.Equal(t, "third", <-o.Messages())
}

func TestOutbox_CloseIdempotent(t *testing.T) {
	o := NewOutbox(uuid.New(), 4)
	o.Close()
	o.Close()
}

func TestManager_AddRemove(t *testing.T) {
	m := NewManager()
	id := uuid.New()

	sess, err := m.AddPlayer(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, "alice", sess.Name)
	assert.False(t, sess.JoinedAt.IsZero())
	assert.True(t, m.IsOnline(id))
	assert.Equal(t, 1, m.PlayerCount())

	require.NoError(t, m.RemovePlayer(id))
	assert.False(t, m.IsOnline(id))
	assert.Equal(t, 0, m.PlayerCount())
}

func TestManager_AddDuplicate(t *testing.T) {
	m := NewManager()
	id := uuid.New()
	_, err := m.AddPlayer(id, "alice")
	require.NoError(t, err)
	_, err = m.AddPlayer(id, "alice")
	assert.Error(t, err)
}

func TestManager_AddNilID(t *testing.T) {
	m := NewManager()
	_, err := m.AddPlayer(uuid.Nil, "ghost")
	assert.ErrorIs(t, err, stats.ErrInvalidPlayerReference)
}

func TestManager_RemoveUnknown(t *testing.T) {
	m := NewManager()
	err := m.RemovePlayer(uuid.New())
	assert.ErrorIs(t, err, stats.ErrInvalidPlayerReference)
}

func TestManager_ShowStatus(t *testing.T) {
	m := NewManager()
	id := uuid.New()
	sess, err := m.AddPlayer(id, "alice")
	require.NoError(t, err)

	m.ShowStatus(id, "HP 40/40")
	assert.Equal(t, "HP 40/40", <-sess.Outbox.Messages())

	// offline players are ignored
	m.ShowStatus(uuid.New(), "nobody")

	m.SendMessage(id, "debug")
	assert.Equal(t, "debug", <-sess.Outbox.Messages())
}

func TestManager_ShowStatus_FullOutboxKeepsNewest(t *testing.T) {
	m := NewManager()
	id := uuid.New()
	_, err := m.AddPlayer(id, "alice")
	require.NoError(t, err)
	for i := 1; i <= 100; i++ {
		m.ShowStatus(id, fmt.Sprintf("tick %d", i))
	}
	sess, _ := m.GetPlayer(id)
	require.Len(t, sess.Outbox.Messages(), outboxSize)
	assert.Equal(t, uint64(100-outboxSize), sess.Outbox.Dropped())

	var last string
	first := <-sess.Outbox.Messages()
	for len(sess.Outbox.Messages()) > 0 {
		last = <-sess.Outbox.Messages()
	}
	assert.Equal(t, fmt.Sprintf("tick %d", 100-outboxSize+1), first)
	assert.Equal(t, "tick 100", last)
}

func TestOutbox_ConcurrentPushAndDrain(t *testing.T) {
	o := NewOutbox(uuid.New(), 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range o.Messages() {
		}
	}()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				assert.NoError(t, o.Push("line"))
			}
		}()
	}
	wg.Wait()
	o.Close()
	<-done
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.New()
			_, _ = m.AddPlayer(id, "p")
			m.IsOnline(id)
			_ = m.RemovePlayer(id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, m.PlayerCount())
}

func TestManager_Property_CountMatchesAdds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(rt, "n")
		m := NewManager()
		for i := 0; i < n; i++ {
			_, err := m.AddPlayer(uuid.New(), "p")
			require.NoError(rt, err)
		}
		assert.Equal(rt, n, m.PlayerCount())
	})
}
