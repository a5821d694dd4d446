// Package sessiontest provides the behavioural contract shared by every
// core.SessionStore backend.
package sessiontest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/session"
)

// RunStoreContract exercises create/get/append/delta semantics against store.
func RunStoreContract(t *testing.T, store core.SessionStore) {
	t.Helper()

	ctx := context.Background()
	sessionID := "contract-" + time.Now().Format("20060102150405.000000000")

	t.Run("Create and Get", func(t *testing.T) {
		created, err := store.Create(ctx, "trip_planner", "user", sessionID)
		require.NoError(t, err)
		assert.Equal(t, sessionID, created.ID)

		got, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "trip_planner", got.AppName)
		assert.Equal(t, "user", got.UserID)
		assert.Empty(t, got.GetEvents())
	})

	t.Run("Create Duplicate", func(t *testing.T) {
		_, err := store.Create(ctx, "trip_planner", "user", sessionID)
		assert.ErrorIs(t, err, session.ErrSessionExists)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-"+sessionID)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("Append Non-Existent", func(t *testing.T) {
		err := store.AppendEvent(ctx, "missing-"+sessionID, core.NewEvent("inv", "planner"))
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("AppendEvent preserves order", func(t *testing.T) {
		uc := core.NewTextContent("user", "plan Rome")
		require.NoError(t, store.AppendEvent(ctx, sessionID, core.NewUserContentEvent("inv", &uc)))
		require.NoError(t, store.AppendEvent(ctx, sessionID, core.NewMessageEvent("inv", "planner", "Day 1")))

		got, err := store.Get(ctx, sessionID)
		require.NoError(t, err)

		evs := got.GetEvents()
		require.Len(t, evs, 2)
		assert.Equal(t, "plan Rome", evs[0].Content.Text())
		assert.Equal(t, "Day 1", evs[1].Content.Text())
	})

	t.Run("ApplyDelta", func(t *testing.T) {
		require.NoError(t, store.ApplyDelta(ctx, sessionID, map[string]any{"city": "Rome"}))
		require.NoError(t, store.ApplyDelta(ctx, sessionID, map[string]any{"days": 2}))

		got, err := store.Get(ctx, sessionID)
		require.NoError(t, err)

		v, ok := got.GetState("city")
		require.True(t, ok)
		assert.Equal(t, "Rome", v)

		_, ok = got.GetState("days")
		assert.True(t, ok)
	})

	t.Run("Snapshots are isolated", func(t *testing.T) {
		got, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		got.SetState("local", true)

		again, err := store.Get(ctx, sessionID)
		require.NoError(t, err)
		_, ok := again.GetState("local")
		assert.False(t, ok)
	})

	t.Run("Concurrent AppendEvent", func(t *testing.T) {
		id := sessionID + "-concurrent"
		_, err := store.Create(ctx, "trip_planner", "user", id)
		require.NoError(t, err)

		const n = 20

		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = store.AppendEvent(ctx, id, core.NewMessageEvent("inv", "planner", fmt.Sprintf("msg-%d", i)))
			}(i)
		}
		wg.Wait()

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.GetEvents(), n)
	})
}
