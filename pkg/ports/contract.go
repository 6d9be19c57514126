package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/interlude/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore implementation
// adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID, "coord-"+sessionID)
		session.Status = domain.StatusAwaitingInput
		session.Prompt = "Confirm scope?"
		session.Drives = 1

		err := store.Save(ctx, sessionID, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.ID, loaded.ID)
		assert.Equal(t, session.Coordinate, loaded.Coordinate)
		assert.Equal(t, domain.StatusAwaitingInput, loaded.Status)
		assert.Equal(t, "Confirm scope?", loaded.Prompt)
		assert.Equal(t, 1, loaded.Drives)
	})

	t.Run("Save keeps artifact", func(t *testing.T) {
		session := domain.NewSession(sessionID, sessionID)
		session.Status = domain.StatusCompleted
		session.Artifact = &domain.Artifact{Content: "# Report"}
		require.NoError(t, store.Save(ctx, sessionID, session))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, loaded.Artifact)
		assert.Equal(t, "# Report", loaded.Artifact.Content)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSession(sessionID, sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSession(id1, id1))
		_ = store.Save(ctx, id2, domain.NewSession(id2, id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
