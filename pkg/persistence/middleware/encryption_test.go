package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/aretw0/interlude/pkg/adapters/memory"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/aretw0/interlude/pkg/persistence/middleware"
	"github.com/aretw0/interlude/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunSessionStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)

	ctx := context.Background()
	original := domain.NewSession("s1", "thread-1")
	original.Status = domain.StatusAwaitingInput
	original.Prompt = "Confirm scope of my-secret-sauce?"

	// 1. Save
	require.NoError(t, secure.Save(ctx, "s1", original))

	// 2. The underlying record is an envelope
	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingInput, stored.Status, "routing fields stay readable")
	assert.Equal(t, "thread-1", stored.Coordinate)
	sealed, ok := stored.Prompt.(map[string]any)
	require.True(t, ok, "expected an envelope prompt, got %v", stored.Prompt)
	assert.Contains(t, sealed, "__encrypted__")

	// 3. Load via middleware
	loaded, err := secure.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Confirm scope of my-secret-sauce?", loaded.Prompt)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	ctx := context.Background()

	sess := domain.NewSession("rotation", "rotation")
	sess.Prompt = "encrypted-with-old-key"

	// 1. Save with OLD key
	require.NoError(t, secureOld.Save(ctx, "rotation", sess))

	// 2. Load with NEW key (Active) + OLD key (Fallback)
	secureNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := secureNew.Load(ctx, "rotation")
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.Prompt)

	// 3. Save again, now sealed with the NEW key
	loaded.Prompt = "encrypted-with-new-key"
	require.NoError(t, secureNew.Save(ctx, "rotation", loaded))

	// 4. The OLD key alone can no longer read it
	_, err = secureOld.Load(ctx, "rotation")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_RejectsPlainRecords(t *testing.T) {
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(context.Background(), "plain", domain.NewSession("plain", "plain")))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secure.Load(context.Background(), "plain")
	assert.Error(t, err)

	_, err = secure.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)

	parsed, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	parsed, err = middleware.ParseKey(base64.RawURLEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, parsed)

	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)

	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)
}
