package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/interlude/internal/config"
	"github.com/aretw0/interlude/internal/logging"
	"github.com/aretw0/interlude/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
}

func build(t *testing.T, cfg config.Config) *App {
	t.Helper()
	require.NoError(t, cfg.Validate())
	app, err := Build(cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func converse(t *testing.T, app *App, id string) {
	t.Helper()
	ctx := context.Background()

	reply, err := app.Engine.Initiate(ctx, id, "tidal energy")
	require.NoError(t, err)
	require.Equal(t, domain.StatusAwaitingInput, reply.Status)

	reply, err = app.Engine.Continue(ctx, id, "looks good")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, reply.Status)
	require.NotNil(t, reply.Artifact)
	assert.Contains(t, reply.Artifact.Content, "# tidal energy")
}

func TestBuild_Defaults(t *testing.T) {
	app := build(t, config.Default())

	assert.NotNil(t, app.Metrics)
	converse(t, app, "s1")

	ids, err := app.Store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
}

func TestBuild_MetricsDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	app := build(t, cfg)
	assert.Nil(t, app.Metrics)
}

func TestBuild_FileStoreWithMiddlewares(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Kind = "file"
	cfg.Store.Path = t.TempDir()
	cfg.Store.EncryptionKey = testKey()
	cfg.Store.Redact = []string{`\d{4}-\d{4}`}

	app := build(t, cfg)
	converse(t, app, "s1")

	sess, err := app.Store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, sess.Status)
	require.NotNil(t, sess.Artifact)
	assert.Contains(t, sess.Artifact.Content, "# tidal energy")
}

func TestBuild_RedisStoreAndLock(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Store.Kind = "redis"
	cfg.Redis.Addr = mr.Addr()
	cfg.Session.DistributedLock = true

	app := build(t, cfg)
	converse(t, app, "s1")

	assert.True(t, mr.Exists(cfg.Redis.Prefix+"s1"))
}

func TestBuild_DistributedLockWithoutRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	cfg.Session.DistributedLock = true

	app := build(t, cfg)
	converse(t, app, "s1")
}

func TestBuild_LangGraphEngine(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.Kind = "langgraph"
	cfg.Engine.URL = "http://127.0.0.1:1"

	app := build(t, cfg)
	assert.NotNil(t, app.Workflow)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"Unknown Engine", func(c *config.Config) { c.Engine.Kind = "nope" }, "unknown engine kind"},
		{"Unknown Store", func(c *config.Config) { c.Store.Kind = "nope" }, "unknown store kind"},
		{"Missing Workflow File", func(c *config.Config) { c.Engine.Workflow = "does-not-exist.yaml" }, "does-not-exist.yaml"},
		{"Bad Redact Pattern", func(c *config.Config) { c.Store.Redact = []string{"("} }, "store.redact"},
		{"Bad Encryption Key", func(c *config.Config) { c.Store.EncryptionKey = "short" }, "store.encryption_key"},
		{"Bad Fallback Key", func(c *config.Config) {
			c.Store.EncryptionKey = testKey()
			c.Store.FallbackKeys = []string{"AAAA"}
		}, "store.fallback_keys[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			_, err := Build(cfg, logging.NewNop())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOpenStore(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Kind = "file"
	cfg.Store.Path = t.TempDir()

	app := build(t, cfg)
	converse(t, app, "s1")

	store, closer, err := OpenStore(cfg)
	require.NoError(t, err)
	defer closer.Close()

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, sess.Status)
}

func TestNewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"

	var buf bytes.Buffer
	logger, err := NewLogger(cfg, &buf)
	require.NoError(t, err)
	logger.Debug("hello", "k", "v")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	cfg.LogLevel = "loud"
	_, err = NewLogger(cfg, &buf)
	assert.Error(t, err)
}
