package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	doc, err := Load(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, doc.Info.Version)
	for _, path := range []string{"/chat_initiate", "/chat-continue", "/sessions/{id}", "/sessions/{id}/result"} {
		assert.NotNil(t, doc.Paths.Find(path), path)
	}
}
