package blobport

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/config"
)

func TestObjectName(t *testing.T) {
	assert.Equal(t, "messages/sha256:abc", objectName("sha256:abc"))
}

func TestBlobRoundTripAgainstMinio(t *testing.T) {
	endpoint := os.Getenv("TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_MINIO_ENDPOINT not set")
	}
	cfg := config.NewMinioConfig()
	cfg.Endpoint = endpoint
	cfg.Bucket = "baseline-test"

	ctx := context.Background()
	store, err := NewBlobStore(ctx, cfg, logging.NewNopLogger())
	require.NoError(t, err)

	key := "sha256:" + uuid.NewString()
	payload := []byte(`{"testcase":"login","results":{"ok":true}}`)
	require.NoError(t, store.PutBlob(ctx, key, payload))

	got, err := store.GetBlob(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	require.NoError(t, store.DeleteBlob(ctx, key))
	_, err = store.GetBlob(ctx, key)
	assert.Error(t, err)
	require.NoError(t, store.DeleteBlob(ctx, key))
}
