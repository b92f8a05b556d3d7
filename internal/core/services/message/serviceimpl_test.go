package message

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/adapter/crypto"
	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/adapter/memory"
	"gitlab.com/baseline-2025.net/internal/domain"
	"gitlab.com/baseline-2025.net/internal/static/errs"
)

func newStore() (*MessageStore, *memory.Store, *memory.BlobStore) {
	repo := memory.NewStore()
	blobs := memory.NewBlobStore()
	return NewMessageStore(repo, blobs, crypto.NewHasher(), logging.NewNopLogger()), repo, blobs
}

const loginPayload = `{"testcase":"login","results":{"status":"ok","score":0.93,"tags":["a","b"]},"metrics":{"duration":12}}`

func TestStoreDeduplicatesByContent(t *testing.T) {
	ctx := context.Background()
	store, repo, blobs := newStore()

	first, err := store.Store(ctx, []byte(loginPayload))
	require.NoError(t, err)
	assert.False(t, first.Reused)

	second, err := store.Store(ctx, []byte(loginPayload))
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, "login", first.Testcase)
	assert.Equal(t, "login", second.Testcase)

	assert.Equal(t, 2, repo.RefCount(first.Hash))
	assert.Equal(t, 1, blobs.Len())
}

func TestReleaseDeletesAtZero(t *testing.T) {
	ctx := context.Background()
	store, repo, blobs := newStore()

	ref, err := store.Store(ctx, []byte(loginPayload))
	require.NoError(t, err)
	require.NoError(t, store.Acquire(ctx, ref.Hash))

	require.NoError(t, store.Release(ctx, ref.Hash))
	assert.Equal(t, 1, repo.RefCount(ref.Hash))
	assert.Equal(t, 1, blobs.Len())

	require.NoError(t, store.Release(ctx, ref.Hash))
	assert.Equal(t, 0, repo.RefCount(ref.Hash))
	assert.Equal(t, 0, blobs.Len())

	_, err = store.Load(ctx, ref.Hash)
	assert.ErrorIs(t, err, errs.ComparisonTransientError)
}

func TestLoadReturnsDecodedData(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newStore()

	ref, err := store.Store(ctx, []byte(loginPayload))
	require.NoError(t, err)

	data, err := store.Load(ctx, ref.Hash)
	require.NoError(t, err)
	assert.Equal(t, "login", data.Testcase)
	assert.Equal(t, domain.String("ok"), data.Results["status"])
	assert.Equal(t, domain.Number(0.93), data.Results["score"])
	assert.Equal(t, 12.0, data.Metrics["duration"])
}

func TestMalformedPayloadTouchesNothing(t *testing.T) {
	ctx := context.Background()
	store, repo, blobs := newStore()

	for _, payload := range []string{
		``,
		`{"testcase":`,
		`{"results":{"a":1}}`,
		`{"testcase":"x","unknown":1}`,
		`{"testcase":"x","metrics":{"d":"slow"}}`,
		`{"testcase":"x","results":{"assert:ok":true},"assertions":{"ok":false}}`,
	} {
		_, err := store.Store(ctx, []byte(payload))
		assert.ErrorIs(t, err, errs.MalformedPayload, payload)
	}
	assert.Empty(t, repo.MessageHashes())
	assert.Equal(t, 0, blobs.Len())
}

func TestResultAndAssertionKeysStayApart(t *testing.T) {
	data, err := decode([]byte(`{"testcase":"x","results":{"ok":1},"assertions":{"ok":true}}`))
	require.NoError(t, err)

	keys := data.Keys()
	assert.Len(t, keys, 2)
	assert.Equal(t, domain.Number(1), keys["ok"])
	assert.Equal(t, domain.Bool(true), keys[domain.AssertionKeyPrefix+"ok"])

	_, err = decode([]byte(`{"testcase":"x","results":{"assert:ok":true}}`))
	assert.ErrorIs(t, err, errs.MalformedPayload)
}

func TestDecodeNormalizesNames(t *testing.T) {
	// JSON escapes spell each accent as a combining character
	decomposed := `{"testcase":"cafe\u0301","results":{"re\u0301sume\u0301":{"ne\u0301":"x"}}}`
	data, err := decode([]byte(decomposed))
	require.NoError(t, err)

	assert.Equal(t, "caf\u00e9", data.Testcase)
	v, ok := data.Results["r\u00e9sum\u00e9"]
	require.True(t, ok)
	assert.Equal(t, domain.String("x"), v.Fields["n\u00e9"])
}

type failingBlobs struct {
	*memory.BlobStore
}

func (failingBlobs) PutBlob(ctx context.Context, key string, data []byte) error {
	return errors.New("bucket unavailable")
}

func TestBlobFailureReleasesRecord(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore()
	store := NewMessageStore(repo, failingBlobs{memory.NewBlobStore()}, crypto.NewHasher(), logging.NewNopLogger())

	_, err := store.Store(ctx, []byte(loginPayload))
	require.Error(t, err)
	assert.Empty(t, repo.MessageHashes())
}
