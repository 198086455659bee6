package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loopmix/internal/pkg/errors"
	"loopmix/internal/ports"
)

type fakeProvider struct {
	putErr error
	// assignKey simulates providers that hand back their own identifier,
	// the way gdrive returns a fileId instead of the requested name.
	assignKey string
	puts      []ports.PutObjectInput
	payload   []byte
}

func (f *fakeProvider) Provider() string { return "fake" }

func (f *fakeProvider) PutObject(ctx context.Context, in ports.PutObjectInput) (ports.PutObjectOutput, error) {
	if f.putErr != nil {
		return ports.PutObjectOutput{}, f.putErr
	}
	data, err := io.ReadAll(in.Reader)
	if err != nil {
		return ports.PutObjectOutput{}, err
	}
	f.payload = data
	f.puts = append(f.puts, in)
	key := in.ObjectKey
	if f.assignKey != "" {
		key = f.assignKey
	}
	return ports.PutObjectOutput{ObjectKey: key, Size: int64(len(data))}, nil
}

func (f *fakeProvider) GetObject(ctx context.Context, key string) (io.ReadCloser, string, int64, error) {
	return nil, "", 0, fmt.Errorf("not implemented")
}

func (f *fakeProvider) DeleteObject(ctx context.Context, key string) error { return nil }

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "final.mp4")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, "renders/chan-1/42.mp4", Key("chan-1", 42))
	// Re-publishing the same job always targets the same destination.
	assert.Equal(t, Key("chan-1", 42), Key("chan-1", 42))
	assert.NotEqual(t, Key("chan-1", 42), Key("chan-2", 42))
	assert.NotEqual(t, Key("chan-1", 42), Key("chan-1", 43))
}

func TestPublishUploadsAndRemovesLocal(t *testing.T) {
	fp := &fakeProvider{}
	p := New(fp, nil)
	path := writeArtifact(t, "rendered bytes")

	key, size, err := p.Publish(context.Background(), path, "chan-9", 7)
	require.NoError(t, err)
	assert.Equal(t, "renders/chan-9/7.mp4", key)
	assert.Equal(t, int64(len("rendered bytes")), size)

	require.Len(t, fp.puts, 1)
	assert.Equal(t, "video/mp4", fp.puts[0].ContentType)
	assert.Equal(t, []byte("rendered bytes"), fp.payload)

	// Local file removed after verified success.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPublishReturnsProviderKey(t *testing.T) {
	fp := &fakeProvider{assignKey: "drive-file-id-ABC123"}
	p := New(fp, nil)
	path := writeArtifact(t, "rendered bytes")

	key, _, err := p.Publish(context.Background(), path, "chan", 7)
	require.NoError(t, err)

	// What gets persisted must be the key later reads can use, which for a
	// provider like gdrive is its assigned id, not the requested name.
	assert.Equal(t, "drive-file-id-ABC123", key)
	require.Len(t, fp.puts, 1)
	assert.Equal(t, "renders/chan/7.mp4", fp.puts[0].ObjectKey)
}

func TestPublishFailureRetainsLocal(t *testing.T) {
	fp := &fakeProvider{putErr: fmt.Errorf("connection reset")}
	p := New(fp, nil)
	path := writeArtifact(t, "rendered bytes")

	_, _, err := p.Publish(context.Background(), path, "chan-9", 7)
	require.Error(t, err)
	assert.Equal(t, errors.CodePublish, errors.GetCode(err))

	// Failed upload must not discard the rendered bytes.
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestPublishMissingArtifact(t *testing.T) {
	p := New(&fakeProvider{}, nil)

	_, _, err := p.Publish(context.Background(), "/nonexistent/final.mp4", "c", 1)
	require.Error(t, err)
	assert.Equal(t, errors.CodePublish, errors.GetCode(err))
}
