package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/sightline/internal/results"
)

// fakeProvider stores uploads in memory.
type fakeProvider struct {
	mu      sync.Mutex
	prefix  string
	objects map[string][]byte
	failOn  string
	closed  bool
}

func newFakeProvider(prefix string) *fakeProvider {
	return &fakeProvider{prefix: prefix, objects: map[string][]byte{}}
}

func (f *fakeProvider) Upload(ctx context.Context, key, localPath string) (Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.HasSuffix(key, f.failOn) {
		return Object{}, errors.New("access denied")
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return Object{}, err
	}
	remote := ResolveKey(f.prefix, key)
	f.objects[remote] = data
	return Object{Key: remote, Size: int64(len(data))}, nil
}

func (f *fakeProvider) List(ctx context.Context, prefix string) ([]Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Object
	for k, v := range f.objects {
		if strings.HasPrefix(k, ResolveKey(f.prefix, prefix)) {
			out = append(out, Object{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (f *fakeProvider) Close() error {
	f.closed = true
	return nil
}

func writeRunDir(t *testing.T) *results.TestRun {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Login_Flow")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for name, body := range map[string]string{
		"results.json": `{"status":"Pass"}`,
		"report.html":  "<html></html>",
		"step_2.png":   "png",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return &results.TestRun{Name: "Login Flow", RunID: "abc-123", Dir: dir}
}

func TestPublisher_Record(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider("ci/reports")
	pub := NewPublisher(provider)
	assert.Equal(t, "publish", pub.Name())

	run := writeRunDir(t)
	require.NoError(t, pub.Record(context.Background(), run))

	assert.Len(t, provider.objects, 3)
	assert.Equal(t, []byte("<html></html>"), provider.objects["ci/reports/Login_Flow/abc-123/report.html"])
	assert.Contains(t, provider.objects, "ci/reports/Login_Flow/abc-123/step_2.png")

	listed, err := provider.List(context.Background(), RunPrefix(run))
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	require.NoError(t, pub.Close())
	assert.True(t, provider.closed)
}

func TestPublisher_PartialFailure(t *testing.T) {
	t.Parallel()

	provider := newFakeProvider("")
	provider.failOn = "report.html"
	run := writeRunDir(t)

	err := NewPublisher(provider).Record(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3")
	assert.Contains(t, err.Error(), "access denied")
	assert.Len(t, provider.objects, 2)
}

func TestPublisher_MissingDir(t *testing.T) {
	t.Parallel()

	run := &results.TestRun{Dir: filepath.Join(t.TempDir(), "gone")}
	assert.Error(t, NewPublisher(newFakeProvider("")).Record(context.Background(), run))
}

func TestNormalizeProvider(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"AWS":    "s3",
		" minio": "s3",
		"gcp":    "gcs",
		"blob":   "azure",
		"Azure":  "azure",
		"ftp":    "ftp",
		"":       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeProvider(in), in)
	}
}

func TestResolveKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix, key, want string
	}{
		{"", "a/b", "a/b"},
		{"/base/", "/file", "base/file"},
		{"base", "", "base"},
		{"base/", "x/y.png", "base/x/y.png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveKey(tt.prefix, tt.key))
	}
}

func TestNewProvider_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, err := NewProvider(ctx, Config{Bucket: "b"})
	assert.ErrorContains(t, err, "provider is required")

	_, err = NewProvider(ctx, Config{Provider: "s3"})
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewProvider(ctx, Config{Provider: "ftp", Bucket: "b"})
	assert.ErrorContains(t, err, "unsupported publish provider")

	_, err = NewProvider(ctx, Config{Provider: "azure", Bucket: "b"})
	assert.ErrorContains(t, err, "azure endpoint or account name is required")
}

func TestAzureContainerURL(t *testing.T) {
	t.Parallel()

	url, err := azureContainerURL(Config{AzureAccount: "acct", Bucket: "reports"})
	require.NoError(t, err)
	assert.Equal(t, "https://acct.blob.core.windows.net/reports", url)

	url, err = azureContainerURL(Config{AzureEndpoint: "http://127.0.0.1:10000/devstore/", Bucket: "reports", AzureSASToken: "?sv=1&sig=x"})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:10000/devstore/reports?sv=1&sig=x", url)
}

func TestContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/png", contentType("step_1.png"))
	assert.Equal(t, "application/json", contentType("results.json"))
	assert.True(t, strings.HasPrefix(contentType("report.html"), "text/html"))
	assert.True(t, strings.HasPrefix(contentType("junit.xml"), "application/xml") || strings.HasPrefix(contentType("junit.xml"), "text/xml"))
	assert.Equal(t, "text/plain; version=0.0.4", contentType("metrics.prom"))
	assert.Equal(t, "application/octet-stream", contentType("blob.unknownext"))
}
