package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataURLDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      DataURL
		want    []byte
		wantErr bool
	}{
		{"png round trip", PNG([]byte("img")), []byte("img"), false},
		{"jpeg", DataURL("data:image/jpeg;base64,aGk="), []byte("hi"), false},
		{"raw base64", DataURL("aGk="), nil, true},
		{"not an image", DataURL("data:text/plain;base64,aGk="), nil, true},
		{"not base64 encoded", DataURL("data:image/svg+xml,<svg/>"), nil, true},
		{"corrupt payload", DataURL("data:image/png;base64,***"), nil, true},
		{"empty", DataURL(""), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Decode()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNotEmbeddedImage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDataURLMediaType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/png", PNG(MockImage).MediaType())
	assert.Equal(t, "", DataURL("garbage").MediaType())
}

func TestTranslateKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"ENTER", "\r"},
		{"enter", "\r"},
		{"Tab", "\t"},
		{"SPACE", " "},
		{"A", "a"},
		{"z", "z"},
		{"F5", "F5"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, translateKey(tt.in))
		})
	}
}

func TestMockRecordsCalls(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMock()

	require.NoError(t, m.Navigate(ctx, "https://example.test"))
	shot, err := m.Screenshot(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Click(ctx, 10, 20, "left"))
	require.NoError(t, m.Keypress(ctx, []string{"CTRL", "A"}))
	require.NoError(t, m.Drag(ctx, []Point{{1, 1}, {5, 5}}))
	require.NoError(t, m.Wait(ctx, time.Second))

	data, err := shot.Decode()
	require.NoError(t, err)
	assert.Equal(t, MockImage, data)

	url, err := m.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", url)

	assert.Equal(t, []string{"Navigate", "Screenshot", "Click", "Keypress", "Drag", "Wait", "CurrentURL"}, m.Methods())
	assert.Equal(t, MockCall{Method: "Click", Args: "10 20 left"}, m.Calls()[2])
	assert.Equal(t, "CTRL+A", m.Calls()[3].Args)
}

func TestMockOverrides(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMock()
	m.ScreenshotFunc = func(ctx context.Context, n int) (DataURL, error) {
		if n > 1 {
			return "", errors.New("tab crashed")
		}
		return PNG([]byte("first")), nil
	}
	m.ActionErr = errors.New("detached")

	_, err := m.Screenshot(ctx)
	require.NoError(t, err)
	_, err = m.Screenshot(ctx)
	assert.EqualError(t, err, "tab crashed")
	assert.EqualError(t, m.Type(ctx, "x"), "detached")

	require.NoError(t, m.Close())
	assert.Equal(t, 1, m.CloseCount())
}

func TestMockLauncher(t *testing.T) {
	t.Parallel()

	m := NewMock()
	s, err := m.Launcher().Launch(context.Background())
	require.NoError(t, err)
	assert.Same(t, m, s)

	w, h := s.Dimensions()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)
}
