//go:build integration

package integration

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/sightline/internal/browser"
	"github.com/thruflo/sightline/internal/testutil"
)

func TestChrome_DrivesLoginForm(t *testing.T) {
	testutil.RequireChrome(t)
	site := newSite(t)

	ctx, cancel := testutil.BrowserContext(t)
	defer cancel()

	session, err := browser.Launch(ctx, browser.Config{
		Headless: true,
		Width:    800,
		Height:   600,
		Timeout:  30 * time.Second,
	})
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Navigate(ctx, site.URL))

	shot, err := session.Screenshot(ctx)
	require.NoError(t, err)
	data, err := shot.Decode()
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())

	// Username input sits near the top-left of the form.
	require.NoError(t, session.Click(ctx, 150, 125, "left"))
	require.NoError(t, session.Type(ctx, "demo"))
	require.NoError(t, session.Keypress(ctx, []string{"ENTER"}))
	require.NoError(t, session.Wait(ctx, 200*time.Millisecond))

	current, err := session.CurrentURL(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(current, "#dashboard"), "url after submit: %s", current)

	w, h := session.Dimensions()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestChrome_CloseIsIdempotent(t *testing.T) {
	testutil.RequireChrome(t)

	ctx, cancel := testutil.BrowserContext(t)
	defer cancel()

	session, err := browser.Launch(ctx, browser.Config{Headless: true, Width: 640, Height: 480})
	require.NoError(t, err)

	assert.NoError(t, session.Close())
	assert.NoError(t, session.Close())
}
