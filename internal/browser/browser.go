// Package browser drives the page under test. The agent acts on it through
// the Actuator interface; Chrome is the chromedp-backed implementation and
// Mock is a recording fake for tests.
package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// Point is a viewport coordinate in CSS pixels.
type Point struct {
	X int
	Y int
}

// Actuator performs the perception and action primitives the agent needs.
type Actuator interface {
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) (DataURL, error)
	CurrentURL(ctx context.Context) (string, error)
	Click(ctx context.Context, x, y int, button string) error
	DoubleClick(ctx context.Context, x, y int) error
	Scroll(ctx context.Context, x, y, deltaX, deltaY int) error
	Type(ctx context.Context, text string) error
	Keypress(ctx context.Context, keys []string) error
	Move(ctx context.Context, x, y int) error
	Drag(ctx context.Context, path []Point) error
	Wait(ctx context.Context, d time.Duration) error
	Dimensions() (width, height int)
}

// Session is an Actuator that owns a browser process until Close.
type Session interface {
	Actuator
	Close() error
}

// Launcher acquires a new Session.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Session, error)

func (f LauncherFunc) Launch(ctx context.Context) (Session, error) { return f(ctx) }

// ErrNotEmbeddedImage is returned by DataURL.Decode for anything that is not
// a base64 image data URL.
var ErrNotEmbeddedImage = errors.New("screenshot is not an embedded image")

// DataURL is a self-describing embedded image, e.g. "data:image/png;base64,...".
type DataURL string

// PNG wraps raw PNG bytes as a DataURL.
func PNG(data []byte) DataURL {
	return DataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString(data))
}

// Decode returns the raw image bytes.
func (d DataURL) Decode() ([]byte, error) {
	s := string(d)
	if !strings.HasPrefix(s, "data:image/") {
		return nil, ErrNotEmbeddedImage
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, ErrNotEmbeddedImage
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Join(ErrNotEmbeddedImage, err)
	}
	return data, nil
}

// MediaType returns the image media type, e.g. "image/png".
func (d DataURL) MediaType() string {
	header, _, ok := strings.Cut(string(d), ",")
	if !ok {
		return ""
	}
	header = strings.TrimPrefix(header, "data:")
	mediaType, _, _ := strings.Cut(header, ";")
	return mediaType
}

func (d DataURL) String() string {
	return string(d)
}
