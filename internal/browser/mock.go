package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockCall records one call made on a Mock.
type MockCall struct {
	Method string
	Args   string
}

// Mock implements Session without a browser. Screenshots return a fixed
// image unless ScreenshotFunc is set; every call is recorded.
// It is exported for use by tests in other packages.
type Mock struct {
	mu sync.Mutex

	Width  int
	Height int

	// Overrides. A nil func means the call succeeds.
	NavigateFunc   func(ctx context.Context, url string) error
	ScreenshotFunc func(ctx context.Context, n int) (DataURL, error)
	ActionErr      error
	CloseErr       error

	url         string
	screenshots int
	closed      int
	calls       []MockCall
}

// MockImage is the 1x1 PNG returned by Mock.Screenshot by default.
var MockImage = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0xcf, 0xc0, 0xf0,
	0x1f, 0x00, 0x05, 0x00, 0x01, 0xff, 0x89, 0x99, 0x3d, 0x1d, 0x00, 0x00,
	0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// NewMock creates a Mock with a 1024x768 viewport.
func NewMock() *Mock {
	return &Mock{Width: 1024, Height: 768}
}

// Launcher returns a Launcher that always hands out m.
func (m *Mock) Launcher() Launcher {
	return LauncherFunc(func(ctx context.Context) (Session, error) { return m, nil })
}

func (m *Mock) record(method string, args ...any) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	m.calls = append(m.calls, MockCall{Method: method, Args: strings.Join(parts, " ")})
}

func (m *Mock) Navigate(ctx context.Context, url string) error {
	m.mu.Lock()
	m.record("Navigate", url)
	fn := m.NavigateFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, url); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.url = url
	m.mu.Unlock()
	return nil
}

func (m *Mock) Screenshot(ctx context.Context) (DataURL, error) {
	m.mu.Lock()
	m.screenshots++
	n := m.screenshots
	m.record("Screenshot")
	fn := m.ScreenshotFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, n)
	}
	return PNG(MockImage), nil
}

func (m *Mock) CurrentURL(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CurrentURL")
	return m.url, nil
}

func (m *Mock) action(method string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(method, args...)
	return m.ActionErr
}

func (m *Mock) Click(ctx context.Context, x, y int, button string) error {
	return m.action("Click", x, y, button)
}

func (m *Mock) DoubleClick(ctx context.Context, x, y int) error {
	return m.action("DoubleClick", x, y)
}

func (m *Mock) Scroll(ctx context.Context, x, y, deltaX, deltaY int) error {
	return m.action("Scroll", x, y, deltaX, deltaY)
}

func (m *Mock) Type(ctx context.Context, text string) error {
	return m.action("Type", text)
}

func (m *Mock) Keypress(ctx context.Context, keys []string) error {
	return m.action("Keypress", strings.Join(keys, "+"))
}

func (m *Mock) Move(ctx context.Context, x, y int) error {
	return m.action("Move", x, y)
}

func (m *Mock) Drag(ctx context.Context, path []Point) error {
	return m.action("Drag", len(path))
}

func (m *Mock) Wait(ctx context.Context, d time.Duration) error {
	return m.action("Wait", d)
}

func (m *Mock) Dimensions() (int, int) {
	return m.Width, m.Height
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	m.record("Close")
	return m.CloseErr
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Methods returns the recorded method names in order.
func (m *Mock) Methods() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Method
	}
	return out
}

// CloseCount returns how many times Close was called.
func (m *Mock) CloseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
