package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/thruflo/sightline/internal/logging"
)

// Config configures a Chrome session.
type Config struct {
	// ExecPath overrides the Chrome binary. Empty searches the usual
	// install locations.
	ExecPath  string
	Headless  bool
	Width     int
	Height    int
	UserAgent string
	Timeout   time.Duration
}

// Chrome is a Session backed by a local Chrome driven over the DevTools
// protocol.
type Chrome struct {
	cfg           Config
	ctx           context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	closeOnce     sync.Once
	closeErr      error
	log           *logging.Logger
}

// ChromeLauncher launches Chrome sessions with a fixed Config.
type ChromeLauncher struct {
	Config Config
}

func (l ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	return Launch(ctx, l.Config)
}

// Launch starts Chrome and sizes the viewport. The returned session must be
// closed by the caller.
func Launch(ctx context.Context, cfg Config) (*Chrome, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(cfg.Width, cfg.Height),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	// The browser outlives any single caller context; only Close ends it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	c := &Chrome{
		cfg:           cfg,
		ctx:           browserCtx,
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		log:           logging.With("component", "browser"),
	}

	if err := c.start(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	c.log.Debug("browser started", "headless", cfg.Headless, "width", cfg.Width, "height", cfg.Height)
	return c, nil
}

// start allocates the browser. The first Run binds the Chrome process and the
// tab's event loop to the context it is given, so it runs on c.ctx itself and
// startup is bounded by cancelling the whole session instead.
func (c *Chrome) start(ctx context.Context) error {
	timer := time.AfterFunc(c.cfg.Timeout, c.browserCancel)
	stop := context.AfterFunc(ctx, c.browserCancel)

	err := chromedp.Run(c.ctx, emulation.SetDeviceMetricsOverride(int64(c.cfg.Width), int64(c.cfg.Height), 1, false))

	timedOut := !timer.Stop()
	if !stop() {
		return ctx.Err()
	}
	if timedOut {
		return fmt.Errorf("browser did not start within %s", c.cfg.Timeout)
	}
	return err
}

// run executes actions against the browser tab, bounded by the per-operation
// timeout and by ctx.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(c.ctx, c.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body")); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) Screenshot(ctx context.Context) (DataURL, error) {
	var buf []byte
	if err := c.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return PNG(buf), nil
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := c.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

func (c *Chrome) Click(ctx context.Context, x, y int, button string) error {
	var opt chromedp.MouseOption = chromedp.ButtonLeft
	switch strings.ToLower(button) {
	case "right":
		opt = chromedp.ButtonRight
	case "middle", "wheel":
		opt = chromedp.ButtonMiddle
	}
	if err := c.run(ctx, chromedp.MouseClickXY(float64(x), float64(y), opt)); err != nil {
		return fmt.Errorf("failed to click at (%d,%d): %w", x, y, err)
	}
	return nil
}

func (c *Chrome) DoubleClick(ctx context.Context, x, y int) error {
	if err := c.run(ctx, chromedp.MouseClickXY(float64(x), float64(y), chromedp.ClickCount(2))); err != nil {
		return fmt.Errorf("failed to double click at (%d,%d): %w", x, y, err)
	}
	return nil
}

func (c *Chrome) Scroll(ctx context.Context, x, y, deltaX, deltaY int) error {
	wheel := chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, float64(x), float64(y)).
			WithDeltaX(float64(deltaX)).
			WithDeltaY(float64(deltaY)).
			Do(ctx)
	})
	if err := c.run(ctx, wheel); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

func (c *Chrome) Type(ctx context.Context, text string) error {
	if err := c.run(ctx, chromedp.KeyEvent(text)); err != nil {
		return fmt.Errorf("failed to type: %w", err)
	}
	return nil
}

func (c *Chrome) Keypress(ctx context.Context, keys []string) error {
	var mods []input.Modifier
	var pressed []string
	for _, k := range keys {
		if mod, ok := modifierKeys[strings.ToUpper(k)]; ok {
			mods = append(mods, mod)
			continue
		}
		pressed = append(pressed, translateKey(k))
	}
	if len(pressed) == 0 {
		return nil
	}

	actions := make([]chromedp.Action, 0, len(pressed))
	for _, k := range pressed {
		actions = append(actions, chromedp.KeyEvent(k, chromedp.KeyModifiers(mods...)))
	}
	if err := c.run(ctx, actions...); err != nil {
		return fmt.Errorf("failed to press %s: %w", strings.Join(keys, "+"), err)
	}
	return nil
}

func (c *Chrome) Move(ctx context.Context, x, y int) error {
	move := chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, float64(x), float64(y)).Do(ctx)
	})
	if err := c.run(ctx, move); err != nil {
		return fmt.Errorf("failed to move mouse: %w", err)
	}
	return nil
}

func (c *Chrome) Drag(ctx context.Context, path []Point) error {
	if len(path) < 2 {
		return fmt.Errorf("drag path needs at least two points, got %d", len(path))
	}
	drag := chromedp.ActionFunc(func(ctx context.Context) error {
		start, end := path[0], path[len(path)-1]
		if err := input.DispatchMouseEvent(input.MousePressed, float64(start.X), float64(start.Y)).
			WithButton(input.Left).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		for _, p := range path[1:] {
			if err := input.DispatchMouseEvent(input.MouseMoved, float64(p.X), float64(p.Y)).
				WithButton(input.Left).Do(ctx); err != nil {
				return err
			}
		}
		return input.DispatchMouseEvent(input.MouseReleased, float64(end.X), float64(end.Y)).
			WithButton(input.Left).WithClickCount(1).Do(ctx)
	})
	if err := c.run(ctx, drag); err != nil {
		return fmt.Errorf("failed to drag: %w", err)
	}
	return nil
}

func (c *Chrome) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Chrome) Dimensions() (int, int) {
	return c.cfg.Width, c.cfg.Height
}

// Close shuts the browser down. Subsequent calls return the first result.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = chromedp.Cancel(c.ctx)
		c.browserCancel()
		c.allocCancel()
		c.log.Debug("browser closed")
	})
	return c.closeErr
}

var modifierKeys = map[string]input.Modifier{
	"CTRL":    input.ModifierCtrl,
	"CONTROL": input.ModifierCtrl,
	"ALT":     input.ModifierAlt,
	"OPTION":  input.ModifierAlt,
	"SHIFT":   input.ModifierShift,
	"META":    input.ModifierMeta,
	"CMD":     input.ModifierMeta,
	"SUPER":   input.ModifierMeta,
}

var namedKeys = map[string]string{
	"ENTER":      kb.Enter,
	"RETURN":     kb.Enter,
	"TAB":        kb.Tab,
	"ESC":        kb.Escape,
	"ESCAPE":     kb.Escape,
	"BACKSPACE":  kb.Backspace,
	"DELETE":     kb.Delete,
	"SPACE":      " ",
	"ARROWUP":    kb.ArrowUp,
	"UP":         kb.ArrowUp,
	"ARROWDOWN":  kb.ArrowDown,
	"DOWN":       kb.ArrowDown,
	"ARROWLEFT":  kb.ArrowLeft,
	"LEFT":       kb.ArrowLeft,
	"ARROWRIGHT": kb.ArrowRight,
	"RIGHT":      kb.ArrowRight,
	"HOME":       kb.Home,
	"END":        kb.End,
	"PAGEUP":     kb.PageUp,
	"PAGEDOWN":   kb.PageDown,
}

// translateKey maps agent key names onto the key strings chromedp sends.
// Single characters pass through lower-cased so modifiers apply to the
// unshifted key.
func translateKey(key string) string {
	if k, ok := namedKeys[strings.ToUpper(key)]; ok {
		return k
	}
	if len([]rune(key)) == 1 {
		return strings.ToLower(key)
	}
	return key
}
