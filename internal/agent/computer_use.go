// Package agent talks to the computer-use model. One call to RunFullTurn is
// one turn: the model is queried repeatedly, each requested action is carried
// out on the browser, and the turn ends at the model's final assistant
// message.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/thruflo/sightline/internal/browser"
	"github.com/thruflo/sightline/internal/conversation"
	"github.com/thruflo/sightline/internal/logging"
)

// ErrActionLimit is returned when a turn requests more actions than allowed,
// or keeps the model going for more requests than those actions need.
var ErrActionLimit = errors.New("agent exceeded the action limit for one turn")

// ErrSafetyCheck is returned when a pending safety check is not acknowledged.
var ErrSafetyCheck = errors.New("unacknowledged safety check")

// TurnOptions controls what a turn reports while it runs.
type TurnOptions struct {
	// Debug logs every request and response item.
	Debug bool
	// ShowImages writes each screenshot to the terminal as an inline image.
	ShowImages bool
	// PrintSteps logs actions and assistant messages as they happen.
	PrintSteps bool
}

// Config configures a ComputerUse client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxActions  int
	Environment string

	// AcknowledgeSafetyCheck decides whether a pending safety check may be
	// acknowledged. A nil func rejects all of them.
	AcknowledgeSafetyCheck func(conversation.SafetyCheck) bool
}

// ComputerUse runs turns against the OpenAI Responses API with the
// computer_use_preview tool.
type ComputerUse struct {
	cfg      Config
	client   *http.Client
	actuator browser.Actuator
	images   io.Writer
	log      *logging.Logger
}

// New creates a client acting on actuator.
func New(cfg Config, actuator browser.Actuator) *ComputerUse {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "computer-use-preview"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxActions <= 0 {
		cfg.MaxActions = 50
	}
	if cfg.Environment == "" {
		cfg.Environment = "browser"
	}

	return &ComputerUse{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		actuator: actuator,
		images:   os.Stderr,
		log:      logging.With("component", "agent"),
	}
}

// SetImageOutput redirects inline images written under ShowImages.
func (c *ComputerUse) SetImageOutput(w io.Writer) {
	c.images = w
}

type computerTool struct {
	Type          string `json:"type"`
	DisplayWidth  int    `json:"display_width"`
	DisplayHeight int    `json:"display_height"`
	Environment   string `json:"environment"`
}

type responsesRequest struct {
	Model      string              `json:"model"`
	Input      []conversation.Item `json:"input"`
	Tools      []computerTool      `json:"tools"`
	Truncation string              `json:"truncation,omitempty"`
}

type responsesResponse struct {
	ID     string              `json:"id"`
	Output []conversation.Item `json:"output"`
	Error  *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// RunFullTurn runs one turn and returns every item it produced, including
// computer calls and their outputs, in order. A turn makes at most
// MaxActions+1 model requests.
func (c *ComputerUse) RunFullTurn(ctx context.Context, items []conversation.Item, opts TurnOptions) ([]conversation.Item, error) {
	var produced []conversation.Item
	actions, requests := 0, 0

	for len(produced) == 0 || produced[len(produced)-1].Role != conversation.RoleAssistant {
		if requests > c.cfg.MaxActions {
			return nil, fmt.Errorf("%w: no assistant message after %d requests", ErrActionLimit, requests)
		}
		requests++

		input := make([]conversation.Item, 0, len(items)+len(produced))
		input = append(input, items...)
		input = append(input, produced...)

		if opts.Debug {
			c.log.Debug("agent request", "items", len(input), "types", itemTypes(input))
		}

		resp, err := c.create(ctx, input)
		if err != nil {
			return nil, err
		}
		if len(resp.Output) == 0 {
			return nil, fmt.Errorf("no output from model (response %s)", resp.ID)
		}
		if opts.Debug {
			c.log.Debug("agent response", "id", resp.ID, "types", itemTypes(resp.Output))
		}

		produced = append(produced, resp.Output...)
		for _, item := range resp.Output {
			if item.Type == conversation.TypeComputerCall {
				actions++
				if actions > c.cfg.MaxActions {
					return nil, fmt.Errorf("%w (%d)", ErrActionLimit, c.cfg.MaxActions)
				}
			}
			out, err := c.handle(ctx, item, opts)
			if err != nil {
				return nil, err
			}
			produced = append(produced, out...)
		}
	}

	return produced, nil
}

func (c *ComputerUse) create(ctx context.Context, input []conversation.Item) (*responsesResponse, error) {
	width, height := c.actuator.Dimensions()
	body, err := json.Marshal(responsesRequest{
		Model: c.cfg.Model,
		Input: input,
		Tools: []computerTool{{
			Type:          "computer_use_preview",
			DisplayWidth:  width,
			DisplayHeight: height,
			Environment:   c.cfg.Environment,
		}},
		Truncation: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out responsesResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("openai error (%s): %s", out.Error.Code, out.Error.Message)
	}
	return &out, nil
}

// handle reacts to one output item and returns the items to send back.
func (c *ComputerUse) handle(ctx context.Context, item conversation.Item, opts TurnOptions) ([]conversation.Item, error) {
	switch item.Type {
	case conversation.TypeMessage:
		if opts.PrintSteps {
			c.log.Info("agent message", "text", item.Text())
		}
		return nil, nil

	case conversation.TypeComputerCall:
		if item.Action == nil {
			return nil, fmt.Errorf("computer call %s has no action", item.CallID)
		}
		// Every pending check must be acknowledged before the action runs.
		for _, check := range item.PendingSafetyChecks {
			if c.cfg.AcknowledgeSafetyCheck == nil || !c.cfg.AcknowledgeSafetyCheck(check) {
				return nil, fmt.Errorf("%w: %s: %s", ErrSafetyCheck, check.Code, check.Message)
			}
			c.log.Warn("safety check acknowledged", "code", check.Code, "message", check.Message)
		}

		if opts.PrintSteps {
			c.log.Info("agent action", "action", describeAction(item.Action))
		}
		if err := c.perform(ctx, item.Action); err != nil {
			return nil, err
		}

		shot, err := c.actuator.Screenshot(ctx)
		if err != nil {
			return nil, err
		}
		if opts.ShowImages {
			writeInlineImage(c.images, shot)
		}

		output := &conversation.CallOutput{Type: "input_image", ImageURL: shot.String()}
		if c.cfg.Environment == "browser" {
			url, err := c.actuator.CurrentURL(ctx)
			if err != nil {
				return nil, err
			}
			output.CurrentURL = url
		}

		return []conversation.Item{{
			Type:                     conversation.TypeComputerCallOutput,
			CallID:                   item.CallID,
			AcknowledgedSafetyChecks: item.PendingSafetyChecks,
			Output:                   output,
		}}, nil

	default:
		return nil, nil
	}
}

// perform dispatches a model action to the actuator.
func (c *ComputerUse) perform(ctx context.Context, a *conversation.Action) error {
	switch a.Type {
	case "click":
		return c.actuator.Click(ctx, a.X, a.Y, a.Button)
	case "double_click":
		return c.actuator.DoubleClick(ctx, a.X, a.Y)
	case "scroll":
		return c.actuator.Scroll(ctx, a.X, a.Y, a.ScrollX, a.ScrollY)
	case "type":
		return c.actuator.Type(ctx, a.Text)
	case "keypress":
		return c.actuator.Keypress(ctx, a.Keys)
	case "move":
		return c.actuator.Move(ctx, a.X, a.Y)
	case "drag":
		path := make([]browser.Point, len(a.Path))
		for i, p := range a.Path {
			path[i] = browser.Point{X: p.X, Y: p.Y}
		}
		return c.actuator.Drag(ctx, path)
	case "wait":
		return c.actuator.Wait(ctx, time.Second)
	case "screenshot":
		return nil
	default:
		return fmt.Errorf("unsupported computer action: %q", a.Type)
	}
}

func describeAction(a *conversation.Action) string {
	switch a.Type {
	case "click", "double_click", "move":
		return fmt.Sprintf("%s(%d,%d)", a.Type, a.X, a.Y)
	case "scroll":
		return fmt.Sprintf("scroll(%d,%d by %d,%d)", a.X, a.Y, a.ScrollX, a.ScrollY)
	case "type":
		return fmt.Sprintf("type(%q)", a.Text)
	case "keypress":
		return fmt.Sprintf("keypress(%s)", strings.Join(a.Keys, "+"))
	case "drag":
		return fmt.Sprintf("drag(%d points)", len(a.Path))
	default:
		return a.Type
	}
}

func itemTypes(items []conversation.Item) string {
	types := make([]string, len(items))
	for i, it := range items {
		switch {
		case it.Type != "":
			types[i] = it.Type
		case it.Role != "":
			types[i] = string(it.Role)
		default:
			types[i] = "?"
		}
	}
	return strings.Join(types, ",")
}
