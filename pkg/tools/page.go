package tools

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/atypis/runops/pkg/browser"
)

// Per-action timeouts owned by the dispatcher.
const (
	clickTimeout        = 10 * time.Second
	selectorWaitTimeout = 30 * time.Second
	typeTimeout         = 10 * time.Second
)

// NavigateHandler navigates the active tab.
type NavigateHandler struct {
	Driver browser.Driver
}

func (h *NavigateHandler) Name() string { return "navigate" }

func (h *NavigateHandler) Description() string {
	return "Navigate the active browser tab to a URL."
}

func (h *NavigateHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"url"},
	}
}

func (h *NavigateHandler) Execute(ctx context.Context, args map[string]any) Result {
	url, _ := args["url"].(string)

	if err := h.Driver.Navigate(ctx, url); err != nil {
		return Failure("navigation failed: %s", err)
	}

	return OK(map[string]any{"url": url, "activeTab": h.Driver.ActiveTab()})
}

// ClickHandler clicks an element on the active tab.
type ClickHandler struct {
	Driver browser.Driver
}

func (h *ClickHandler) Name() string { return "click" }

func (h *ClickHandler) Description() string {
	return "Click the element matching a CSS selector on the active tab."
}

func (h *ClickHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"selector": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"selector"},
	}
}

func (h *ClickHandler) Execute(ctx context.Context, args map[string]any) Result {
	selector, _ := args["selector"].(string)

	if err := h.Driver.Click(ctx, selector, clickTimeout); err != nil {
		return Failure("click failed: %s", err)
	}

	return OK(map[string]any{"selector": selector})
}

// TypeHandler fills text into an element on the active tab.
type TypeHandler struct {
	Driver browser.Driver
}

func (h *TypeHandler) Name() string { return "type" }

func (h *TypeHandler) Description() string {
	return "Type text into the element matching a CSS selector on the active tab."
}

func (h *TypeHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"selector": map[string]any{"type": "string", "minLength": 1},
			"text":     map[string]any{"type": "string"},
		},
		"required": []any{"selector", "text"},
	}
}

func (h *TypeHandler) Execute(ctx context.Context, args map[string]any) Result {
	selector, _ := args["selector"].(string)
	text, _ := args["text"].(string)

	if err := h.Driver.Type(ctx, selector, text, typeTimeout); err != nil {
		return Failure("type failed: %s", err)
	}

	return OK(map[string]any{"selector": selector})
}

// WaitHandler waits for a selector to appear, or for a caller-specified
// number of milliseconds when no selector is given.
type WaitHandler struct {
	Driver browser.Driver
}

func (h *WaitHandler) Name() string { return "waitFor" }

func (h *WaitHandler) Description() string {
	return "Wait for a CSS selector to appear on the active tab, or sleep for timeMs milliseconds."
}

func (h *WaitHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"selector": map[string]any{"type": "string"},
			"timeMs":   map[string]any{"type": "number", "minimum": 0},
		},
	}
}

func (h *WaitHandler) Execute(ctx context.Context, args map[string]any) Result {
	selector, _ := args["selector"].(string)

	if selector != "" {
		if err := h.Driver.WaitForSelector(ctx, selector, selectorWaitTimeout); err != nil {
			return Failure("wait failed: %s", err)
		}

		return OK(map[string]any{"selector": selector})
	}

	timeMs, ok := args["timeMs"].(float64)
	if !ok {
		return Failure("waitFor requires either selector or timeMs")
	}

	select {
	case <-time.After(time.Duration(timeMs) * time.Millisecond):
	case <-ctx.Done():
		return Failure("wait interrupted: %s", ctx.Err())
	}

	return OK(map[string]any{"waitedMs": timeMs})
}

// ScreenshotHandler captures the active tab.
type ScreenshotHandler struct {
	Driver browser.Driver
}

func (h *ScreenshotHandler) Name() string { return "screenshot" }

func (h *ScreenshotHandler) Description() string {
	return "Capture a screenshot of the active tab, returned base64-encoded."
}

func (h *ScreenshotHandler) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (h *ScreenshotHandler) Execute(ctx context.Context, _ map[string]any) Result {
	data, err := h.Driver.Screenshot(ctx)
	if err != nil {
		return Failure("screenshot failed: %s", err)
	}

	return OK(map[string]any{
		"screenshot": base64.StdEncoding.EncodeToString(data),
		"bytes":      len(data),
	})
}
