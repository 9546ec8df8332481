package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/atypis/runops/pkg/browser"
)

// OpenTabHandler opens a new named tab and makes it active.
type OpenTabHandler struct {
	Driver browser.Driver
}

func (h *OpenTabHandler) Name() string { return "openTab" }

func (h *OpenTabHandler) Description() string {
	return "Open a new named browser tab, optionally navigating it to a URL, and make it the active tab."
}

func (h *OpenTabHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "minLength": 1},
			"url":  map[string]any{"type": "string"},
		},
		"required": []any{"name"},
	}
}

func (h *OpenTabHandler) Execute(ctx context.Context, args map[string]any) Result {
	name, _ := args["name"].(string)
	url, _ := args["url"].(string)

	if err := h.Driver.OpenTab(ctx, name, url); err != nil {
		if errors.Is(err, browser.ErrTabAlreadyExists) {
			return Failure("tab %q already exists, open tabs: %s", name, h.openTabNames(ctx))
		}

		return Failure("failed to open tab %q: %s", name, err)
	}

	return OK(map[string]any{"activeTab": name})
}

func (h *OpenTabHandler) openTabNames(ctx context.Context) string {
	return tabNames(ctx, h.Driver)
}

// CloseTabHandler closes a named tab. The default tab is never closable.
type CloseTabHandler struct {
	Driver browser.Driver
}

func (h *CloseTabHandler) Name() string { return "closeTab" }

func (h *CloseTabHandler) Description() string {
	return "Close a named browser tab. The default tab cannot be closed."
}

func (h *CloseTabHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"name"},
	}
}

func (h *CloseTabHandler) Execute(ctx context.Context, args map[string]any) Result {
	name, _ := args["name"].(string)

	if err := h.Driver.CloseTab(ctx, name); err != nil {
		switch {
		case errors.Is(err, browser.ErrDefaultTabNotClosable):
			return Failure("tab %q is the default tab and cannot be closed", name)
		case errors.Is(err, browser.ErrTabNotFound):
			return Failure("unknown tab %q, open tabs: %s", name, tabNames(ctx, h.Driver))
		default:
			return Failure("failed to close tab %q: %s", name, err)
		}
	}

	return OK(map[string]any{"activeTab": h.Driver.ActiveTab()})
}

// SwitchTabHandler makes a named tab the active one.
type SwitchTabHandler struct {
	Driver browser.Driver
}

func (h *SwitchTabHandler) Name() string { return "switchTab" }

func (h *SwitchTabHandler) Description() string {
	return "Make the named browser tab the active tab for subsequent page operations."
}

func (h *SwitchTabHandler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"name"},
	}
}

func (h *SwitchTabHandler) Execute(ctx context.Context, args map[string]any) Result {
	name, _ := args["name"].(string)

	if err := h.Driver.SwitchTab(ctx, name); err != nil {
		if errors.Is(err, browser.ErrTabNotFound) {
			return Failure("unknown tab %q, open tabs: %s", name, tabNames(ctx, h.Driver))
		}

		return Failure("failed to switch to tab %q: %s", name, err)
	}

	return OK(map[string]any{"activeTab": name})
}

// ListTabsHandler reports all open tabs and the active one.
type ListTabsHandler struct {
	Driver browser.Driver
}

func (h *ListTabsHandler) Name() string { return "listTabs" }

func (h *ListTabsHandler) Description() string {
	return "List all open browser tabs with their current URLs."
}

func (h *ListTabsHandler) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (h *ListTabsHandler) Execute(ctx context.Context, _ map[string]any) Result {
	tabs, err := h.Driver.ListTabs(ctx)
	if err != nil {
		return Failure("failed to list tabs: %s", err)
	}

	listed := make([]map[string]any, 0, len(tabs))
	for _, tab := range tabs {
		listed = append(listed, map[string]any{"name": tab.Name, "url": tab.URL})
	}

	return OK(map[string]any{
		"tabs":      listed,
		"activeTab": h.Driver.ActiveTab(),
	})
}

// tabNames renders the open tab names for not-found messages.
func tabNames(ctx context.Context, driver browser.Driver) string {
	tabs, err := driver.ListTabs(ctx)
	if err != nil || len(tabs) == 0 {
		return "(none)"
	}

	names := make([]string, 0, len(tabs))
	for _, tab := range tabs {
		names = append(names, tab.Name)
	}

	return strings.Join(names, ", ")
}
