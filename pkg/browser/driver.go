// Package browser defines the browser-automation driver contract and its
// playwright-backed implementation. The driver exposes named logical tabs;
// every page operation acts on the currently active tab.
package browser

import (
	"context"
	"errors"
	"time"
)

// DefaultTab is the tab every driver starts with. It can be switched away
// from but never closed.
const DefaultTab = "main"

var (
	ErrTabNotFound           = errors.New("tab not found")
	ErrTabAlreadyExists      = errors.New("tab already exists")
	ErrDefaultTabNotClosable = errors.New("default tab cannot be closed")
)

// TabInfo describes one open tab.
type TabInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Driver is the browser-automation collaborator contract. Implementations
// return plain errors; normalizing them into tool results is the
// dispatcher's job.
type Driver interface {
	// Tab management. OpenTab makes the new tab active; CloseTab of the
	// active tab falls back to the default tab.
	OpenTab(ctx context.Context, name, url string) error
	CloseTab(ctx context.Context, name string) error
	SwitchTab(ctx context.Context, name string) error
	ActiveTab() string
	ListTabs(ctx context.Context) ([]TabInfo, error)

	// Page operations on the active tab.
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Type(ctx context.Context, selector, text string, timeout time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)

	// Snapshot returns the live browser state (open tabs, active tab,
	// current URLs and titles) for state update events.
	Snapshot(ctx context.Context) (map[string]any, error)

	Close(ctx context.Context) error
}
