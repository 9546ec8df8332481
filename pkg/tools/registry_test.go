package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atypis/runops/pkg/browser"
)

// fakeDriver implements browser.Driver in memory for dispatcher tests.
type fakeDriver struct {
	tabs    []string
	active  string
	failOps map[string]error
	visited []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		tabs:    []string{browser.DefaultTab},
		active:  browser.DefaultTab,
		failOps: make(map[string]error),
	}
}

func (d *fakeDriver) hasTab(name string) bool {
	for _, tab := range d.tabs {
		if tab == name {
			return true
		}
	}

	return false
}

func (d *fakeDriver) OpenTab(_ context.Context, name, _ string) error {
	if d.hasTab(name) {
		return fmt.Errorf("tab %q: %w", name, browser.ErrTabAlreadyExists)
	}

	d.tabs = append(d.tabs, name)
	d.active = name

	return nil
}

func (d *fakeDriver) CloseTab(_ context.Context, name string) error {
	if name == browser.DefaultTab {
		return browser.ErrDefaultTabNotClosable
	}

	if !d.hasTab(name) {
		return fmt.Errorf("tab %q: %w", name, browser.ErrTabNotFound)
	}

	for i, tab := range d.tabs {
		if tab == name {
			d.tabs = append(d.tabs[:i], d.tabs[i+1:]...)

			break
		}
	}

	if d.active == name {
		d.active = browser.DefaultTab
	}

	return nil
}

func (d *fakeDriver) SwitchTab(_ context.Context, name string) error {
	if !d.hasTab(name) {
		return fmt.Errorf("tab %q: %w", name, browser.ErrTabNotFound)
	}

	d.active = name

	return nil
}

func (d *fakeDriver) ActiveTab() string { return d.active }

func (d *fakeDriver) ListTabs(_ context.Context) ([]browser.TabInfo, error) {
	tabs := make([]browser.TabInfo, 0, len(d.tabs))
	for _, name := range d.tabs {
		tabs = append(tabs, browser.TabInfo{Name: name})
	}

	return tabs, nil
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	if err := d.failOps["navigate"]; err != nil {
		return err
	}

	d.visited = append(d.visited, url)

	return nil
}

func (d *fakeDriver) Click(_ context.Context, _ string, _ time.Duration) error {
	return d.failOps["click"]
}

func (d *fakeDriver) Type(_ context.Context, _, _ string, _ time.Duration) error {
	return d.failOps["type"]
}

func (d *fakeDriver) WaitForSelector(_ context.Context, _ string, _ time.Duration) error {
	return d.failOps["wait"]
}

func (d *fakeDriver) Screenshot(_ context.Context) ([]byte, error) {
	return []byte("png-bytes"), nil
}

func (d *fakeDriver) Snapshot(_ context.Context) (map[string]any, error) {
	return map[string]any{"activeTab": d.active}, nil
}

func (d *fakeDriver) Close(_ context.Context) error { return nil }

func newBrowserRegistry(driver browser.Driver) *Registry {
	registry := NewRegistry()
	registry.MustRegister(
		&OpenTabHandler{Driver: driver},
		&CloseTabHandler{Driver: driver},
		&SwitchTabHandler{Driver: driver},
		&ListTabsHandler{Driver: driver},
		&NavigateHandler{Driver: driver},
		&ClickHandler{Driver: driver},
		&WaitHandler{Driver: driver},
	)

	return registry
}

func TestDispatchUnknownToolListsAlternatives(t *testing.T) {
	registry := newBrowserRegistry(newFakeDriver())

	result := registry.Dispatch(context.Background(), "teleport", nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, `unknown tool "teleport"`)
	assert.Contains(t, result.Error, "navigate")
}

func TestDispatchValidatesArguments(t *testing.T) {
	registry := newBrowserRegistry(newFakeDriver())

	result := registry.Dispatch(context.Background(), "navigate", map[string]any{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid arguments for navigate")
}

func TestDispatchNavigateSucceeds(t *testing.T) {
	driver := newFakeDriver()
	registry := newBrowserRegistry(driver)

	result := registry.Dispatch(context.Background(), "navigate", map[string]any{"url": "https://example.com"})

	require.True(t, result.Success)
	assert.Equal(t, []string{"https://example.com"}, driver.visited)
}

func TestDispatchDriverErrorBecomesFailedResult(t *testing.T) {
	driver := newFakeDriver()
	driver.failOps["click"] = errors.New("element detached from DOM")
	registry := newBrowserRegistry(driver)

	result := registry.Dispatch(context.Background(), "click", map[string]any{"selector": "#buy"})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "element detached from DOM")
}

func TestDispatchDefaultTabNotClosable(t *testing.T) {
	registry := newBrowserRegistry(newFakeDriver())

	result := registry.Dispatch(context.Background(), "closeTab", map[string]any{"name": browser.DefaultTab})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "cannot be closed")
}

func TestDispatchSwitchToUnknownTabListsOpenTabs(t *testing.T) {
	driver := newFakeDriver()
	registry := newBrowserRegistry(driver)

	require.True(t, registry.Dispatch(context.Background(), "openTab", map[string]any{"name": "checkout"}).Success)

	result := registry.Dispatch(context.Background(), "switchTab", map[string]any{"name": "payments"})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, `unknown tab "payments"`)
	assert.Contains(t, result.Error, "main")
	assert.Contains(t, result.Error, "checkout")
}

func TestDispatchOpenDuplicateTabFails(t *testing.T) {
	driver := newFakeDriver()
	registry := newBrowserRegistry(driver)

	require.True(t, registry.Dispatch(context.Background(), "openTab", map[string]any{"name": "checkout"}).Success)

	result := registry.Dispatch(context.Background(), "openTab", map[string]any{"name": "checkout"})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "already exists")
}

func TestDispatchWaitForTime(t *testing.T) {
	registry := newBrowserRegistry(newFakeDriver())

	start := time.Now()
	result := registry.Dispatch(context.Background(), "waitFor", map[string]any{"timeMs": 10.0})

	require.True(t, result.Success)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestDispatchWaitWithoutSelectorOrTimeFails(t *testing.T) {
	registry := newBrowserRegistry(newFakeDriver())

	result := registry.Dispatch(context.Background(), "waitFor", map[string]any{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "requires either selector or timeMs")
}

func TestCatalogPreservesRegistrationOrder(t *testing.T) {
	registry := newBrowserRegistry(newFakeDriver())

	catalog := registry.Catalog()

	require.Len(t, catalog, 7)
	assert.Equal(t, "openTab", catalog[0].Name)
	assert.Equal(t, "navigate", catalog[4].Name)

	for _, tool := range catalog {
		assert.NotEmpty(t, tool.Description)
		assert.NotNil(t, tool.Schema)
	}
}

func TestRegisterDuplicateNameFails(t *testing.T) {
	registry := NewRegistry()
	driver := newFakeDriver()

	require.NoError(t, registry.Register(&NavigateHandler{Driver: driver}))
	assert.Error(t, registry.Register(&NavigateHandler{Driver: driver}))
}
