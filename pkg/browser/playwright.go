package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/atypis/runops/pkg/log"
)

// PlaywrightDriver drives a single chromium instance where each logical tab
// is a page in one shared browser context.
type PlaywrightDriver struct {
	mu       sync.Mutex
	pw       *playwright.Playwright
	browser  playwright.Browser
	bctx     playwright.BrowserContext
	tabs     map[string]playwright.Page
	tabOrder []string
	active   string
	headless bool
	logger   *slog.Logger
}

func NewPlaywrightDriver(headless bool) *PlaywrightDriver {
	return &PlaywrightDriver{
		tabs:     make(map[string]playwright.Page),
		headless: headless,
		logger:   log.WithModule("browser"),
	}
}

// Initialize installs and starts playwright, launches the browser and opens
// the default tab. Must be called before any other operation.
func (d *PlaywrightDriver) Initialize(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &d.headless,
	})
	if err != nil {
		_ = pw.Stop()

		return fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()

		return fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()

		return fmt.Errorf("failed to open default tab: %w", err)
	}

	d.pw = pw
	d.browser = browser
	d.bctx = bctx
	d.tabs[DefaultTab] = page
	d.tabOrder = []string{DefaultTab}
	d.active = DefaultTab

	d.logger.Info("browser started", "headless", d.headless)

	return nil
}

func (d *PlaywrightDriver) OpenTab(_ context.Context, name, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.tabs[name]; exists {
		return fmt.Errorf("tab %q: %w", name, ErrTabAlreadyExists)
	}

	page, err := d.bctx.NewPage()
	if err != nil {
		return fmt.Errorf("failed to open tab %q: %w", name, err)
	}

	if url != "" {
		if _, err := page.Goto(url); err != nil {
			_ = page.Close()

			return fmt.Errorf("failed to navigate tab %q to %s: %w", name, url, err)
		}
	}

	d.tabs[name] = page
	d.tabOrder = append(d.tabOrder, name)
	d.active = name

	return nil
}

func (d *PlaywrightDriver) CloseTab(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if name == DefaultTab {
		return ErrDefaultTabNotClosable
	}

	page, exists := d.tabs[name]
	if !exists {
		return fmt.Errorf("tab %q: %w", name, ErrTabNotFound)
	}

	_ = page.Close()
	delete(d.tabs, name)

	for i, tab := range d.tabOrder {
		if tab == name {
			d.tabOrder = append(d.tabOrder[:i], d.tabOrder[i+1:]...)

			break
		}
	}

	if d.active == name {
		d.active = DefaultTab
	}

	return nil
}

func (d *PlaywrightDriver) SwitchTab(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.tabs[name]; !exists {
		return fmt.Errorf("tab %q: %w", name, ErrTabNotFound)
	}

	d.active = name

	return nil
}

func (d *PlaywrightDriver) ActiveTab() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.active
}

func (d *PlaywrightDriver) ListTabs(_ context.Context) ([]TabInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tabs := make([]TabInfo, 0, len(d.tabOrder))

	for _, name := range d.tabOrder {
		tabs = append(tabs, TabInfo{Name: name, URL: d.tabs[name].URL()})
	}

	return tabs, nil
}

func (d *PlaywrightDriver) activePage() (playwright.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	page, exists := d.tabs[d.active]
	if !exists {
		return nil, fmt.Errorf("tab %q: %w", d.active, ErrTabNotFound)
	}

	return page, nil
}

func (d *PlaywrightDriver) Navigate(_ context.Context, url string) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}

	if _, err := page.Goto(url); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	return nil
}

func (d *PlaywrightDriver) Click(_ context.Context, selector string, timeout time.Duration) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}

	ms := durationMillis(timeout)

	if err := page.Click(selector, playwright.PageClickOptions{Timeout: &ms}); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}

	return nil
}

func (d *PlaywrightDriver) Type(_ context.Context, selector, text string, timeout time.Duration) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}

	ms := durationMillis(timeout)

	if err := page.Fill(selector, text, playwright.PageFillOptions{Timeout: &ms}); err != nil {
		return fmt.Errorf("type into %q failed: %w", selector, err)
	}

	return nil
}

func (d *PlaywrightDriver) WaitForSelector(_ context.Context, selector string, timeout time.Duration) error {
	page, err := d.activePage()
	if err != nil {
		return err
	}

	ms := durationMillis(timeout)

	if _, err := page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{Timeout: &ms}); err != nil {
		return fmt.Errorf("wait for %q failed: %w", selector, err)
	}

	return nil
}

func (d *PlaywrightDriver) Screenshot(_ context.Context) ([]byte, error) {
	page, err := d.activePage()
	if err != nil {
		return nil, err
	}

	data, err := page.Screenshot()
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}

	return data, nil
}

func (d *PlaywrightDriver) Snapshot(_ context.Context) (map[string]any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tabs := make([]map[string]any, 0, len(d.tabOrder))

	for _, name := range d.tabOrder {
		page := d.tabs[name]

		title, err := page.Title()
		if err != nil {
			title = ""
		}

		tabs = append(tabs, map[string]any{
			"name":  name,
			"url":   page.URL(),
			"title": title,
		})
	}

	return map[string]any{
		"activeTab": d.active,
		"tabs":      tabs,
	}, nil
}

func (d *PlaywrightDriver) Close(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, page := range d.tabs {
		_ = page.Close()
		delete(d.tabs, name)
	}

	d.tabOrder = nil

	if d.bctx != nil {
		_ = d.bctx.Close()
	}

	if d.browser != nil {
		_ = d.browser.Close()
	}

	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
	}

	return nil
}

func durationMillis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
