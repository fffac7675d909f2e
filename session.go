// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package leadsnake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

var (
	// ErrSessionInit is returned when neither attaching to nor launching a
	// remotely debuggable browser works.
	ErrSessionInit = errors.New("browser session initialization failed")
	// ErrBrowserNotFound is returned when no browser binary exists in any
	// of the standard install locations.
	ErrBrowserNotFound = errors.New("no browser binary found in standard locations")
)

// Session is the browser surface the enrichment flow drives. All page state
// (cookies, cleared challenges, login) lives in the one underlying browser
// profile, which is why the whole run shares a single Session.
type Session interface {
	// Navigate loads a URL in the session tab.
	Navigate(ctx context.Context, url string) error
	// Content returns the current page HTML.
	Content(ctx context.Context) (string, error)
	// CurrentURL returns the tab's current location.
	CurrentURL(ctx context.Context) (string, error)
	// ScrollToBottom scrolls stepwise to the page bottom so lazy content
	// loads, pausing between steps until the height stops growing.
	ScrollToBottom(ctx context.Context) error
	// ExpandSections clicks show-more style controls and reports how many
	// it managed to click. Failures are swallowed.
	ExpandSections(ctx context.Context) int
	// ClickMatching clicks the first link or button whose visible label
	// contains text (case-insensitive) and reports whether anything was
	// clicked.
	ClickMatching(ctx context.Context, text string) (bool, error)
	// DismissCookieBanner clicks through common consent banners. Best
	// effort; absence of a banner is not an error.
	DismissCookieBanner(ctx context.Context)
	// Screenshot captures the visible viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the session. A browser the session launched itself is
	// terminated; one it attached to is left running.
	Close() error
}

// SessionConfig configures how the browser session is obtained.
type SessionConfig struct {
	// DebugPort is the remote debugging port to attach to.
	// Default: 9222
	DebugPort int
	// UserDataDir is the browser profile root. Empty means the browser's
	// platform default, which is what carries the operator's real cookies.
	UserDataDir string
	// ProfileDir is the profile directory name inside UserDataDir.
	// Default: "Default"
	ProfileDir string
	// BrowserPath overrides browser binary discovery.
	BrowserPath string
	// PageLoadTimeout bounds each navigation.
	// Default: 60s
	PageLoadTimeout time.Duration
	// LaunchWait is how long to wait after launching a browser before
	// retrying the attach.
	// Default: 2s
	LaunchWait time.Duration
	// ScrollPause is the settle pause between scroll steps.
	// Default: 800ms
	ScrollPause time.Duration
}

// DefaultSessionConfig returns the attach-to-local-browser defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		DebugPort:       9222,
		ProfileDir:      "Default",
		PageLoadTimeout: 60 * time.Second,
		LaunchWait:      2 * time.Second,
		ScrollPause:     800 * time.Millisecond,
	}
}

// BrowserSession drives a real, visible browser over the DevTools protocol.
type BrowserSession struct {
	cfg           *SessionConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	launched      *exec.Cmd
	logger        *log.Logger
}

// NewBrowserSession attaches to a browser already listening on the remote
// debugging port. When nothing is listening it launches the browser itself,
// pointed at the operator's profile, and attaches to that.
func NewBrowserSession(ctx context.Context, cfg *SessionConfig, logger *log.Logger) (*BrowserSession, error) {
	if cfg == nil {
		cfg = DefaultSessionConfig()
	}
	s := &BrowserSession{cfg: cfg, logger: logger}

	if err := s.attach(ctx); err == nil {
		return s, nil
	}
	if logger != nil {
		logger.Printf("no browser on port %d; launching one", cfg.DebugPort)
	}
	if err := s.launchBrowser(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInit, err)
	}
	time.Sleep(cfg.LaunchWait)
	if err := s.attach(ctx); err != nil {
		return nil, fmt.Errorf("%w: attach after launch: %v", ErrSessionInit, err)
	}
	return s, nil
}

// attach connects a DevTools session to the debugging port and verifies it
// responds.
func (s *BrowserSession) attach(ctx context.Context) error {
	devtoolsURL := fmt.Sprintf("http://127.0.0.1:%d", s.cfg.DebugPort)
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, devtoolsURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	probeCtx, probeCancel := context.WithTimeout(browserCtx, 5*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("attach to %s: %w", devtoolsURL, err)
	}

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	return nil
}

// launchBrowser starts the browser binary with remote debugging enabled
// against the operator's profile.
func (s *BrowserSession) launchBrowser() error {
	binary := s.cfg.BrowserPath
	if binary == "" {
		found, err := findBrowserBinary()
		if err != nil {
			return err
		}
		binary = found
	}

	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", s.cfg.DebugPort),
		"--new-window",
	}
	if s.cfg.UserDataDir != "" {
		args = append(args, "--user-data-dir="+s.cfg.UserDataDir)
	}
	if s.cfg.ProfileDir != "" {
		args = append(args, "--profile-directory="+s.cfg.ProfileDir)
	}

	cmd := exec.Command(binary, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch %s: %w", binary, err)
	}
	s.launched = cmd
	return nil
}

// findBrowserBinary locates a Chromium-family browser in the standard
// install locations for the current platform.
func findBrowserBinary() (string, error) {
	switch runtime.GOOS {
	case "windows":
		candidates := []string{
			filepath.Join(os.Getenv("ProgramFiles"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("ProgramFiles(x86)"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("ProgramFiles"), "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(os.Getenv("ProgramFiles(x86)"), "Microsoft", "Edge", "Application", "msedge.exe"),
			filepath.Join(os.Getenv("LOCALAPPDATA"), "Google", "Chrome", "Application", "chrome.exe"),
		}
		for _, p := range candidates {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
	case "darwin":
		candidates := []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
		for _, p := range candidates {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, nil
			}
		}
	default:
		names := []string{"google-chrome", "google-chrome-stable", "microsoft-edge", "chromium", "chromium-browser"}
		for _, name := range names {
			if p, err := exec.LookPath(name); err == nil {
				return p, nil
			}
		}
	}
	return "", ErrBrowserNotFound
}

// run executes chromedp actions on the session tab under the page-load
// timeout.
func (s *BrowserSession) run(ctx context.Context, actions ...chromedp.Action) error {
	timeout := s.cfg.PageLoadTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	runCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		runCtx, cancel = context.WithDeadline(s.browserCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

// Navigate implements Session.
func (s *BrowserSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

// Content implements Session.
func (s *BrowserSession) Content(ctx context.Context) (string, error) {
	var htmlContent string
	err := s.run(ctx, chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery))
	return htmlContent, err
}

// CurrentURL implements Session.
func (s *BrowserSession) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// ScrollToBottom implements Session.
func (s *BrowserSession) ScrollToBottom(ctx context.Context) error {
	pause := s.cfg.ScrollPause
	if pause <= 0 {
		pause = 800 * time.Millisecond
	}
	var lastHeight int64
	if err := s.run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &lastHeight)); err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		var newHeight int64
		err := s.run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(pause),
			chromedp.Evaluate(`document.body.scrollHeight`, &newHeight),
		)
		if err != nil {
			return err
		}
		if newHeight == lastHeight {
			break
		}
		lastHeight = newHeight
	}
	return nil
}

// expandScript clicks show-more style controls, falling back to a
// synthesized click event when the direct click is intercepted.
const expandScript = `(() => {
	const labels = ['show more', 'view detail', 'view full', 'expand'];
	let clicked = 0;
	for (const el of document.querySelectorAll('a, button')) {
		const t = (el.textContent || '').toLowerCase();
		if (!labels.some(l => t.includes(l))) continue;
		try { el.click(); clicked++; }
		catch (e) {
			try { el.dispatchEvent(new MouseEvent('click', {bubbles: true})); clicked++; }
			catch (e2) {}
		}
	}
	return clicked;
})()`

// ExpandSections implements Session.
func (s *BrowserSession) ExpandSections(ctx context.Context) int {
	var clicked int
	if err := s.run(ctx, chromedp.Evaluate(expandScript, &clicked)); err != nil {
		return 0
	}
	if clicked > 0 {
		_ = s.run(ctx, chromedp.Sleep(400*time.Millisecond))
	}
	return clicked
}

// ClickMatching implements Session. Used for candidate buttons that
// navigate via script instead of a href.
func (s *BrowserSession) ClickMatching(ctx context.Context, text string) (bool, error) {
	script := fmt.Sprintf(`(() => {
	const want = %q.toLowerCase();
	if (!want) return false;
	for (const el of document.querySelectorAll('a, button')) {
		const t = (el.textContent || '').toLowerCase();
		if (!t.includes(want)) continue;
		try { el.click(); return true; }
		catch (e) {
			try { el.dispatchEvent(new MouseEvent('click', {bubbles: true})); return true; }
			catch (e2) {}
		}
	}
	return false;
})()`, text)
	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, err
	}
	if clicked {
		_ = s.run(ctx, chromedp.Sleep(400*time.Millisecond))
	}
	return clicked, nil
}

// cookieBannerScript clicks the first visible consent-accept control.
const cookieBannerScript = `(() => {
	const byId = document.getElementById('onetrust-accept-btn-handler');
	if (byId) { try { byId.click(); return true; } catch (e) {} }
	const labels = ['accept all', 'accept cookies', 'i agree'];
	for (const el of document.querySelectorAll('button, a')) {
		const t = (el.textContent || '').toLowerCase();
		if (labels.some(l => t.includes(l))) {
			try { el.click(); return true; } catch (e) {}
		}
	}
	return false;
})()`

// DismissCookieBanner implements Session.
func (s *BrowserSession) DismissCookieBanner(ctx context.Context) {
	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(cookieBannerScript, &clicked)); err != nil {
		return
	}
	if clicked {
		_ = s.run(ctx, chromedp.Sleep(400*time.Millisecond))
	}
}

// Screenshot implements Session.
func (s *BrowserSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().Do(cctx)
		return err
	}))
	return buf, err
}

// Close implements Session.
func (s *BrowserSession) Close() error {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	if s.launched != nil && s.launched.Process != nil {
		_ = s.launched.Process.Kill()
	}
	return nil
}

// IPInfo is the egress identity reported by the IP echo service.
type IPInfo struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Org     string `json:"org"`
}

// ExitIPInfo loads the IP echo service through the session so the reported
// address is the browser's own egress, VPN included. Failures return a zero
// value; the check is informational.
func ExitIPInfo(ctx context.Context, s Session) IPInfo {
	var info IPInfo
	if err := s.Navigate(ctx, "https://ipinfo.io/json"); err != nil {
		return info
	}
	htmlContent, err := s.Content(ctx)
	if err != nil {
		return info
	}
	raw := extractPreText(htmlContent)
	if raw == "" {
		return info
	}
	_ = json.Unmarshal([]byte(raw), &info)
	return info
}

// extractPreText returns the text of the first <pre> element.
func extractPreText(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("pre").First().Text())
}
