// File: internal/flow/helpers_test.go
package flow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/mailpilot-cli/internal/config"
	"github.com/xkilldash9x/mailpilot-cli/internal/sessionstore"
)

// fakePage is a scriptable SessionPage. Selector presence is keyed per
// candidate; Exists also accepts comma-joined candidate groups. onClick lets a
// test mutate page state in reaction to a click, which is how multi-step
// login transitions are simulated.
type fakePage struct {
	mu sync.Mutex

	url       string
	present   map[string]bool
	body      string
	navLocked bool

	typed        map[string][]string
	clicks       map[string]int
	navigations  []string
	waitNavErr   error
	cookies      []sessionstore.Cookie
	setCookieErr error

	onClick func(p *fakePage, selector string)
}

func newFakePage(url string) *fakePage {
	return &fakePage{
		url:     url,
		present: map[string]bool{},
		typed:   map[string][]string{},
		clicks:  map[string]int{},
	}
}

func (p *fakePage) Exists(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.present[selector] {
		return true, nil
	}
	for _, candidate := range splitCandidates(selector) {
		if p.present[strings.TrimSpace(candidate)] {
			return true, nil
		}
	}
	return false, nil
}

// splitCandidates splits a querySelector group on top-level commas only, so
// commas inside bracketed attribute values never break a candidate apart.
func splitCandidates(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	return append(out, s[start:])
}

func (p *fakePage) click(selector string) error {
	p.mu.Lock()
	p.clicks[selector]++
	hook := p.onClick
	p.mu.Unlock()
	if hook != nil {
		hook(p, selector)
	}
	return nil
}

func (p *fakePage) ClickNode(_ context.Context, selector string) error   { return p.click(selector) }
func (p *fakePage) ClickScript(_ context.Context, selector string) error { return p.click(selector) }
func (p *fakePage) ClickPoint(_ context.Context, selector string) error  { return p.click(selector) }

func (p *fakePage) TypeText(_ context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed[selector] = append(p.typed[selector], text)
	return nil
}

func (p *fakePage) WaitNavigation(_ context.Context, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitNavErr
}

func (p *fakePage) CurrentURL(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, url)
	if !p.navLocked {
		p.url = url
	}
	return nil
}

func (p *fakePage) WaitVisible(_ context.Context, _ string, _ time.Duration) error { return nil }

func (p *fakePage) BodyText(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.body, nil
}

func (p *fakePage) PressEnter(_ context.Context) error { return nil }

func (p *fakePage) Screenshot(_ context.Context) ([]byte, error) { return []byte("png"), nil }

func (p *fakePage) HTML(_ context.Context) (string, error) { return "<html></html>", nil }

func (p *fakePage) Cookies(_ context.Context) ([]sessionstore.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cookies, nil
}

func (p *fakePage) SetCookies(_ context.Context, cookies []sessionstore.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setCookieErr != nil {
		return p.setCookieErr
	}
	p.cookies = cookies
	return nil
}

// setPresent toggles selector presence under the lock, safe inside onClick.
func (p *fakePage) setPresent(selector string, present bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.present[selector] = present
}

func (p *fakePage) setURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// fakeStore is an in-memory CookieStore that counts persistence calls.
type fakeStore struct {
	mu      sync.Mutex
	cookies []sessionstore.Cookie
	hasSet  bool
	saves   int
}

func (s *fakeStore) Load(string) ([]sessionstore.Cookie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookies, s.hasSet
}

func (s *fakeStore) Save(_ string, cookies []sessionstore.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.cookies = cookies
	s.hasSet = true
	return nil
}

// fakeCodes replays a fixed code sequence and counts generation calls.
type fakeCodes struct {
	mu    sync.Mutex
	codes []string
	calls int
}

func (f *fakeCodes) GetCode(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls > len(f.codes) {
		return f.codes[len(f.codes)-1], nil
	}
	return f.codes[f.calls-1], nil
}

func testFlowConfig() config.FlowConfig {
	return config.FlowConfig{
		LoginURL:           "https://login.live.com",
		TargetURLPrefix:    "https://outlook.live.com/mail/0/",
		JunkSettingsURL:    "https://outlook.live.com/mail/0/options/mail/junkEmail",
		SafeSender:         "customer_support@email.ticketmaster.com",
		NavigationTimeout:  5 * time.Millisecond,
		SelectorTimeout:    5 * time.Millisecond,
		ResolverMaxRetries: 4,
		ResolverDelay:      time.Millisecond,
		ActionMaxAttempts:  2,
		ActionRetryDelay:   time.Millisecond,
		OTPSubmitAttempts:  3,
	}
}
