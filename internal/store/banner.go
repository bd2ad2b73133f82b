package store

import (
	"sync"
	"time"
)

// DefaultBannerTimeout is how long an error stays visible.
const DefaultBannerTimeout = 5 * time.Second

// Banner is a transient error message that hides itself after a delay.
type Banner struct {
	delay time.Duration

	mu      sync.Mutex
	message string
	visible bool
	gen     uint64
	timer   *time.Timer
}

// NewBanner creates a hidden banner. delay <= 0 uses the default.
func NewBanner(delay time.Duration) *Banner {
	if delay <= 0 {
		delay = DefaultBannerTimeout
	}

	return &Banner{delay: delay}
}

// Show makes msg visible and schedules it to hide. A newer Show always
// wins over an older pending hide.
func (b *Banner) Show(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}

	b.gen++
	gen := b.gen
	b.message = msg
	b.visible = true
	b.timer = time.AfterFunc(b.delay, func() { b.hide(gen) })
}

// hide clears the banner if gen is still the current generation.
func (b *Banner) hide(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if gen != b.gen {
		return
	}

	b.visible = false
	b.timer = nil
}

// Clear hides the banner at once.
func (b *Banner) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	b.gen++
	b.message = ""
	b.visible = false
}

// Visible reports whether the banner is showing.
func (b *Banner) Visible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.visible
}

// Message returns the visible message, or "" when hidden.
func (b *Banner) Message() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.visible {
		return ""
	}

	return b.message
}
