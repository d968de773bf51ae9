// Package tray provides the system tray menu for fingerspell.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/fingerspell/internal/app"
	"github.com/ayusman/fingerspell/internal/letter"
)

// Tray is the system tray menu. It mirrors the session and offers the
// confirmation gate's actions.
type Tray struct {
	onToggle  func(enabled bool)
	onConfirm func()
	onReject  func()
	onReset   func()
	onOpenUI  func()
	onQuit    func()
	enabled   bool
	pending   string
	word      string
	mu        sync.RWMutex

	menuToggle  *systray.MenuItem
	menuPending *systray.MenuItem
	menuWord    *systray.MenuItem
	menuConfirm *systray.MenuItem
	menuReject  *systray.MenuItem
}

// New creates a Tray with recognition enabled.
func New() *Tray {
	return &Tray{enabled: true}
}

// OnToggle sets the callback for pausing and resuming recognition.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnConfirm sets the callback for the Confirm item.
func (t *Tray) OnConfirm(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onConfirm = fn
}

// OnReject sets the callback for the Reject item.
func (t *Tray) OnReject(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReject = fn
}

// OnReset sets the callback for the Clear word item.
func (t *Tray) OnReset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnOpenUI sets the callback for opening the browser UI.
func (t *Tray) OnOpenUI(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenUI = fn
}

// OnQuit sets the callback for the Quit item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until Quit is chosen.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("fingerspell")
	systray.SetTooltip("Fingerspelling recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume recognition")
	systray.AddSeparator()

	t.menuPending = systray.AddMenuItem(pendingTitle(t.pending), "Letter awaiting confirmation")
	t.menuPending.Disable()
	t.menuWord = systray.AddMenuItem(wordTitle(t.word), "Current word")
	t.menuWord.Disable()
	systray.AddSeparator()

	t.menuConfirm = systray.AddMenuItem("Confirm", "Append the pending letter")
	t.menuReject = systray.AddMenuItem("Reject", "Discard the pending letter")
	t.setPendingItems(t.pending != "")
	menuReset := systray.AddMenuItem("Clear word", "Start a new word")
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open UI...", "Open the recognizer in a browser")
	menuQuit := systray.AddMenuItem("Quit", "Quit fingerspell")
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuConfirm.ClickedCh:
				t.call(func() func() { return t.onConfirm })
			case <-t.menuReject.ClickedCh:
				t.call(func() func() { return t.onReject })
			case <-menuReset.ClickedCh:
				t.call(func() func() { return t.onReset })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpenUI })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

// call runs the callback chosen by get outside the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	fn := get()
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

// Update mirrors a session update in the menu. It is meant to be
// registered as an app listener.
func (t *Tray) Update(u app.Update) {
	pending := ""
	if u.Status.Pending {
		pending = displayLabel(u.Status.PendingLabel)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = u.Status.Enabled || !u.Status.Running
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(t.enabled))
	}
	if pending != t.pending {
		t.pending = pending
		if t.menuPending != nil {
			t.menuPending.SetTitle(pendingTitle(pending))
			t.setPendingItems(pending != "")
		}
	}
	if u.Status.Word != t.word {
		t.word = u.Status.Word
		if t.menuWord != nil {
			t.menuWord.SetTitle(wordTitle(t.word))
		}
	}
}

// Pending returns the letter shown as awaiting confirmation.
func (t *Tray) Pending() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pending
}

// Word returns the word shown in the menu.
func (t *Tray) Word() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.word
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func (t *Tray) setPendingItems(pending bool) {
	for _, item := range []*systray.MenuItem{t.menuConfirm, t.menuReject} {
		if item == nil {
			continue
		}
		if pending {
			item.Enable()
		} else {
			item.Disable()
		}
	}
}

func displayLabel(l letter.Label) string {
	switch l {
	case letter.Space:
		return "space"
	case letter.Nothing:
		return "nothing"
	}
	return string(l)
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Recognizing"
	}
	return "○ Paused"
}

func pendingTitle(pending string) string {
	if pending == "" {
		return "Pending: none"
	}
	return "Pending: " + pending
}

func wordTitle(word string) string {
	if word == "" {
		return "Word: (empty)"
	}
	return "Word: " + word
}
