package tray

import (
	"sync"

	"github.com/getlantern/systray"
	"github.com/kataras/golog"
)

// Options configures the tray menu.
type Options struct {
	Title     string
	Tooltip   string
	About     string
	OnReady   func()
	OnCapture func()
	OnQuit    func()
}

var (
	mu         sync.Mutex
	ready      bool
	aboutText  string
	aboutExtra string
)

// Run shows the tray icon and blocks until Quit. It must be called from the main goroutine.
func Run(opts Options) {
	mu.Lock()
	aboutText = opts.About
	mu.Unlock()
	systray.Run(func() { onReady(opts) }, func() { onExit(opts) })
}

// Quit removes the tray icon and makes Run return.
func Quit() {
	systray.Quit()
}

func onReady(opts Options) {
	systray.SetIcon(Icon())
	systray.SetTitle(opts.Title)
	systray.SetTooltip(opts.Tooltip)

	mCapture := systray.AddMenuItem("Select region", "Select a region and export it")
	mAbout := systray.AddMenuItem("About", "About this program")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	mu.Lock()
	ready = true
	mu.Unlock()

	go func() {
		for {
			select {
			case <-mCapture.ClickedCh:
				if opts.OnCapture != nil {
					opts.OnCapture()
				}
			case <-mAbout.ClickedCh:
				showMessageBox(opts.Title, aboutMessage())
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()

	if opts.OnReady != nil {
		opts.OnReady()
	}
}

func onExit(opts Options) {
	mu.Lock()
	ready = false
	mu.Unlock()
	if opts.OnQuit != nil {
		opts.OnQuit()
	}
}

// UpdateTooltip changes the tooltip. It is a no-op before the tray is ready.
func UpdateTooltip(text string) {
	mu.Lock()
	ok := ready
	mu.Unlock()
	if !ok {
		golog.Debugf("TRAY: tooltip %q before tray ready", text)
		return
	}
	systray.SetTooltip(text)
}

// SetAboutExtra appends a line to the About dialog.
func SetAboutExtra(text string) {
	mu.Lock()
	aboutExtra = text
	mu.Unlock()
}

func aboutMessage() string {
	mu.Lock()
	defer mu.Unlock()
	if aboutExtra == "" {
		return aboutText
	}
	if aboutText == "" {
		return aboutExtra
	}
	return aboutText + "\n\n" + aboutExtra
}
