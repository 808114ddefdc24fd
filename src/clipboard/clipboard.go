package clipboard

import (
	"errors"
	"sync"

	"golang.design/x/clipboard"
)

var (
	writeMu sync.Mutex
	ready   bool
)

// ErrNotInitialized is returned by writes before Init succeeded.
var ErrNotInitialized = errors.New("clipboard not initialized")

func Init() error {
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := clipboard.Init(); err != nil {
		return err
	}
	ready = true
	return nil
}

// WriteImage puts PNG bytes on the clipboard. Writes are serialized so parallel exports cannot
// interleave.
func WriteImage(png []byte) error {
	if len(png) == 0 {
		return errors.New("empty image")
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if !ready {
		return ErrNotInitialized
	}
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

// Write puts text on the clipboard.
func Write(text string) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	if !ready {
		return ErrNotInitialized
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
