package hotkey

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kataras/golog"
	gohook "github.com/robotn/gohook"
)

// Combo tracks which keys of one combination are held down.
type Combo struct {
	text string
	mu   sync.Mutex
	keys []keyState
}

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// ParseCombo builds a matcher for a combination like "Ctrl+Alt+S".
func ParseCombo(text string) (*Combo, error) {
	names := parseHotkey(text)
	c := &Combo{text: text}
	for _, name := range names {
		rawcodes := keyNameToRawcodes(name)
		if len(rawcodes) == 0 {
			return nil, fmt.Errorf("cannot map key %q in hotkey %q", name, text)
		}
		c.keys = append(c.keys, keyState{name: name, rawcodes: rawcodes})
	}
	if len(c.keys) == 0 {
		return nil, fmt.Errorf("no keys in hotkey %q", text)
	}
	return c, nil
}

func (c *Combo) String() string { return c.text }

// Handle feeds one key event and reports whether it completed the combination. The pressed state
// resets after a match so holding the keys fires once.
func (c *Combo) Handle(kind uint8, rawcode uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case gohook.KeyDown, gohook.KeyHold:
		for i := range c.keys {
			if c.keys[i].matches(rawcode) {
				c.keys[i].pressed = true
			}
		}
		for i := range c.keys {
			if !c.keys[i].pressed {
				return false
			}
		}
		for i := range c.keys {
			c.keys[i].pressed = false
		}
		return true
	case gohook.KeyUp:
		for i := range c.keys {
			if c.keys[i].matches(rawcode) {
				c.keys[i].pressed = false
			}
		}
	}
	return false
}

func (k keyState) matches(rawcode uint16) bool {
	for _, rc := range k.rawcodes {
		if rc == rawcode {
			return true
		}
	}
	return false
}

// Listen registers a global hotkey and calls callback from the hook goroutine each time the
// combination is pressed. The returned stop function ends the hook.
func Listen(hotkeyConfig string, callback func()) (func(), error) {
	combo, err := ParseCombo(hotkeyConfig)
	if err != nil {
		return nil, err
	}
	golog.Infof("Hotkey listener configured for: %s", combo)

	evChan := gohook.Start()
	if evChan == nil {
		return nil, fmt.Errorf("gohook.Start() returned nil channel")
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				golog.Errorf("PANIC in hotkey goroutine: %v", r)
			}
		}()
		for ev := range evChan {
			if ev.Kind != gohook.KeyDown && ev.Kind != gohook.KeyHold && ev.Kind != gohook.KeyUp {
				continue
			}
			if combo.Handle(ev.Kind, ev.Rawcode) {
				golog.Debugf("Hotkey activated: %s", combo)
				if callback != nil {
					callback()
				}
			}
		}
		golog.Debugf("Hotkey event channel closed")
	}()

	return gohook.End, nil
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

var namedKeys = map[string][]uint16{
	// Modifier keys, both left and right variants
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":       {32},
	"enter":       {13},
	"return":      {13},
	"esc":         {27},
	"escape":      {27},
	"tab":         {9},
	"backspace":   {8},
	"delete":      {46},
	"del":         {46},
	"insert":      {45},
	"ins":         {45},
	"home":        {36},
	"end":         {35},
	"pageup":      {33},
	"pgup":        {33},
	"pagedown":    {34},
	"pgdn":        {34},
	"printscreen": {44},
	"prtsc":       {44},

	"left":  {37},
	"up":    {38},
	"right": {39},
	"down":  {40},
}

// keyNameToRawcodes maps a key name to its Windows virtual key codes.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if keyName == "win" || keyName == "super" {
		keyName = "cmd"
	}
	if codes, ok := namedKeys[keyName]; ok {
		return codes
	}

	if len(keyName) == 1 {
		switch ch := keyName[0]; {
		case ch >= 'a' && ch <= 'z':
			return []uint16{uint16(ch-'a') + 65} // VK 0x41-0x5A
		case ch >= '0' && ch <= '9':
			return []uint16{uint16(ch-'0') + 48} // VK 0x30-0x39
		}
	}

	// F1-F24 are VK 0x70-0x87
	if strings.HasPrefix(keyName, "f") {
		if n, err := strconv.Atoi(keyName[1:]); err == nil && n >= 1 && n <= 24 {
			return []uint16{uint16(111 + n)}
		}
	}

	golog.Warnf("Unknown key name '%s', cannot map to rawcode", keyName)
	return nil
}
