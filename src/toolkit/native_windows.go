//go:build windows

package toolkit

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"screen-select/src/geometry"

	"github.com/kataras/golog"
	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	user32DLL                      = windows.NewLazySystemDLL("user32.dll")
	procSetLayeredWindowAttributes = user32DLL.NewProc("SetLayeredWindowAttributes")
	procAllowSetForegroundWindow   = user32DLL.NewProc("AllowSetForegroundWindow")
	procMonitorFromRect            = user32DLL.NewProc("MonitorFromRect")
)

const (
	overlayClassName     = "ScreenSelectOverlay"
	lwaAlpha             = 0x2
	monitorDefaultToNull = 0x0
	mkLButton            = 0x0001
	// keypad Enter arrives as VK_RETURN with the extended-key bit set.
	extendedKeyFlag = 1 << 24
	// ctx is checked whenever the loop wakes up, at least this often.
	wakeInterval = 100 * time.Millisecond
)

var (
	confirmColor = color.RGBA{R: 0x2e, G: 0xa0, B: 0x43, A: 0xff}
	cancelColor  = color.RGBA{R: 0xd0, G: 0x32, B: 0x32, A: 0xff}
)

// Window registry, touched only from the thread that runs the message loop.
var (
	registryMu sync.Mutex
	registry   = map[win.HWND]*nativeWindow{}
	wndProcCB  uintptr
	classOnce  sync.Once
	classErr   error

	monitorsMu   sync.Mutex
	monitorsSeen []win.HMONITOR
	monitorsCB   = sync.OnceValue(func() uintptr {
		return syscall.NewCallback(func(h win.HMONITOR, _ win.HDC, _ *win.RECT, _ uintptr) uintptr {
			monitorsSeen = append(monitorsSeen, h)
			return 1
		})
	})
)

type nativeDriver struct {
	focal  float32
	queue  []Event
	nextID int
	timer  uintptr
	closed bool
}

// NewNative returns the win32 driver. Events carry client coordinates divided by focal. The
// calling goroutine is locked to its OS thread until Close, since win32 windows belong to the
// thread that created them.
func NewNative(focal float32) (Driver, error) {
	if focal <= 0 {
		focal = 1
	}
	runtime.LockOSThread()
	if err := registerClass(); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	d := &nativeDriver{focal: focal}
	d.timer = win.SetTimer(0, 0, uint32(wakeInterval/time.Millisecond), 0)
	golog.Debugf("TOOLKIT: native driver ready, focal scale %v", focal)
	return d, nil
}

func registerClass() error {
	classOnce.Do(func() {
		wndProcCB = syscall.NewCallback(overlayWndProc)
		wc := win.WNDCLASSEX{
			CbSize:        uint32(unsafe.Sizeof(win.WNDCLASSEX{})),
			Style:         win.CS_HREDRAW | win.CS_VREDRAW,
			LpfnWndProc:   wndProcCB,
			HInstance:     win.GetModuleHandle(nil),
			HCursor:       win.LoadCursor(0, win.MAKEINTRESOURCE(win.IDC_CROSS)),
			LpszClassName: syscall.StringToUTF16Ptr(overlayClassName),
		}
		if atom := win.RegisterClassEx(&wc); atom == 0 {
			classErr = errors.New("failed to register overlay window class")
		}
	})
	return classErr
}

func (d *nativeDriver) CreateWindow(opts WindowOptions) (Window, error) {
	if d.closed {
		return nil, errors.New("driver closed")
	}
	sf := opts.ScaleFactor
	if sf <= 0 {
		sf = 1
	}
	// Per-monitor DPI aware windows are placed in physical pixels.
	phys := opts.Rect.Scale(sf)

	var exStyle uint32 = win.WS_EX_LAYERED
	if opts.AlwaysOnTop {
		exStyle |= win.WS_EX_TOPMOST
	}
	if opts.SkipTaskbar {
		exStyle |= win.WS_EX_TOOLWINDOW
	}
	var style uint32 = win.WS_POPUP
	if !opts.Borderless {
		style = win.WS_OVERLAPPED | win.WS_CAPTION | win.WS_SYSMENU
		if opts.Resizable {
			style |= win.WS_THICKFRAME
		}
	}

	hwnd := win.CreateWindowEx(
		exStyle,
		syscall.StringToUTF16Ptr(overlayClassName),
		syscall.StringToUTF16Ptr(opts.Title),
		style,
		int32(phys.X), int32(phys.Y), int32(phys.W), int32(phys.H),
		0, 0, win.GetModuleHandle(nil), nil,
	)
	if hwnd == 0 {
		return nil, fmt.Errorf("failed to create window on screen %d", opts.ScreenNum)
	}

	w := &nativeWindow{
		id:     d.nextID,
		hwnd:   hwnd,
		driver: d,
		scale:  sf,
		size:   image.Pt(phys.W, phys.H),
	}
	d.nextID++

	opacity := opts.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	_, _, _ = procSetLayeredWindowAttributes.Call(uintptr(hwnd), 0, uintptr(byte(opacity*255)), lwaAlpha)

	registryMu.Lock()
	registry[hwnd] = w
	registryMu.Unlock()

	golog.Debugf("TOOLKIT: window %d hwnd=%v screen=%d physical=%+v", w.id, hwnd, opts.ScreenNum, phys)
	checkPlacement(phys, opts.ScreenNum)
	return w, nil
}

// checkPlacement warns when phys lands on a different monitor than the ordinal it was meant for.
func checkPlacement(phys geometry.Rect, screenNum int) {
	rc := win.RECT{
		Left:   int32(phys.X),
		Top:    int32(phys.Y),
		Right:  int32(phys.X + phys.W),
		Bottom: int32(phys.Y + phys.H),
	}
	h, _, _ := procMonitorFromRect.Call(uintptr(unsafe.Pointer(&rc)), monitorDefaultToNull)
	landed := win.HMONITOR(h)

	monitorsMu.Lock()
	monitorsSeen = monitorsSeen[:0]
	ok := win.EnumDisplayMonitors(0, nil, monitorsCB(), 0)
	monitors := append([]win.HMONITOR(nil), monitorsSeen...)
	monitorsMu.Unlock()
	if !ok {
		golog.Warnf("TOOLKIT: cannot enumerate monitors to check screen %d placement", screenNum)
		return
	}

	if ordinal, match := placedOn(monitors, landed, screenNum); !match {
		golog.Warnf("TOOLKIT: window for screen %d at %+v landed on monitor %d", screenNum, phys, ordinal)
	}
}

// Wait blocks for the first message, then drains everything already queued, so one call covers
// one pass of the loop.
func (d *nativeDriver) Wait(ctx context.Context) ([]Event, error) {
	if d.closed {
		return nil, errors.New("driver closed")
	}
	var msg win.MSG
	for len(d.queue) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ret := win.GetMessage(&msg, 0, 0, 0)
		if ret == 0 {
			return nil, errors.New("message loop received WM_QUIT")
		}
		if ret == -1 {
			return nil, errors.New("GetMessage failed")
		}
		win.TranslateMessage(&msg)
		win.DispatchMessage(&msg)
		for win.PeekMessage(&msg, 0, 0, 0, win.PM_REMOVE) {
			win.TranslateMessage(&msg)
			win.DispatchMessage(&msg)
		}
	}
	batch := d.queue
	d.queue = nil
	return batch, nil
}

func (d *nativeDriver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.timer != 0 {
		win.KillTimer(0, d.timer)
	}
	registryMu.Lock()
	for hwnd, w := range registry {
		if w.driver == d {
			win.DestroyWindow(hwnd)
			delete(registry, hwnd)
		}
	}
	registryMu.Unlock()
	runtime.UnlockOSThread()
	return nil
}

func (d *nativeDriver) push(ev Event) {
	d.queue = append(d.queue, ev)
}

type nativeWindow struct {
	id     int
	hwnd   win.HWND
	driver *nativeDriver
	scale  float32
	size   image.Point

	frame    *image.RGBA
	bgra     []byte
	controls geometry.Rect
	visible  bool
	closed   bool
}

func (w *nativeWindow) ID() int { return w.id }

func (w *nativeWindow) Show() error {
	if w.closed {
		return errors.New("window closed")
	}
	win.ShowWindow(w.hwnd, win.SW_SHOW)
	_, _, _ = procAllowSetForegroundWindow.Call(uintptr(windows.GetCurrentProcessId()))
	win.SetForegroundWindow(w.hwnd)
	win.UpdateWindow(w.hwnd)
	return nil
}

func (w *nativeWindow) Present(frame *image.RGBA) error {
	if w.closed {
		return errors.New("window closed")
	}
	w.frame = frame
	w.render()
	return nil
}

func (w *nativeWindow) PlaceControls(r geometry.Rect, visible bool) error {
	if w.closed {
		return errors.New("window closed")
	}
	w.controls = r
	w.visible = visible
	w.render()
	return nil
}

func (w *nativeWindow) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	registryMu.Lock()
	delete(registry, w.hwnd)
	registryMu.Unlock()
	if !win.DestroyWindow(w.hwnd) {
		return fmt.Errorf("failed to destroy window %d", w.id)
	}
	return nil
}

// render converts the last frame to the window's physical size in BGRA, draws the control group
// on top and schedules a repaint.
func (w *nativeWindow) render() {
	if w.frame == nil {
		return
	}
	img := Rescale(w.frame, w.size.X, w.size.Y)
	n := w.size.X * w.size.Y * 4
	if len(w.bgra) != n {
		w.bgra = make([]byte, n)
	}
	for y := 0; y < w.size.Y; y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+w.size.X*4]
		dst := w.bgra[y*w.size.X*4 : (y+1)*w.size.X*4]
		for i := 0; i < len(src); i += 4 {
			dst[i], dst[i+1], dst[i+2], dst[i+3] = src[i+2], src[i+1], src[i], src[i+3]
		}
	}
	if w.visible {
		confirm, cancel := w.buttons()
		fillBGRA(w.bgra, w.size, confirm, confirmColor)
		fillBGRA(w.bgra, w.size, cancel, cancelColor)
	}
	win.InvalidateRect(w.hwnd, nil, false)
}

// buttons splits the control group into its confirm and cancel squares, in physical pixels.
func (w *nativeWindow) buttons() (image.Rectangle, image.Rectangle) {
	r := w.controls.Scale(w.scale)
	side := r.H
	confirm := image.Rect(r.X, r.Y, r.X+side, r.Y+side)
	cancel := image.Rect(r.X+r.W-side, r.Y, r.X+r.W, r.Y+side)
	return confirm, cancel
}

func (w *nativeWindow) paint(hdc win.HDC) {
	if len(w.bgra) == 0 {
		return
	}
	memDC := win.CreateCompatibleDC(hdc)
	defer win.DeleteDC(memDC)

	info := win.BITMAPINFO{
		BmiHeader: win.BITMAPINFOHEADER{
			BiSize:        uint32(unsafe.Sizeof(win.BITMAPINFOHEADER{})),
			BiWidth:       int32(w.size.X),
			BiHeight:      -int32(w.size.Y),
			BiPlanes:      1,
			BiBitCount:    32,
			BiCompression: win.BI_RGB,
		},
	}
	var bits unsafe.Pointer
	hBitmap := win.CreateDIBSection(memDC, &info.BmiHeader, win.DIB_RGB_COLORS, &bits, 0, 0)
	if hBitmap == 0 {
		golog.Errorf("TOOLKIT: CreateDIBSection failed for window %d", w.id)
		return
	}
	defer win.DeleteObject(win.HGDIOBJ(hBitmap))

	// 32bpp rows are already DWORD aligned.
	copy(unsafe.Slice((*byte)(bits), len(w.bgra)), w.bgra)

	old := win.SelectObject(memDC, win.HGDIOBJ(hBitmap))
	defer win.SelectObject(memDC, old)
	win.BitBlt(hdc, 0, 0, int32(w.size.X), int32(w.size.Y), memDC, 0, 0, win.SRCCOPY)
}

// clientPoint converts a client-area physical position to event space.
func (w *nativeWindow) clientPoint(lParam uintptr) (image.Point, geometry.Point) {
	x := int(int16(win.LOWORD(uint32(lParam))))
	y := int(int16(win.HIWORD(uint32(lParam))))
	return image.Pt(x, y), geometry.ScalePoint(geometry.Point{X: x, Y: y}, 1/w.driver.focal)
}

func (w *nativeWindow) pointer(kind EventKind, button Button, lParam uintptr) {
	phys, p := w.clientPoint(lParam)
	if kind == EventPush && button == ButtonPrimary && w.visible {
		confirm, cancel := w.buttons()
		switch {
		case phys.In(confirm):
			w.driver.push(Event{Kind: EventConfirmClick, Window: w.id})
			return
		case phys.In(cancel):
			w.driver.push(Event{Kind: EventCancelClick, Window: w.id})
			return
		}
	}
	w.driver.push(Event{Kind: kind, Window: w.id, Point: p, Button: button})
}

func overlayWndProc(hwnd win.HWND, msg uint32, wParam, lParam uintptr) uintptr {
	registryMu.Lock()
	w := registry[hwnd]
	registryMu.Unlock()
	if w == nil {
		return win.DefWindowProc(hwnd, msg, wParam, lParam)
	}

	switch msg {
	case win.WM_LBUTTONDOWN:
		win.SetCapture(hwnd)
		w.pointer(EventPush, ButtonPrimary, lParam)
		return 0
	case win.WM_LBUTTONUP:
		win.ReleaseCapture()
		w.pointer(EventRelease, ButtonPrimary, lParam)
		return 0
	case win.WM_RBUTTONDOWN:
		w.pointer(EventPush, ButtonSecondary, lParam)
		return 0
	case win.WM_RBUTTONUP:
		w.pointer(EventRelease, ButtonSecondary, lParam)
		return 0
	case win.WM_MBUTTONDOWN:
		w.pointer(EventPush, ButtonMiddle, lParam)
		return 0
	case win.WM_MBUTTONUP:
		w.pointer(EventRelease, ButtonMiddle, lParam)
		return 0
	case win.WM_MOUSEMOVE:
		if wParam&mkLButton != 0 {
			w.pointer(EventDrag, ButtonPrimary, lParam)
		}
		return 0

	case win.WM_SETFOCUS:
		w.driver.push(Event{Kind: EventFocus, Window: w.id})
		return 0
	case win.WM_KILLFOCUS:
		w.driver.push(Event{Kind: EventUnfocus, Window: w.id})
		return 0

	case win.WM_KEYDOWN:
		key := KeyOther
		switch wParam {
		case win.VK_ESCAPE:
			key = KeyEscape
		case win.VK_RETURN:
			key = KeyEnter
			if lParam&extendedKeyFlag != 0 {
				key = KeyKPEnter
			}
		}
		w.driver.push(Event{Kind: EventKeyDown, Window: w.id, Key: key})
		return 0

	case win.WM_CLOSE:
		w.driver.push(Event{Kind: EventClose, Window: w.id})
		return 0

	case win.WM_PAINT:
		var ps win.PAINTSTRUCT
		hdc := win.BeginPaint(hwnd, &ps)
		w.paint(hdc)
		win.EndPaint(hwnd, &ps)
		return 0

	case win.WM_ERASEBKGND:
		return 1

	case win.WM_NCHITTEST:
		return uintptr(win.HTCLIENT)
	}
	return win.DefWindowProc(hwnd, msg, wParam, lParam)
}
