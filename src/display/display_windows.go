//go:build windows

package display

import (
	"fmt"
	"syscall"
	"unsafe"

	"screen-select/src/geometry"
	"screen-select/src/topology"

	"github.com/kataras/golog"
	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

var (
	shcoreDLL                  = windows.NewLazySystemDLL("shcore.dll")
	procGetDpiForMonitor       = shcoreDLL.NewProc("GetDpiForMonitor")
	procSetProcessDpiAwareness = shcoreDLL.NewProc("SetProcessDpiAwareness")
	user32DLL                  = windows.NewLazySystemDLL("user32.dll")
	procSetProcessDPIAware     = user32DLL.NewProc("SetProcessDPIAware")
)

const (
	mdtEffectiveDPI           = 0
	processPerMonitorDPIAware = 2
)

// Enumerator reads monitors through EnumDisplayMonitors.
type Enumerator struct{}

// New returns the platform enumerator.
func New() topology.DisplayEnumerator { return Enumerator{} }

// EnableDPIAwareness switches the process to per-monitor DPI awareness so monitor rectangles and
// window positions are reported in physical pixels. It must run before any window is created.
func EnableDPIAwareness() {
	if err := procSetProcessDpiAwareness.Find(); err == nil {
		_, _, _ = procSetProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		return
	}
	if err := procSetProcessDPIAware.Find(); err == nil {
		_, _, _ = procSetProcessDPIAware.Call()
	}
}

// Displays enumerates the monitors in window-system order.
func (Enumerator) Displays() ([]topology.Display, error) {
	state := &enumState{}
	callback := syscall.NewCallback(state.enumProc)
	if ok := win.EnumDisplayMonitors(0, nil, callback, 0); !ok {
		return nil, fmt.Errorf("EnumDisplayMonitors failed: %w", syscall.GetLastError())
	}
	if len(state.list) == 0 {
		return nil, fmt.Errorf("no monitors detected")
	}
	return toDisplays(state.list), nil
}

// Cursor returns the pointer position in physical pixels, which is origin space for a per-monitor
// DPI aware process.
func (Enumerator) Cursor() (geometry.Point, error) {
	var pt win.POINT
	if !win.GetCursorPos(&pt) {
		return geometry.Point{}, ErrCursorUnavailable
	}
	return geometry.Point{X: int(pt.X), Y: int(pt.Y)}, nil
}

type enumState struct {
	list []monitor
}

func (s *enumState) enumProc(hMonitor win.HMONITOR, hdc win.HDC, rect *win.RECT, lparam uintptr) uintptr {
	var info win.MONITORINFO
	info.CbSize = uint32(unsafe.Sizeof(info))
	if !win.GetMonitorInfo(hMonitor, &info) {
		return 1
	}
	r := info.RcMonitor
	dpi, err := monitorDPI(hMonitor)
	if err != nil {
		golog.Warnf("DISPLAY: %v, assuming %d dpi", err, baseDPI)
		dpi = baseDPI
	}
	s.list = append(s.list, monitor{
		physical: geometry.Rect{
			X: int(r.Left),
			Y: int(r.Top),
			W: int(r.Right - r.Left),
			H: int(r.Bottom - r.Top),
		},
		dpi: dpi,
	})
	return 1
}

func monitorDPI(hMonitor win.HMONITOR) (uint32, error) {
	if err := procGetDpiForMonitor.Find(); err != nil {
		return baseDPI, fmt.Errorf("GetDpiForMonitor not found")
	}
	var dx, dy uint32
	r, _, _ := procGetDpiForMonitor.Call(
		uintptr(hMonitor),
		mdtEffectiveDPI,
		uintptr(unsafe.Pointer(&dx)),
		uintptr(unsafe.Pointer(&dy)),
	)
	if r != 0 {
		return baseDPI, fmt.Errorf("GetDpiForMonitor failed: 0x%x", r)
	}
	return dx, nil
}
