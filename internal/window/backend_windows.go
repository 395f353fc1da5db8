//go:build windows

package window

import (
	"fmt"
	"image"
	"sync"
	"time"
	"unsafe"

	"github.com/lxn/win"
	"golang.org/x/sys/windows"
)

const dwmwaExtendedFrameBounds = 9

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")

	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procGetConsoleWindow = kernel32.NewProc("GetConsoleWindow")

	dwmapi                    = windows.NewLazySystemDLL("dwmapi.dll")
	procDwmGetWindowAttribute = dwmapi.NewProc("DwmGetWindowAttribute")

	// EnumWindows callbacks are a limited resource, so one callback serves
	// every enumeration and enumMu serialises access to enumResult.
	enumMu       sync.Mutex
	enumResult   []windows.HWND
	enumCallback = windows.NewCallback(func(hwnd windows.HWND, _ uintptr) uintptr {
		if windows.IsWindowVisible(hwnd) {
			enumResult = append(enumResult, hwnd)
		}
		return 1
	})
)

// NewSystemBackend returns the platform window backend.
func NewSystemBackend() Backend {
	return &win32Backend{}
}

type win32Backend struct{}

func (b *win32Backend) Enumerate() ([]Window, error) {
	enumMu.Lock()
	enumResult = enumResult[:0]
	err := windows.EnumWindows(enumCallback, nil)
	handles := append([]windows.HWND(nil), enumResult...)
	enumMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}

	self := windows.GetCurrentProcessId()
	console := consoleWindow()

	out := make([]Window, 0, len(handles))
	for _, hwnd := range handles {
		title := windowTitle(hwnd)
		if title == "" {
			continue
		}
		bounds, ok := windowBounds(hwnd)
		if !ok {
			continue
		}
		var pid uint32
		windows.GetWindowThreadProcessId(hwnd, &pid)
		out = append(out, Window{
			Handle: Handle(hwnd),
			Title:  title,
			Bounds: bounds,
			Own:    pid == self || (console != 0 && hwnd == console),
		})
	}
	return out, nil
}

func (b *win32Backend) Raise(w Window) error {
	hwnd := win.HWND(w.Handle)
	if win.IsIconic(hwnd) {
		win.ShowWindow(hwnd, win.SW_RESTORE)
		time.Sleep(100 * time.Millisecond)
	}
	win.BringWindowToTop(hwnd)
	if !win.SetForegroundWindow(hwnd) {
		return fmt.Errorf("SetForegroundWindow refused for %q", w.Title)
	}
	return nil
}

func windowTitle(hwnd windows.HWND) string {
	length, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	n, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

// consoleWindow returns the console window this process is attached to, or 0.
func consoleWindow() windows.HWND {
	if procGetConsoleWindow.Find() != nil {
		return 0
	}
	hwnd, _, _ := procGetConsoleWindow.Call()
	return windows.HWND(hwnd)
}

// windowBounds prefers the DWM extended frame bounds, which exclude the
// invisible resize border and drop shadow of Windows 10 and later.
func windowBounds(hwnd windows.HWND) (image.Rectangle, bool) {
	if procDwmGetWindowAttribute.Find() == nil {
		var r windows.Rect
		ret, _, _ := procDwmGetWindowAttribute.Call(
			uintptr(hwnd),
			dwmwaExtendedFrameBounds,
			uintptr(unsafe.Pointer(&r)),
			unsafe.Sizeof(r),
		)
		// DwmGetWindowAttribute returns S_OK (0) on success.
		if ret == 0 {
			return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)), true
		}
	}

	var wr win.RECT
	if !win.GetWindowRect(win.HWND(hwnd), &wr) {
		return image.Rectangle{}, false
	}
	return image.Rect(int(wr.Left), int(wr.Top), int(wr.Right), int(wr.Bottom)), true
}
