//go:build windows

package hook

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/methetech/WheelScrollFixer/internal/filter"
)

const (
	whMouseLL    = 14
	hcAction     = 0
	wmMouseWheel = 0x020A
	wmQuit       = 0x0012
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
)

type msllHookStruct struct {
	X, Y        int32
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msg struct {
	Hwnd    windows.HWND
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	X, Y    int32
}

// The OS calls a plain function pointer, so the installed System is reached
// through this slot. Only one low-level hook is installed per process.
var (
	active     atomic.Pointer[System]
	hookProc   uintptr
	hookProcMu sync.Once
)

// System is the Windows low-level mouse hook.
type System struct {
	epoch time.Time

	mu       sync.Mutex
	hook     uintptr
	threadID uint32
	cb       Callback
}

// NewSystem returns the platform hook for this OS.
func NewSystem() (Platform, error) {
	return &System{epoch: time.Now()}, nil
}

// Install implements Platform. It must run on the goroutine that will call Run.
func (s *System) Install(cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hook != 0 {
		return ErrAlreadyRunning
	}
	s.cb = cb
	s.threadID = windows.GetCurrentThreadId()
	if !active.CompareAndSwap(nil, s) {
		return ErrAlreadyRunning
	}
	hookProcMu.Do(func() {
		hookProc = windows.NewCallback(lowLevelMouseProc)
	})

	h, _, err := procSetWindowsHookExW.Call(whMouseLL, hookProc, 0, 0)
	if h == 0 {
		active.Store(nil)
		return fmt.Errorf("SetWindowsHookExW: %w", err)
	}
	s.hook = h
	return nil
}

// Run implements Platform.
func (s *System) Run() error {
	var m msg
	for {
		r, _, err := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		switch int32(r) {
		case -1:
			return fmt.Errorf("GetMessageW: %w", err)
		case 0:
			return nil
		}
	}
}

// Uninstall implements Platform.
func (s *System) Uninstall() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hook == 0 {
		return nil
	}
	r, _, err := procUnhookWindowsHookEx.Call(s.hook)
	s.hook = 0
	active.CompareAndSwap(s, nil)
	if r == 0 {
		return fmt.Errorf("UnhookWindowsHookEx: %w", err)
	}
	return nil
}

// PostQuit implements Platform.
func (s *System) PostQuit() error {
	s.mu.Lock()
	tid := s.threadID
	s.mu.Unlock()
	if tid == 0 {
		return nil
	}
	r, _, err := procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
	if r == 0 {
		return fmt.Errorf("PostThreadMessageW: %w", err)
	}
	return nil
}

// ForegroundWindow implements filter.Foreground.
func (s *System) ForegroundWindow() filter.WindowHandle {
	return filter.WindowHandle(windows.GetForegroundWindow())
}

// ProcessName implements filter.Foreground.
func (s *System) ProcessName(h filter.WindowHandle) (string, error) {
	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(windows.HWND(h), &pid); err != nil {
		return "", err
	}
	proc, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return "", err
	}
	defer func() {
		// Best-effort close for a query-only handle.
		_ = windows.CloseHandle(proc)
	}()

	buf := make([]uint16, 1024)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(proc, 0, &buf[0], &size); err != nil {
		return "", err
	}
	return filepath.Base(windows.UTF16ToString(buf[:size])), nil
}

func lowLevelMouseProc(nCode, wParam, lParam uintptr) uintptr {
	s := active.Load()
	if s != nil && int32(nCode) == hcAction && wParam == wmMouseWheel {
		info := (*msllHookStruct)(unsafe.Pointer(lParam))
		ev := Event{
			Delta: int32(int16(info.MouseData >> 16)),
			At:    time.Since(s.epoch),
		}
		if s.cb != nil && s.cb(ev) == filter.Suppress {
			return 1
		}
	}
	r, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return r
}
