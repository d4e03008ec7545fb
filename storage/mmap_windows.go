//go:build windows

package storage

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mmapFile maps the first length bytes of fp read-only — the
// golang.org/x/sys/windows equivalent of the teacher's
// CreateFileMapping/MapViewOfFile pair in filodb_mmap_windows.go.
func mmapFile(fp *os.File, length int) ([]byte, error) {
	h, err := windows.CreateFileMapping(windows.Handle(fp.Fd()), nil, windows.PAGE_READONLY, 0, uint32(length), nil)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(length))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length), nil
}

func unmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&data[0])))
}

func pwriteFile(fp *os.File, data []byte, offset int64) (int, error) {
	return fp.WriteAt(data, offset)
}
