//go:build unix

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile maps the first length bytes of fp read-only, shared across
// processes — the modern golang.org/x/sys/unix equivalent of the raw
// syscall.Mmap the teacher calls from filodb_mmap_unix.go.
func mmapFile(fp *os.File, length int) ([]byte, error) {
	return unix.Mmap(int(fp.Fd()), 0, length, unix.PROT_READ, unix.MAP_SHARED)
}

func unmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}

// pwriteFile writes data at offset without disturbing the file's
// current seek position — the same atomic-update primitive the teacher
// uses in masterStore to publish its master page.
func pwriteFile(fp *os.File, data []byte, offset int64) (int, error) {
	return unix.Pwrite(int(fp.Fd()), data, offset)
}
