//go:build linux

package catalog

import (
	"os"
	"syscall"
)

// ctimeNS returns the inode change time in nanoseconds, falling back to the
// modification time when the platform stat is unavailable.
func ctimeNS(fi os.FileInfo) int64 {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return st.Ctim.Sec*1e9 + st.Ctim.Nsec
	}
	return fi.ModTime().UnixNano()
}
