//go:build !linux

package catalog

import "os"

func ctimeNS(fi os.FileInfo) int64 {
	return fi.ModTime().UnixNano()
}
