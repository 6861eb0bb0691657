//go:build darwin

package lucien

import (
	"os"
	"syscall"
)

func changeTime(info os.FileInfo) int64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ctimespec.Sec
	}
	return info.ModTime().Unix()
}
