//go:build !linux && !darwin

package lucien

import "os"

func changeTime(info os.FileInfo) int64 {
	return info.ModTime().Unix()
}
