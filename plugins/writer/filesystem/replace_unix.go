//go:build !windows

package filesystem

import "os"

// replaceFile: POSIX 下 rename 为原子替换。
func replaceFile(tmpPath, dest string) error {
	return os.Rename(tmpPath, dest)
}

// syncDir 尽力 fsync 父目录。
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
