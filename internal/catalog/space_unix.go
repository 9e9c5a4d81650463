//go:build unix

package catalog

import "syscall"

// availableSpace reports the bytes available to an unprivileged caller
// on the filesystem containing path.
func availableSpace(path string) (int64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
