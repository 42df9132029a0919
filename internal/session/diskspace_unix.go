//go:build unix

package session

import "golang.org/x/sys/unix"

// freeMB returns the space available to unprivileged users on the
// filesystem holding path.
func freeMB(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize) / (1024 * 1024), nil
}
