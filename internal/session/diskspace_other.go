//go:build !unix

package session

import "errors"

func freeMB(string) (uint64, error) {
	return 0, errors.New("free space check not supported on this platform")
}
