//go:build !unix

package tcr

import "os"

// lockFile only creates the lock file; one check per workspace at a time is assumed.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return func() { f.Close() }, nil
}
