package sockio

import (
	"net"
	"os"
	"time"
)

// Probe reports whether a live listener is accepting connections at path.
// It checks that the file exists and is a socket before dialing, so a plain
// file at the path never counts as a live socket.
func Probe(path string, timeout time.Duration) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}

	if stat.Mode()&os.ModeSocket == 0 {
		return false
	}

	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()

	return true
}
