package tools

import (
	"os"
	"strconv"
)

// WritePidFile writes the current process PID to pidFile. A no-op when
// pidFile is empty.
func WritePidFile(pidFile string) error {
	if pidFile == "" {
		return nil
	}
	pid := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(pidFile, []byte(pid), 0644)
}
