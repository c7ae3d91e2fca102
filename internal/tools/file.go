package tools

import "os"

// FileExists reports whether a file is present at the given path.
func FileExists(name string) bool {
	_, err := os.Stat(name)
	return !os.IsNotExist(err)
}
