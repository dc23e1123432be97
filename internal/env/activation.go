package env

import (
	"os"
	"path/filepath"
	"strings"
)

// Activation binds command resolution to an isolated environment's binaries
// for the lifetime of a session. It is only handed out by
// Manager.ActivateEnvironment, which enforces that create succeeded first.
type Activation struct {
	Root   string
	BinDir string
}

// Environ returns the process environment with PATH resolving inside the
// environment first and VIRTUAL_ENV pointing at its root.
func (a Activation) Environ() []string {
	base := os.Environ()
	result := make([]string, 0, len(base)+2)
	pathSet := false
	for _, kv := range base {
		switch {
		case strings.HasPrefix(kv, "PATH="):
			result = append(result, "PATH="+a.BinDir+string(os.PathListSeparator)+strings.TrimPrefix(kv, "PATH="))
			pathSet = true
		case strings.HasPrefix(kv, "VIRTUAL_ENV="):
			// replaced below
		default:
			result = append(result, kv)
		}
	}
	if !pathSet {
		result = append(result, "PATH="+a.BinDir)
	}
	result = append(result, "VIRTUAL_ENV="+a.Root)
	return result
}

// LookPath returns the path a tool resolves to inside the environment.
func (a Activation) LookPath(tool string) string {
	return filepath.Join(a.BinDir, tool)
}
