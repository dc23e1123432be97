package preflight

import (
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"nsac/internal/config"
)

// Result describes the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check against the provided configuration.
func RunAll(cfg *config.Config) []Result {
	return []Result{
		CheckInterpreter(cfg.Bootstrap.Interpreter),
		CheckWritable("Environments directory", cfg.Paths.EnvironmentsDir),
		CheckWritable("Data directory", cfg.Paths.DataDir),
		CheckDiskSpace(cfg.Paths.DataDir, cfg.Bootstrap.MinFreeSpaceGiB),
	}
}

// Passed reports whether every result in the set succeeded.
func Passed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

// CheckInterpreter verifies the configured interpreter resolves on PATH.
func CheckInterpreter(interpreter string) Result {
	const name = "Interpreter"
	if interpreter == "" {
		return Result{Name: name, Detail: "no interpreter configured"}
	}
	path, err := exec.LookPath(interpreter)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not found on PATH", interpreter)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckWritable verifies a directory exists (or can be created) and accepts
// writes.
func CheckWritable(name, dir string) Result {
	if dir == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("cannot create %s (%v)", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s is not writable (%v)", dir, err)}
	}
	probePath := probe.Name()
	_ = probe.Close()
	_ = os.Remove(probePath)
	return Result{Name: name, Passed: true, Detail: dir}
}

// CheckDiskSpace verifies the filesystem backing dir has at least minGiB
// free.
func CheckDiskSpace(dir string, minGiB int) Result {
	const name = "Disk space"
	if dir == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if minGiB <= 0 {
		return Result{Name: name, Passed: true, Detail: "minimum disabled"}
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s (%v)", dir, err)}
	}

	freeBytes := stat.Bavail * uint64(stat.Bsize)
	minBytes := uint64(minGiB) << 30
	if freeBytes < minBytes {
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("%.1f GiB free, need %d GiB", float64(freeBytes)/(1<<30), minGiB),
		}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("%.1f GiB free", float64(freeBytes)/(1<<30)),
	}
}
