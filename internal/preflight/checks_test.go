package preflight_test

import (
	"path/filepath"
	"testing"

	"nsac/internal/preflight"
	"nsac/internal/testsupport"
)

func TestCheckInterpreterFindsStub(t *testing.T) {
	testsupport.NewConfig(t, testsupport.WithStubbedBinaries("python3"))

	result := preflight.CheckInterpreter("python3")
	if !result.Passed {
		t.Fatalf("expected stubbed interpreter to pass, got %+v", result)
	}
}

func TestCheckInterpreterMissing(t *testing.T) {
	result := preflight.CheckInterpreter("definitely-not-an-interpreter")
	if result.Passed {
		t.Fatalf("expected missing interpreter to fail, got %+v", result)
	}
}

func TestCheckWritableCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "target")
	result := preflight.CheckWritable("Target", dir)
	if !result.Passed {
		t.Fatalf("expected writable temp dir to pass, got %+v", result)
	}
}

func TestCheckDiskSpaceDisabled(t *testing.T) {
	result := preflight.CheckDiskSpace(t.TempDir(), 0)
	if !result.Passed {
		t.Fatalf("expected disabled minimum to pass, got %+v", result)
	}
}

func TestRunAllAggregates(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("python3"))
	cfg.Bootstrap.MinFreeSpaceGiB = 0

	results := preflight.RunAll(cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(results))
	}
	if !preflight.Passed(results) {
		t.Fatalf("expected all checks to pass, got %+v", results)
	}
}
