package env_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nsac/internal/config"
	"nsac/internal/env"
	"nsac/internal/sessions"
	"nsac/internal/testsupport"
)

// fakeProvisioner mimics the interpreter and package manager on disk so the
// state machine can be exercised without python.
type fakeProvisioner struct {
	createErr  error
	resolveErr error
	installErr error

	createCalls  int
	resolveCalls int
	installCalls int

	installed map[string]int
}

func (f *fakeProvisioner) CreateEnv(ctx context.Context, root string) error {
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	if err := os.MkdirAll(filepath.Join(root, "bin"), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(root, "pyvenv.cfg"), []byte("home = /usr/bin\n"), 0o644)
}

func (f *fakeProvisioner) ResolveDependencies(ctx context.Context, act env.Activation, manifestPath string) error {
	f.resolveCalls++
	return f.resolveErr
}

func (f *fakeProvisioner) InstallDependencies(ctx context.Context, act env.Activation, manifestPath string) error {
	f.installCalls++
	if f.installErr != nil {
		return f.installErr
	}
	if f.installed == nil {
		f.installed = make(map[string]int)
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return err
	}
	// Mimic idempotent package-manager semantics: same manifest, same set.
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f.installed[line] = 1
	}
	return nil
}

func newManager(t *testing.T, prov env.Provisioner) (*env.Manager, *sessions.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return env.NewManager(cfg, store, prov, nil), store, cfg
}

func writeManifest(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "requirements.txt")
	testsupport.WriteFile(t, path, []byte(strings.Join(lines, "\n")+"\n"))
	return path
}

func TestBootstrapHappyPath(t *testing.T) {
	prov := &fakeProvisioner{}
	manager, store, cfg := newManager(t, prov)

	ctx := context.Background()
	root := filepath.Join(cfg.Paths.EnvironmentsDir, "model")
	manifestPath := writeManifest(t, t.TempDir(), "numpy==1.26.4", "torch>=2.1")

	session, err := manager.Bootstrap(ctx, root, manifestPath)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if session == nil || session.Status != sessions.StatusDepsInstalled {
		t.Fatalf("expected deps_installed session, got %#v", session)
	}
	if session.PackageCount != 2 {
		t.Fatalf("expected package count 2, got %d", session.PackageCount)
	}
	if session.ManifestPath != manifestPath {
		t.Fatalf("expected manifest path recorded, got %q", session.ManifestPath)
	}
	if prov.createCalls != 1 || prov.resolveCalls != 1 || prov.installCalls != 1 {
		t.Fatalf("unexpected provisioner calls: %+v", prov)
	}
	if !env.Exists(root) {
		t.Fatal("expected environment marker on disk")
	}

	recorded, err := store.FindByRoot(ctx, root)
	if err != nil || recorded == nil || recorded.Status != sessions.StatusDepsInstalled {
		t.Fatalf("ledger out of step: %#v err=%v", recorded, err)
	}
}

func TestCreateTwiceFails(t *testing.T) {
	prov := &fakeProvisioner{}
	manager, _, cfg := newManager(t, prov)

	ctx := context.Background()
	root := filepath.Join(cfg.Paths.EnvironmentsDir, "dup")
	if _, err := manager.CreateEnvironment(ctx, root); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err := manager.CreateEnvironment(ctx, root)
	if !errors.Is(err, env.ErrEnvironmentCreation) {
		t.Fatalf("expected ErrEnvironmentCreation, got %v", err)
	}
	if prov.createCalls != 1 {
		t.Fatalf("second create must not reach the provisioner, calls=%d", prov.createCalls)
	}
}

func TestCreateRejectsOccupiedDirectory(t *testing.T) {
	manager, _, cfg := newManager(t, &fakeProvisioner{})

	root := filepath.Join(cfg.Paths.EnvironmentsDir, "occupied")
	testsupport.WriteFile(t, filepath.Join(root, "stray.txt"), []byte("x"))

	_, err := manager.CreateEnvironment(context.Background(), root)
	if !errors.Is(err, env.ErrEnvironmentCreation) {
		t.Fatalf("expected ErrEnvironmentCreation for non-empty dir, got %v", err)
	}
}

func TestCreateRejectsUnwritableTarget(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	prov := &fakeProvisioner{}
	manager, _, cfg := newManager(t, prov)

	parent := filepath.Join(cfg.Paths.EnvironmentsDir, "sealed")
	if err := os.MkdirAll(parent, 0o755); err != nil {
		t.Fatalf("mkdir parent: %v", err)
	}
	if err := os.Chmod(parent, 0o555); err != nil {
		t.Fatalf("chmod parent: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(parent, 0o755) })

	_, err := manager.CreateEnvironment(context.Background(), filepath.Join(parent, "env"))
	if !errors.Is(err, env.ErrEnvironmentCreation) {
		t.Fatalf("expected ErrEnvironmentCreation for unwritable target, got %v", err)
	}
	if prov.createCalls != 0 {
		t.Fatalf("unwritable target must not reach the provisioner, calls=%d", prov.createCalls)
	}
}

func TestActivateBeforeCreateFails(t *testing.T) {
	manager, _, cfg := newManager(t, &fakeProvisioner{})

	root := filepath.Join(cfg.Paths.EnvironmentsDir, "ghost")
	_, err := manager.ActivateEnvironment(context.Background(), root)
	if !errors.Is(err, env.ErrActivation) {
		t.Fatalf("expected ErrActivation, got %v", err)
	}
}

func TestActivationBindsCommandResolution(t *testing.T) {
	manager, _, cfg := newManager(t, &fakeProvisioner{})

	ctx := context.Background()
	root := filepath.Join(cfg.Paths.EnvironmentsDir, "resolve")
	if _, err := manager.CreateEnvironment(ctx, root); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	act, err := manager.ActivateEnvironment(ctx, root)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	if got := act.LookPath("pip"); got != filepath.Join(root, "bin", "pip") {
		t.Fatalf("LookPath resolved outside the environment: %s", got)
	}

	var pathVar, virtualEnv string
	for _, kv := range act.Environ() {
		if strings.HasPrefix(kv, "PATH=") {
			pathVar = kv
		}
		if strings.HasPrefix(kv, "VIRTUAL_ENV=") {
			virtualEnv = kv
		}
	}
	if !strings.HasPrefix(pathVar, "PATH="+filepath.Join(root, "bin")+string(os.PathListSeparator)) {
		t.Fatalf("PATH does not resolve inside the environment first: %s", pathVar)
	}
	if virtualEnv != "VIRTUAL_ENV="+root {
		t.Fatalf("unexpected VIRTUAL_ENV: %s", virtualEnv)
	}
}

func TestInstallMissingManifest(t *testing.T) {
	prov := &fakeProvisioner{}
	manager, store, cfg := newManager(t, prov)

	ctx := context.Background()
	root := filepath.Join(cfg.Paths.EnvironmentsDir, "nomanifest")
	if _, err := manager.CreateEnvironment(ctx, root); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	act, err := manager.ActivateEnvironment(ctx, root)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	_, err = manager.InstallDependencies(ctx, act, filepath.Join(t.TempDir(), "requirements.txt"))
	if !errors.Is(err, env.ErrManifestNotFound) {
		t.Fatalf("expected ErrManifestNotFound, got %v", err)
	}
	if prov.resolveCalls != 0 || prov.installCalls != 0 {
		t.Fatal("missing manifest must leave the installed set untouched")
	}

	session, err := store.FindByRoot(ctx, root)
	if err != nil || session == nil {
		t.Fatalf("session lookup failed: %#v err=%v", session, err)
	}
	if session.Status != sessions.StatusActivated {
		t.Fatalf("failure must leave state unchanged, got %s", session.Status)
	}
}

func TestInstallResolutionFailureIsAllOrNothing(t *testing.T) {
	prov := &fakeProvisioner{resolveErr: errors.New("no matching distribution for nonexistent-package==0.0.0")}
	manager, store, cfg := newManager(t, prov)

	ctx := context.Background()
	root := filepath.Join(cfg.Paths.EnvironmentsDir, "badpkg")
	if _, err := manager.CreateEnvironment(ctx, root); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	act, err := manager.ActivateEnvironment(ctx, root)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	manifestPath := writeManifest(t, t.TempDir(), "requests==2.31.0", "nonexistent-package==0.0.0")
	_, err = manager.InstallDependencies(ctx, act, manifestPath)
	if !errors.Is(err, env.ErrDependencyResolution) {
		t.Fatalf("expected ErrDependencyResolution, got %v", err)
	}
	if prov.installCalls != 0 {
		t.Fatal("resolution failure must not install anything")
	}
	if len(prov.installed) != 0 {
		t.Fatalf("expected empty installed set, got %v", prov.installed)
	}

	session, err := store.FindByRoot(ctx, root)
	if err != nil || session == nil {
		t.Fatalf("session lookup failed: %#v err=%v", session, err)
	}
	if session.Status != sessions.StatusActivated {
		t.Fatalf("failure must leave state unchanged, got %s", session.Status)
	}
	if !strings.Contains(session.ErrorMessage, "nonexistent-package") {
		t.Fatalf("expected failure recorded, got %q", session.ErrorMessage)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	prov := &fakeProvisioner{}
	manager, _, cfg := newManager(t, prov)

	ctx := context.Background()
	root := filepath.Join(cfg.Paths.EnvironmentsDir, "idem")
	manifestPath := writeManifest(t, t.TempDir(), "numpy==1.26.4", "requests")

	if _, err := manager.Bootstrap(ctx, root, manifestPath); err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	act, err := manager.ActivateEnvironment(ctx, root)
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if _, err := manager.InstallDependencies(ctx, act, manifestPath); err != nil {
		t.Fatalf("second install failed: %v", err)
	}
	if len(prov.installed) != 2 {
		t.Fatalf("expected 2 packages after re-install, got %d", len(prov.installed))
	}
}

func TestBootstrapStopsAtFirstFailure(t *testing.T) {
	prov := &fakeProvisioner{createErr: errors.New("permission denied")}
	manager, _, cfg := newManager(t, prov)

	root := filepath.Join(cfg.Paths.EnvironmentsDir, "halted")
	_, err := manager.Bootstrap(context.Background(), root, "unused")
	if !errors.Is(err, env.ErrEnvironmentCreation) {
		t.Fatalf("expected ErrEnvironmentCreation, got %v", err)
	}
	if prov.resolveCalls != 0 || prov.installCalls != 0 {
		t.Fatal("later steps must not run after create fails")
	}
}

func TestResolveRoot(t *testing.T) {
	manager, _, cfg := newManager(t, &fakeProvisioner{})

	root, err := manager.ResolveRoot("model")
	if err != nil {
		t.Fatalf("ResolveRoot failed: %v", err)
	}
	if root != filepath.Join(cfg.Paths.EnvironmentsDir, "model") {
		t.Fatalf("bare names must land under the environments dir, got %s", root)
	}

	abs := filepath.Join(t.TempDir(), "elsewhere")
	root, err = manager.ResolveRoot(abs)
	if err != nil {
		t.Fatalf("ResolveRoot failed: %v", err)
	}
	if root != abs {
		t.Fatalf("absolute paths must pass through, got %s", root)
	}

	if _, err := manager.ResolveRoot("  "); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestRemoveDeletesEnvironmentAndLedger(t *testing.T) {
	prov := &fakeProvisioner{}
	manager, store, cfg := newManager(t, prov)

	ctx := context.Background()
	root := filepath.Join(cfg.Paths.EnvironmentsDir, "doomed")
	if _, err := manager.CreateEnvironment(ctx, root); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := manager.Remove(ctx, root); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if env.Exists(root) {
		t.Fatal("expected environment to be gone")
	}
	session, err := store.FindByRoot(ctx, root)
	if err != nil {
		t.Fatalf("FindByRoot failed: %v", err)
	}
	if session != nil {
		t.Fatalf("expected ledger cleared, got %#v", session)
	}
}

func TestRemoveRefusesNonEnvironmentDirectory(t *testing.T) {
	manager, _, cfg := newManager(t, &fakeProvisioner{})

	dir := filepath.Join(cfg.Paths.EnvironmentsDir, "not-an-env")
	testsupport.WriteFile(t, filepath.Join(dir, "keep.txt"), []byte("x"))

	if err := manager.Remove(context.Background(), dir); err == nil {
		t.Fatal("expected refusal to remove a directory without an environment")
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.txt")); err != nil {
		t.Fatalf("directory contents must survive a refused remove: %v", err)
	}
}

func TestRemoveClearsStaleLedgerEntry(t *testing.T) {
	manager, store, cfg := newManager(t, &fakeProvisioner{})

	// Ledger entry whose environment directory was deleted out of band.
	root := filepath.Join(cfg.Paths.EnvironmentsDir, "stale")
	testsupport.BeginSession(t, store, root, "")

	ctx := context.Background()
	if err := manager.Remove(ctx, root); err != nil {
		t.Fatalf("Remove of ledger-only root failed: %v", err)
	}
	session, err := store.FindByRoot(ctx, root)
	if err != nil {
		t.Fatalf("FindByRoot failed: %v", err)
	}
	if session != nil {
		t.Fatalf("expected stale ledger entry cleared, got %#v", session)
	}
}
