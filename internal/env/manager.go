package env

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"nsac/internal/config"
	"nsac/internal/logging"
	"nsac/internal/manifest"
	"nsac/internal/sessions"
)

// venvMarker is written by the interpreter's venv module into every
// environment root. Its presence is how we distinguish an environment from
// an arbitrary directory.
const venvMarker = "pyvenv.cfg"

const lockRetryDelay = 200 * time.Millisecond

// Manager drives the bootstrap procedure and keeps the session ledger in
// step with it.
type Manager struct {
	cfg    *config.Config
	store  *sessions.Store
	prov   Provisioner
	logger *slog.Logger
}

// NewManager wires a bootstrap manager. The store may be nil for callers
// that do not want ledger bookkeeping (tests of the provisioner itself).
func NewManager(cfg *config.Config, store *sessions.Store, prov Provisioner, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:    cfg,
		store:  store,
		prov:   prov,
		logger: logging.NewComponentLogger(logger, "env"),
	}
}

// ResolveRoot turns a user-supplied environment name or path into an
// absolute environment root. Bare names land under the configured
// environments directory.
func (m *Manager) ResolveRoot(nameOrPath string) (string, error) {
	trimmed := strings.TrimSpace(nameOrPath)
	if trimmed == "" {
		return "", errors.New("environment name or path is required")
	}
	if !filepath.IsAbs(trimmed) && !strings.ContainsRune(trimmed, os.PathSeparator) && !strings.HasPrefix(trimmed, "~") {
		return filepath.Join(m.cfg.Paths.EnvironmentsDir, trimmed), nil
	}
	return config.ExpandPath(trimmed)
}

// Exists reports whether an isolated environment occupies root.
func Exists(root string) bool {
	info, err := os.Stat(filepath.Join(root, venvMarker))
	return err == nil && !info.IsDir()
}

// CreateEnvironment creates an isolated environment rooted at root. Calling
// it against a directory that already holds an environment (or any other
// content) fails rather than silently succeeding.
func (m *Manager) CreateEnvironment(ctx context.Context, root string) (*sessions.Session, error) {
	if Exists(root) {
		return nil, fmt.Errorf("%w: environment already exists at %s", ErrEnvironmentCreation, root)
	}
	if err := checkCreatable(root); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEnvironmentCreation, err)
	}

	session, err := m.beginSession(ctx, root)
	if err != nil {
		return nil, err
	}

	unlock, err := m.acquireLock(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEnvironmentCreation, err)
	}
	defer unlock()

	m.logger.Info("creating environment", logging.String("root", root))
	if err := m.prov.CreateEnv(ctx, root); err != nil {
		m.recordFailure(ctx, session, err)
		return nil, fmt.Errorf("%w: %s", ErrEnvironmentCreation, err)
	}

	session = m.advance(ctx, session, sessions.StatusCreated)
	m.logger.Info("environment created", logging.String("root", root))
	return session, nil
}

// ActivateEnvironment binds command resolution to the environment's
// binaries. It fails when create has not succeeded at root first.
func (m *Manager) ActivateEnvironment(ctx context.Context, root string) (Activation, error) {
	if !Exists(root) {
		return Activation{}, fmt.Errorf("%w: no environment at %s; run create first", ErrActivation, root)
	}
	binDir := filepath.Join(root, "bin")
	if info, err := os.Stat(binDir); err != nil || !info.IsDir() {
		return Activation{}, fmt.Errorf("%w: environment at %s has no bin directory", ErrActivation, root)
	}

	act := Activation{Root: root, BinDir: binDir}

	if m.store != nil {
		session, err := m.store.FindByRoot(ctx, root)
		if err != nil {
			return Activation{}, err
		}
		if session != nil && session.Status == sessions.StatusCreated {
			m.advance(ctx, session, sessions.StatusActivated)
		}
	}

	m.logger.Info("environment activated",
		logging.String("root", root),
		logging.String("bin", binDir))
	return act, nil
}

// InstallDependencies reads the manifest and installs every declared package
// into the activated environment. The step is fail-fast and all-or-nothing:
// a resolution pass runs before anything is installed, so one bad entry
// installs nothing. Re-running with the same manifest yields the same
// installed set.
func (m *Manager) InstallDependencies(ctx context.Context, act Activation, manifestPath string) (*manifest.Manifest, error) {
	man, err := manifest.Load(manifestPath)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, manifestPath)
		}
		m.recordFailureByRoot(ctx, act.Root, err)
		return nil, fmt.Errorf("%w: %s", ErrDependencyResolution, err)
	}

	unlock, err := m.acquireLock(ctx, act.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDependencyResolution, err)
	}
	defer unlock()

	m.logger.Info("resolving dependencies",
		logging.String("manifest", manifestPath),
		logging.Int("packages", man.Count()))
	if err := m.prov.ResolveDependencies(ctx, act, manifestPath); err != nil {
		m.recordFailureByRoot(ctx, act.Root, err)
		return nil, fmt.Errorf("%w: %s", ErrDependencyResolution, err)
	}

	m.logger.Info("installing dependencies", logging.Int("packages", man.Count()))
	if err := m.prov.InstallDependencies(ctx, act, manifestPath); err != nil {
		m.recordFailureByRoot(ctx, act.Root, err)
		return nil, fmt.Errorf("%w: %s", ErrDependencyResolution, err)
	}

	if m.store != nil {
		session, err := m.store.FindByRoot(ctx, act.Root)
		if err == nil && session != nil {
			_ = m.store.SetManifestPath(ctx, session.ID, manifestPath)
			_ = m.store.SetPackageCount(ctx, session.ID, man.Count())
			if session.Status == sessions.StatusActivated {
				m.advance(ctx, session, sessions.StatusDepsInstalled)
			}
		}
	}

	m.logger.Info("dependencies installed", logging.Int("packages", man.Count()))
	return man, nil
}

// Bootstrap runs create, activate, and install sequentially, stopping at the
// first failure. No retries, no partial-install recovery.
func (m *Manager) Bootstrap(ctx context.Context, root, manifestPath string) (*sessions.Session, error) {
	if _, err := m.CreateEnvironment(ctx, root); err != nil {
		return nil, err
	}
	act, err := m.ActivateEnvironment(ctx, root)
	if err != nil {
		return nil, err
	}
	if _, err := m.InstallDependencies(ctx, act, manifestPath); err != nil {
		return nil, err
	}
	if m.store == nil {
		return nil, nil
	}
	return m.store.FindByRoot(ctx, root)
}

// Remove deletes the environment directory and its ledger entries. It
// refuses roots that neither hold an environment marker nor appear in the
// ledger, so a stray path never erases arbitrary directories.
func (m *Manager) Remove(ctx context.Context, root string) error {
	if root == "" || root == string(os.PathSeparator) {
		return fmt.Errorf("refusing to remove %q", root)
	}
	if !Exists(root) {
		known := false
		if m.store != nil {
			session, err := m.store.FindByRoot(ctx, root)
			if err != nil {
				return err
			}
			known = session != nil
		}
		if !known {
			return fmt.Errorf("refusing to remove %s: no environment there", root)
		}
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("remove environment %s: %w", root, err)
	}
	_ = os.Remove(lockPath(root))
	if m.store != nil {
		if _, err := m.store.RemoveByRoot(ctx, root); err != nil {
			return err
		}
	}
	m.logger.Info("environment removed", logging.String("root", root))
	return nil
}

func (m *Manager) beginSession(ctx context.Context, root string) (*sessions.Session, error) {
	if m.store == nil {
		return nil, nil
	}
	session, err := m.store.Begin(ctx, root, "")
	if err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}
	return session, nil
}

func (m *Manager) advance(ctx context.Context, session *sessions.Session, to sessions.Status) *sessions.Session {
	if m.store == nil || session == nil {
		return session
	}
	advanced, err := m.store.Advance(ctx, session.ID, to)
	if err != nil {
		m.logger.Warn("session transition not recorded",
			logging.Int64("session", session.ID),
			logging.String("to", string(to)),
			logging.Error(err))
		return session
	}
	return advanced
}

func (m *Manager) recordFailure(ctx context.Context, session *sessions.Session, cause error) {
	if m.store == nil || session == nil {
		return
	}
	if err := m.store.RecordFailure(ctx, session.ID, cause.Error()); err != nil {
		m.logger.Warn("session failure not recorded",
			logging.Int64("session", session.ID),
			logging.Error(err))
	}
}

func (m *Manager) recordFailureByRoot(ctx context.Context, root string, cause error) {
	if m.store == nil {
		return
	}
	session, err := m.store.FindByRoot(ctx, root)
	if err != nil || session == nil {
		return
	}
	m.recordFailure(ctx, session, cause)
}

// acquireLock guards the environment root against a concurrent bootstrap
// session. The lock file sits next to the root so it survives create.
func (m *Manager) acquireLock(ctx context.Context, root string) (func(), error) {
	timeout := time.Duration(m.cfg.Bootstrap.LockTimeout) * time.Second
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lock := flock.New(lockPath(root))
	locked, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire environment lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("environment %s is locked by another bootstrap session", root)
	}
	return func() { _ = lock.Unlock() }, nil
}

func lockPath(root string) string {
	dir := filepath.Dir(root)
	return filepath.Join(dir, "."+filepath.Base(root)+".lock")
}

// checkCreatable verifies the target is either absent or an empty, writable
// directory.
func checkCreatable(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", root, err)
		}
		if err := os.MkdirAll(filepath.Dir(root), 0o755); err != nil {
			return fmt.Errorf("target directory is not writable: %w", err)
		}
		return probeWritable(filepath.Dir(root))
	}
	if !info.IsDir() {
		return fmt.Errorf("%s exists and is not a directory", root)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("read %s: %w", root, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("directory %s is not empty", root)
	}
	return probeWritable(root)
}

func probeWritable(dir string) error {
	probe, err := os.CreateTemp(dir, ".nsac-write-probe-*")
	if err != nil {
		return fmt.Errorf("target directory is not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}
