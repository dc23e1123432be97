package env

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"nsac/internal/config"
	"nsac/internal/logging"
	"nsac/internal/services"
)

// Provisioner abstracts the external interpreter and package-manager
// collaborators so the bootstrap state machine can be tested without them.
type Provisioner interface {
	// CreateEnv materializes an isolated environment at root.
	CreateEnv(ctx context.Context, root string) error
	// ResolveDependencies verifies every manifest entry is installable
	// without mutating the environment.
	ResolveDependencies(ctx context.Context, act Activation, manifestPath string) error
	// InstallDependencies installs the manifest into the environment.
	InstallDependencies(ctx context.Context, act Activation, manifestPath string) error
}

// ExecProvisioner shells out to the configured interpreter's venv module and
// the environment's pip.
type ExecProvisioner struct {
	interpreter    string
	venvModule     string
	installTimeout time.Duration
	logger         *slog.Logger
}

// NewExecProvisioner builds the exec-backed provisioner from configuration.
func NewExecProvisioner(cfg *config.Config, logger *slog.Logger) *ExecProvisioner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ExecProvisioner{
		interpreter:    cfg.Bootstrap.Interpreter,
		venvModule:     cfg.Bootstrap.VenvModule,
		installTimeout: time.Duration(cfg.Bootstrap.InstallTimeout) * time.Second,
		logger:         logging.NewComponentLogger(logger, "provisioner"),
	}
}

func (p *ExecProvisioner) CreateEnv(ctx context.Context, root string) error {
	cmd := exec.CommandContext(ctx, p.interpreter, "-m", p.venvModule, root)
	return p.run(cmd, "create environment")
}

func (p *ExecProvisioner) ResolveDependencies(ctx context.Context, act Activation, manifestPath string) error {
	ctx, cancel := context.WithTimeout(ctx, p.installTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, act.LookPath("pip"), "install", "--dry-run", "--quiet", "--requirement", manifestPath)
	cmd.Env = act.Environ()
	return p.run(cmd, "resolve dependencies")
}

func (p *ExecProvisioner) InstallDependencies(ctx context.Context, act Activation, manifestPath string) error {
	ctx, cancel := context.WithTimeout(ctx, p.installTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, act.LookPath("pip"), "install", "--requirement", manifestPath)
	cmd.Env = act.Environ()
	return p.run(cmd, "install dependencies")
}

func (p *ExecProvisioner) run(cmd *exec.Cmd, operation string) error {
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	p.logger.Debug("running external tool",
		logging.String("operation", operation),
		logging.String("command", strings.Join(cmd.Args, " ")))

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(output.String())
		if detail != "" {
			detail = lastLines(detail, 5)
			return services.Wrap(services.ErrExternalTool, "provisioner", operation, detail, err)
		}
		return services.Wrap(services.ErrExternalTool, "provisioner", operation, "", err)
	}
	return nil
}

// lastLines trims tool output to its tail so errors stay readable; pip
// prints the actionable message last.
func lastLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return fmt.Sprintf("(%d lines elided) %s", len(lines)-n, strings.Join(lines[len(lines)-n:], "\n"))
}
