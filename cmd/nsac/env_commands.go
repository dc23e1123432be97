package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nsac/internal/config"
	"nsac/internal/env"
	"nsac/internal/sessions"
)

func newEnvCommand(ctx *commandContext) *cobra.Command {
	envCmd := &cobra.Command{
		Use:   "env",
		Short: "Manage isolated Python environments",
	}

	envCmd.AddCommand(newEnvCreateCommand(ctx))
	envCmd.AddCommand(newEnvActivateCommand(ctx))
	envCmd.AddCommand(newEnvInstallCommand(ctx))
	envCmd.AddCommand(newEnvBootstrapCommand(ctx))
	envCmd.AddCommand(newEnvListCommand(ctx))
	envCmd.AddCommand(newEnvStatsCommand(ctx))
	envCmd.AddCommand(newEnvShowCommand(ctx))
	envCmd.AddCommand(newEnvRemoveCommand(ctx))
	envCmd.AddCommand(newEnvClearCommand(ctx))

	return envCmd
}

func newEnvCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME",
		Short: "Create an isolated environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *sessions.Store, mgr *env.Manager) error {
				root, err := mgr.ResolveRoot(args[0])
				if err != nil {
					return err
				}
				if _, err := mgr.CreateEnvironment(cmd.Context(), root); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created environment at %s\n", root)
				return nil
			})
		},
	}
}

func newEnvActivateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "activate NAME",
		Short: "Activate an environment and print its bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *sessions.Store, mgr *env.Manager) error {
				root, err := mgr.ResolveRoot(args[0])
				if err != nil {
					return err
				}
				act, err := mgr.ActivateEnvironment(cmd.Context(), root)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Activated environment at %s\n", act.Root)
				fmt.Fprintf(out, "Commands resolve from %s\n", act.BinDir)
				return nil
			})
		},
	}
}

func newEnvInstallCommand(ctx *commandContext) *cobra.Command {
	var manifestFlag string

	cmd := &cobra.Command{
		Use:   "install NAME",
		Short: "Install manifest dependencies into an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *sessions.Store, mgr *env.Manager) error {
				root, err := mgr.ResolveRoot(args[0])
				if err != nil {
					return err
				}
				manifestPath, err := resolveManifestPath(cfg, manifestFlag)
				if err != nil {
					return err
				}
				act, err := mgr.ActivateEnvironment(cmd.Context(), root)
				if err != nil {
					return err
				}
				man, err := mgr.InstallDependencies(cmd.Context(), act, manifestPath)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Installed %d packages from %s\n", man.Count(), manifestPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&manifestFlag, "manifest", "m", "", "Path to the dependency manifest")
	return cmd
}

func newEnvBootstrapCommand(ctx *commandContext) *cobra.Command {
	var manifestFlag string

	cmd := &cobra.Command{
		Use:   "bootstrap NAME",
		Short: "Create, activate, and install in one pass",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *sessions.Store, mgr *env.Manager) error {
				root, err := mgr.ResolveRoot(args[0])
				if err != nil {
					return err
				}
				manifestPath, err := resolveManifestPath(cfg, manifestFlag)
				if err != nil {
					return err
				}
				session, err := mgr.Bootstrap(cmd.Context(), root, manifestPath)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Environment ready at %s\n", root)
				if session != nil {
					fmt.Fprintf(out, "Installed %d packages (session %s)\n", session.PackageCount, session.SessionID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&manifestFlag, "manifest", "m", "", "Path to the dependency manifest")
	return cmd
}

func newEnvListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bootstrap sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *sessions.Store) error {
				items, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					if items == nil {
						items = []*sessions.Session{}
					}
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No bootstrap sessions recorded")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						fmt.Sprintf("%d", item.ID),
						item.Root,
						string(item.Status),
						fmt.Sprintf("%d", item.PackageCount),
						item.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out,
					[]string{"ID", "Root", "Status", "Packages", "Updated"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newEnvStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize bootstrap sessions per lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *sessions.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				if stats.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No bootstrap sessions recorded")
					return nil
				}
				rows := [][]string{
					{string(sessions.StatusUninitialized), fmt.Sprintf("%d", stats.Uninitialized)},
					{string(sessions.StatusCreated), fmt.Sprintf("%d", stats.Created)},
					{string(sessions.StatusActivated), fmt.Sprintf("%d", stats.Activated)},
					{string(sessions.StatusDepsInstalled), fmt.Sprintf("%d", stats.Installed)},
					{"with errors", fmt.Sprintf("%d", stats.WithErrors)},
					{"total", fmt.Sprintf("%d", stats.Total)},
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(out,
					[]string{"Status", "Count"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newEnvShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Show the latest bootstrap session for an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *sessions.Store, mgr *env.Manager) error {
				root, err := mgr.ResolveRoot(args[0])
				if err != nil {
					return err
				}
				session, err := store.FindByRoot(cmd.Context(), root)
				if err != nil {
					return err
				}
				if session == nil {
					return fmt.Errorf("no bootstrap session recorded for %s", root)
				}
				if jsonOutput {
					return writeJSON(cmd, session)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session:       %s\n", session.SessionID)
				fmt.Fprintf(out, "Root:          %s\n", session.Root)
				fmt.Fprintf(out, "Status:        %s\n", session.Status)
				fmt.Fprintf(out, "Complete:      %s\n", yesNo(session.IsComplete()))
				fmt.Fprintf(out, "Packages:      %d\n", session.PackageCount)
				if session.ManifestPath != "" {
					fmt.Fprintf(out, "Manifest:      %s\n", session.ManifestPath)
				}
				if session.ErrorMessage != "" {
					fmt.Fprintf(out, "Last error:    %s\n", session.ErrorMessage)
				}
				fmt.Fprintf(out, "Updated:       %s\n", session.UpdatedAt.Local().Format(time.DateTime))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func newEnvRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Delete an environment and its session history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, store *sessions.Store, mgr *env.Manager) error {
				root, err := mgr.ResolveRoot(args[0])
				if err != nil {
					return err
				}
				if err := mgr.Remove(cmd.Context(), root); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed environment at %s\n", root)
				return nil
			})
		},
	}
}

func newEnvClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all recorded bootstrap sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *sessions.Store) error {
				cleared, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d sessions\n", cleared)
				return nil
			})
		},
	}
}

func resolveManifestPath(cfg *config.Config, flagValue string) (string, error) {
	value := strings.TrimSpace(flagValue)
	if value == "" {
		value = cfg.Bootstrap.ManifestName
	}
	expanded, err := config.ExpandPath(value)
	if err != nil {
		return "", fmt.Errorf("resolve manifest path: %w", err)
	}
	return filepath.Abs(expanded)
}
