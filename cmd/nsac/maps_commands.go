package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nsac/internal/config"
	"nsac/internal/dataset"
	"nsac/internal/services/beatsaver"
)

func newMapsCommand(ctx *commandContext) *cobra.Command {
	mapsCmd := &cobra.Command{
		Use:   "maps",
		Short: "Download and prepare the map dataset",
	}

	mapsCmd.AddCommand(newMapsDownloadCommand(ctx))
	mapsCmd.AddCommand(newMapsExtractCommand(ctx))

	return mapsCmd
}

func newMapsDownloadCommand(ctx *commandContext) *cobra.Command {
	var (
		limit     int
		outputDir string
		before    string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the latest maps from BeatSaver",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			output := strings.TrimSpace(outputDir)
			if output == "" {
				output = cfg.Paths.RawMapsDir
			} else if output, err = config.ExpandPath(output); err != nil {
				return fmt.Errorf("resolve output directory: %w", err)
			}
			if strings.TrimSpace(before) == "" {
				before = time.Now().UTC().Format(time.RFC3339)
			}

			client := beatsaver.NewClient(cfg)
			downloader := beatsaver.NewDownloader(cfg, client, output, ctx.ensureLogger())
			count, err := downloader.Run(cmd.Context(), before, limit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d maps to %s\n", count, output)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "number", "n", 100, "Maximum number of maps to download")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for downloaded maps")
	cmd.Flags().StringVarP(&before, "before", "b", "", "Only fetch maps published before this RFC 3339 timestamp")
	return cmd
}

func newMapsExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		inputDir  string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Unpack downloaded map archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			input := strings.TrimSpace(inputDir)
			if input == "" {
				input = cfg.Paths.RawMapsDir
			} else if input, err = config.ExpandPath(input); err != nil {
				return fmt.Errorf("resolve input directory: %w", err)
			}
			output := strings.TrimSpace(outputDir)
			if output == "" {
				output = cfg.Paths.FilteredMapsDir
			} else if output, err = config.ExpandPath(output); err != nil {
				return fmt.Errorf("resolve output directory: %w", err)
			}

			summary, err := dataset.NewExtractor(ctx.ensureLogger()).Extract(input, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Extracted %d archives to %s (%d skipped)\n", summary.Extracted, output, summary.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputDir, "input", "i", "", "Directory holding downloaded maps")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for extracted maps")
	return cmd
}
