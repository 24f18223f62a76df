package main

import (
	"fmt"
	"os"
	"time"

	"partpipe/internal/app"
	"partpipe/internal/config"
	"partpipe/internal/encryption"
	"partpipe/internal/pipeline"
	"partpipe/internal/watcher"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Run", "Export").
func newApp(operation string) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// readPassphrase prompts for a passphrase twice without echoing.
func readPassphrase() (string, error) {
	fmt.Fprint(os.Stderr, "Passphrase for the source encryption key: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(first), nil
}

var rootCmd = &cobra.Command{
	Use:   "partpipe",
	Short: "CAD part export pipeline",
	Long:  "partpipe exports changed CAD part files to STEP, slices them for print metrics, generates bill-of-materials files, and commits the results.",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID: %s\n", hostID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])

		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
		if enc == nil || enc.IsConfigured() {
			return nil
		}

		passphrase, err := readPassphrase()
		if err != nil {
			return err
		}
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating encryption keys: %w", err)
		}
		fmt.Printf("Encryption keys written under %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Host ID:   %s\n", cfg.HostID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Exporter:  %s\n", cfg.Exporter.Command)
		fmt.Printf("Slicer:    %s\n", cfg.Slicer.Type)
		fmt.Printf("Mirror:    %s\n", cfg.Mirror.Type)
		return nil
	},
}

// runRequest builds a RunRequest from shared run/export flags.
func runRequest(cmd *cobra.Command, args []string, slice, push bool) pipeline.RunRequest {
	ref, _ := cmd.Flags().GetString("changed")
	prune, _ := cmd.Flags().GetBool("prune")
	return pipeline.RunRequest{
		Ref:   ref,
		Paths: args,
		Slice: slice,
		Push:  push,
		Prune: prune,
	}
}

func printSummary(summary *pipeline.RunSummary) {
	fmt.Printf("Jobs: %d  exported: %d  skipped: %d  failed: %d\n",
		summary.Jobs, summary.Exported, summary.Skipped, summary.Failed)
	if summary.Sliced > 0 {
		fmt.Printf("Sliced %d part(s)\n", summary.Sliced)
	}
	for _, bom := range summary.BOMPaths {
		fmt.Printf("BOM: %s\n", bom)
	}
	for _, pruned := range summary.Pruned {
		fmt.Printf("Pruned: %s\n", pruned)
	}
	if summary.Committed {
		fmt.Println("Changes committed.")
	} else {
		fmt.Println("Nothing to commit.")
	}
}

// run command
var runCmd = &cobra.Command{
	Use:   "run [PATH...]",
	Short: "Run the full pipeline: export, slice, BOM, commit, push",
	RunE: func(cmd *cobra.Command, args []string) error {
		noSlice, _ := cmd.Flags().GetBool("no-slice")
		noPush, _ := cmd.Flags().GetBool("no-push")
		continueOnError, _ := cmd.Flags().GetBool("continue-on-error")

		cfg, err := readConfig()
		if err != nil {
			return err
		}
		if continueOnError {
			cfg.Pipeline.ContinueOnError = true
		}

		a, err := app.NewApp(cfg, "Run")
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()

		summary, err := a.Run(runRequest(cmd, args, !noSlice, !noPush))
		if summary != nil {
			printSummary(summary)
		}
		return err
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export [PATH...]",
	Short: "Export changed part files to STEP and commit the outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Export")
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Run(runRequest(cmd, args, false, false))
		if summary != nil {
			printSummary(summary)
		}
		return err
	},
}

// slice command
var sliceCmd = &cobra.Command{
	Use:   "slice STEP_FILE...",
	Short: "Slice STEP files and write their print stats",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Slice")
		if err != nil {
			return err
		}
		defer a.Close()

		metrics, err := a.SlicePaths(args)
		for _, m := range metrics {
			fmt.Printf("%s  %.2fg (%.2fg supports)  %s  %s\n",
				m.PartName, m.TotalWeightG, m.SupportWeightG, m.PrintTime, m.DimensionsMM)
		}
		return err
	},
}

// bom command
var bomCmd = &cobra.Command{
	Use:   "bom [DIR]",
	Short: "Generate a bill of materials from slicer stats",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BOM")
		if err != nil {
			return err
		}
		defer a.Close()

		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		bomPath, err := a.GenerateBOM(dir)
		if err != nil {
			return err
		}
		fmt.Printf("BOM written to %s\n", bomPath)
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status [PATH]",
	Short: "View the export state of part files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")

		a, err := newApp("Status")
		if err != nil {
			return err
		}
		defer a.Close()

		target := "."
		if len(args) > 0 {
			target = args[0]
		}

		statuses, err := a.Status(target, recursive)
		if err != nil {
			return err
		}

		if len(statuses) == 0 {
			fmt.Println("No part files found.")
			return nil
		}

		for _, s := range statuses {
			var indicator string
			switch {
			case s.HasExport && s.Stale:
				indicator = "ES"
			case s.HasExport:
				indicator = "E "
			default:
				indicator = "? "
			}
			last := s.LastStatus
			if last == "" {
				last = "-"
			}
			fmt.Printf("%s %-8s %s\n", indicator, last, s.RelativePath)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View pipeline run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		showExports, _ := cmd.Flags().GetBool("exports")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No pipeline runs recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-10s  %s  %-10s  %s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)

			if !showExports {
				continue
			}
			records, err := a.Exports(op.ID)
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Printf("    %-8s  %s -> %s\n", rec.Status, rec.SourcePath, rec.OutputPath)
			}
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch [PATH...]",
	Short: "Watch for part file changes and run the pipeline on each batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		noSlice, _ := cmd.Flags().GetBool("no-slice")
		noPush, _ := cmd.Flags().GetBool("no-push")

		cfg, err := readConfig()
		if err != nil {
			return err
		}

		roots := args
		if len(roots) == 0 {
			roots = []string{"."}
		}

		w, err := watcher.NewWatcher(roots, watchOptions(cfg))
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer w.Stop()

		fmt.Printf("Watching %d path(s) for part changes...\n", len(roots))

		for batch := range w.Events() {
			fmt.Printf("Change detected: %d part file(s)\n", len(batch))
			if err := runBatch(batch, !noSlice, !noPush); err != nil {
				// A failed batch must not stop the watch loop. The failure
				// is recorded in the run history and logged.
				fmt.Fprintf(os.Stderr, "pipeline run failed: %v\n", err)
			}
		}
		return nil
	},
}

// watchOptions maps the watch configuration onto watcher options. Unset
// source settings fall back to the pipeline defaults so the watcher reports
// the same files the pipeline would export.
func watchOptions(cfg *config.Config) watcher.Options {
	defaults := pipeline.DefaultOptions()

	extensions := cfg.Source.Extensions
	if len(extensions) == 0 {
		extensions = defaults.SourceExtensions
	}
	exportDir := cfg.Source.ExportDir
	if exportDir == "" {
		exportDir = defaults.ExportDirName
	}

	return watcher.Options{
		Extensions: extensions,
		SkipDirs:   []string{exportDir, ".git"},
		Debounce:   time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
	}
}

// runBatch runs one full pipeline invocation for a watch batch. Each batch
// gets its own App so the operation record and history snapshot lifecycle
// match a standalone `partpipe run`.
func runBatch(paths []string, slice, push bool) error {
	a, err := newApp("Watch")
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.Run(pipeline.RunRequest{Paths: paths, Slice: slice, Push: push})
	if summary != nil {
		printSummary(summary)
	}
	return err
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	runCmd.Flags().String("changed", "", "Export parts changed since this git ref")
	runCmd.Flags().Bool("continue-on-error", false, "Keep running past job failures")
	runCmd.Flags().Bool("no-slice", false, "Skip the slicing and BOM stages")
	runCmd.Flags().Bool("no-push", false, "Commit but do not push")
	runCmd.Flags().Bool("prune", false, "Remove outputs whose source part is gone")
	rootCmd.AddCommand(runCmd)

	exportCmd.Flags().String("changed", "", "Export parts changed since this git ref")
	exportCmd.Flags().Bool("prune", false, "Remove outputs whose source part is gone")
	rootCmd.AddCommand(exportCmd)

	rootCmd.AddCommand(sliceCmd)
	rootCmd.AddCommand(bomCmd)

	statusCmd.Flags().BoolP("recursive", "r", false, "Recurse into subdirectories")
	rootCmd.AddCommand(statusCmd)

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	historyCmd.Flags().Bool("exports", false, "Show per-part export records for each run")
	rootCmd.AddCommand(historyCmd)

	watchCmd.Flags().Bool("no-slice", false, "Skip the slicing and BOM stages")
	watchCmd.Flags().Bool("no-push", false, "Commit but do not push")
	rootCmd.AddCommand(watchCmd)
}
