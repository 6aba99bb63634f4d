package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tidy-go/internal/tidy"
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Sort a folder into category folders",
}

func organizeOptions(cmd *cobra.Command) (tidy.OrganizeOptions, error) {
	dated, _ := cmd.Flags().GetBool("date-subfolders")
	format, _ := cmd.Flags().GetString("date-format")
	strategy, _ := cmd.Flags().GetString("on-conflict")
	opts := tidy.OrganizeOptions{
		DateSubfolders:    dated,
		DateFormat:        format,
		DuplicateStrategy: tidy.OverwriteStrategy(strategy),
	}
	if strategy != "" && !opts.DuplicateStrategy.IsValid() {
		return opts, fmt.Errorf("unknown conflict strategy %q", strategy)
	}
	return opts, nil
}

var categorizePreviewCmd = &cobra.Command{
	Use:   "preview [PATH]",
	Short: "Show where each file would go",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := organizeOptions(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd, "categorize preview", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		preview, err := a.Service().PreviewOrganization(cmd.Context(), pathArg(args), opts)
		if err != nil {
			return err
		}
		return render(cmd, preview, func(w io.Writer) {
			if preview.TotalFiles == 0 {
				fmt.Fprintln(w, "Nothing to organize.")
				return
			}
			for _, g := range preview.Categories {
				fmt.Fprintf(w, "%s  %s  (%d files, %s)\n", bold(g.FolderName), faint(g.Destination), g.FileCount, g.TotalSizeFormatted)
				for _, e := range g.Files {
					fmt.Fprintf(w, "    %s\n", e.File.Name)
				}
			}
			fmt.Fprintf(w, "\n%d file(s) in %d categories\n", preview.TotalFiles, len(preview.Categories))
			printCancelled(w, preview.Status)
		})
	},
}

var categorizeRunCmd = &cobra.Command{
	Use:   "run [PATH]",
	Short: "Move files into category folders",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := organizeOptions(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd, "categorize run", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		res, err := a.ExecuteOrganization(cmd.Context(), pathArg(args), opts)
		if err != nil {
			return err
		}
		return render(cmd, res, func(w io.Writer) { printExecuteResult(w, res) })
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview [PATH]",
	Short: "Show what organize would do with the current rules",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "preview", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		preview, err := a.Service().PreviewUnified(cmd.Context(), pathArg(args))
		if err != nil {
			return err
		}
		return render(cmd, preview, func(w io.Writer) {
			if len(preview.Groups) == 0 {
				fmt.Fprintln(w, "No file matches a rule.")
			}
			for _, g := range preview.Groups {
				tier := faint("default")
				if g.MatchType == tidy.MatchCustom {
					tier = cyan("rule")
				}
				fmt.Fprintf(w, "%s %s  %s %s  (%d files, %s)\n",
					bold(g.ActionType), bold(g.Destination), tier, g.RuleName, g.FileCount, g.TotalSizeFormatted)
				for _, e := range g.Files {
					if e.Resolution.TargetName != e.File.Name {
						fmt.Fprintf(w, "    %s -> %s\n", e.File.Name, e.Resolution.TargetName)
					} else {
						fmt.Fprintf(w, "    %s\n", e.File.Name)
					}
				}
			}
			fmt.Fprintf(w, "\n%d file(s), %d without a destination\n", preview.TotalFiles, preview.UnmatchedFiles)
			printCancelled(w, preview.Status)
		})
	},
}

func unifiedOptions(cmd *cobra.Command) (tidy.UnifiedOptions, error) {
	excluded, _ := cmd.Flags().GetStringSlice("exclude")
	strategy, _ := cmd.Flags().GetString("on-conflict")
	permanent, _ := cmd.Flags().GetBool("permanent")
	opts := tidy.UnifiedOptions{
		ExcludedDestinations: excluded,
		Strategy:             tidy.OverwriteStrategy(strategy),
		PermanentDelete:      permanent,
	}
	if strategy != "" && !opts.Strategy.IsValid() {
		return opts, fmt.Errorf("unknown conflict strategy %q", strategy)
	}
	return opts, nil
}

var organizeCmd = &cobra.Command{
	Use:   "organize [PATH]",
	Short: "Apply the rules to a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := unifiedOptions(cmd)
		if err != nil {
			return err
		}
		if opts.PermanentDelete {
			ok, err := confirm(cmd, "Delete actions will remove files permanently. Continue?")
			if err != nil || !ok {
				return err
			}
		}
		a, err := newApp(cmd, "organize", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		res, err := a.ExecuteUnified(cmd.Context(), pathArg(args), opts)
		if err != nil {
			return err
		}
		return render(cmd, res, func(w io.Writer) { printExecuteResult(w, res) })
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [PATH]",
	Short: "Organize a folder whenever new files arrive",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := unifiedOptions(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd, "watch", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		w, err := a.NewWatcher(pathArg(args), opts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		w.OnRun = func(res *tidy.ExecuteResult, err error) {
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", red("error:"), err)
				return
			}
			if res.FilesMoved > 0 || len(res.Errors) > 0 {
				printExecuteResult(out, res)
			}
		}
		fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", pathArg(args))
		return w.Run(cmd.Context())
	},
}

func printExecuteResult(w io.Writer, res *tidy.ExecuteResult) {
	status := green("done")
	if !res.Success {
		status = yellow("finished with problems")
	}
	fmt.Fprintf(w, "%s: %d moved, %d skipped", status, res.FilesMoved, res.FilesSkipped)
	if res.HistoryID != 0 {
		fmt.Fprintf(w, "  (undo with `tidy undo %d`)", res.HistoryID)
	}
	fmt.Fprintln(w)
	printFileErrors(w, res.Errors)
	printCancelled(w, res.Status)
}

func printFileErrors(w io.Writer, errs []tidy.FileError) {
	for _, e := range errs {
		fmt.Fprintf(w, "  %s %s: %s\n", red(string(e.Kind)), e.Path, e.Message)
	}
}

func printCancelled(w io.Writer, status string) {
	if status == tidy.StatusCancelled {
		fmt.Fprintln(w, yellow("cancelled: results are partial"))
	}
}

func init() {
	for _, c := range []*cobra.Command{categorizePreviewCmd, categorizeRunCmd} {
		c.Flags().BoolP("date-subfolders", "d", false, "Add a date subfolder below each category folder")
		c.Flags().String("date-format", "", "Date subfolder format: YYYY-MM, YYYY/MM, YYYY or YYYY-MM-DD")
		c.Flags().String("on-conflict", "", "When the target exists: rename, skip or overwrite")
		categorizeCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{organizeCmd, watchCmd} {
		c.Flags().StringSlice("exclude", nil, "Destinations to leave alone (as shown by preview)")
		c.Flags().String("on-conflict", "", "When the target exists: rename, skip or overwrite")
		c.Flags().Bool("permanent", false, "Delete actions skip the trash")
	}

	rootCmd.AddCommand(categorizeCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(organizeCmd)
	rootCmd.AddCommand(watchCmd)
}

