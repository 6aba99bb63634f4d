package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tidy-go/internal/tidy"
)

var dupesCmd = &cobra.Command{
	Use:   "dupes [PATH]",
	Short: "Find files with identical content",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "dupes", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		res, err := a.Service().FindDuplicates(cmd.Context(), pathArg(args))
		if err != nil {
			return err
		}
		return render(cmd, res, func(w io.Writer) {
			if len(res.Groups) == 0 {
				fmt.Fprintf(w, "No duplicates among %d file(s).\n", res.FilesScanned)
				printCancelled(w, res.Status)
				return
			}
			for _, g := range res.Groups {
				fmt.Fprintf(w, "%s  %d copies of %s, %s wasted\n", faint(g.Hash[:12]), len(g.Files), g.SizeFormatted, yellow(g.WastedSpaceFormatted))
				for i, f := range g.Files {
					marker := "  "
					if i == 0 {
						marker = green("* ")
					}
					fmt.Fprintf(w, "  %s%s  %s\n", marker, f.Path, faint(f.ModifiedAt.Format("2006-01-02 15:04")))
				}
			}
			fmt.Fprintf(w, "\n%d group(s), %s reclaimable, %d file(s) scanned\n", len(res.Groups), bold(res.TotalWastedFormatted), res.FilesScanned)
			printFileErrors(w, res.Errors)
			printCancelled(w, res.Status)
		})
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare SOURCE TARGET",
	Short: "Compare two folder trees",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		showAll, _ := cmd.Flags().GetBool("all")
		a, err := newApp(cmd, "compare", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		sum, err := a.Service().CompareFolders(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return render(cmd, sum, func(w io.Writer) {
			for _, r := range sum.Results {
				var mark string
				switch r.Status {
				case tidy.OnlyInSource:
					mark = green("+")
				case tidy.OnlyInTarget:
					mark = red("-")
				case tidy.Different:
					mark = yellow("~")
				case tidy.Identical:
					if !showAll {
						continue
					}
					mark = faint("=")
				}
				fmt.Fprintf(w, "%s %s  %s\n", mark, r.RelativePath, faint(r.SizeDiffFormatted))
			}
			fmt.Fprintf(w, "\n%d only in source, %d only in target, %d different, %d identical\n",
				sum.OnlyInSource, sum.OnlyInTarget, sum.Different, sum.Identical)
			fmt.Fprintf(w, "source %s, target %s\n", sum.SourceTotalSizeFormatted, sum.TargetTotalSizeFormatted)
			printFileErrors(w, sum.Errors)
			printCancelled(w, sum.Status)
		})
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge SOURCE TARGET",
	Short: "Copy what differs from SOURCE into TARGET",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, _ := cmd.Flags().GetString("strategy")
		onlyInSource, _ := cmd.Flags().GetBool("only-in-source")
		different, _ := cmd.Flags().GetBool("different")
		deleteSource, _ := cmd.Flags().GetBool("delete-source")

		opts := tidy.MergeOptions{
			Strategy:            tidy.MergeStrategy(strategy),
			IncludeOnlyInSource: onlyInSource,
			IncludeDifferent:    different,
			DeleteSourceAfter:   deleteSource,
		}
		if !opts.Strategy.IsValid() {
			return fmt.Errorf("unknown merge strategy %q", strategy)
		}
		if deleteSource {
			ok, err := confirm(cmd, fmt.Sprintf("Remove merged files from %s afterwards?", args[0]))
			if err != nil || !ok {
				return err
			}
		}

		a, err := newApp(cmd, "merge", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		res, err := a.MergeFolders(cmd.Context(), args[0], args[1], opts)
		if err != nil {
			return err
		}
		return render(cmd, res, func(w io.Writer) {
			status := green("merged")
			if !res.Success {
				status = yellow("merged with problems")
			}
			fmt.Fprintf(w, "%s: %d copied, %d overwritten, %d skipped, %s transferred",
				status, res.FilesCopied, res.FilesOverwritten, res.FilesSkipped, res.BytesTransferredFormatted)
			if res.HistoryID != 0 {
				fmt.Fprintf(w, "  (undo with `tidy undo %d`)", res.HistoryID)
			}
			fmt.Fprintln(w)
			printFileErrors(w, res.Errors)
			printCancelled(w, res.Status)
		})
	},
}

// renameRules reads the steps from --rules, or builds them from flags in a
// fixed order: find/replace, regex, case, prefix, suffix, date, sequence.
func renameRules(cmd *cobra.Command) ([]tidy.RenameRule, error) {
	flags := cmd.Flags()
	if file, _ := flags.GetString("rules"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading rename rules: %w", err)
		}
		var rules []tidy.RenameRule
		if err := yaml.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("decoding rename rules: %w", err)
		}
		return rules, nil
	}

	var rules []tidy.RenameRule
	if flags.Changed("find") {
		find, _ := flags.GetString("find")
		replace, _ := flags.GetString("replace")
		rules = append(rules, tidy.RenameRule{Type: tidy.RenameFindReplace, Find: find, Replace: replace})
	}
	if flags.Changed("regex") {
		pattern, _ := flags.GetString("regex")
		replacement, _ := flags.GetString("regex-replace")
		rules = append(rules, tidy.RenameRule{Type: tidy.RenameRegex, Pattern: pattern, Replacement: replacement})
	}
	if flags.Changed("case") {
		c, _ := flags.GetString("case")
		rules = append(rules, tidy.RenameRule{Type: tidy.RenameCase, Case: c})
	}
	if flags.Changed("prefix") {
		prefix, _ := flags.GetString("prefix")
		rules = append(rules, tidy.RenameRule{Type: tidy.RenamePrefix, Prefix: prefix})
	}
	if flags.Changed("suffix") {
		suffix, _ := flags.GetString("suffix")
		rules = append(rules, tidy.RenameRule{Type: tidy.RenameSuffix, Suffix: suffix})
	}
	if flags.Changed("date") {
		source, _ := flags.GetString("date")
		layout, _ := flags.GetString("date-format")
		rules = append(rules, tidy.RenameRule{Type: tidy.RenameDate, DateSource: source, DateFormat: layout})
	}
	if flags.Changed("sequence") {
		start, _ := flags.GetInt("sequence")
		digits, _ := flags.GetInt("digits")
		rules = append(rules, tidy.RenameRule{Type: tidy.RenameSequence, StartNumber: start, DigitCount: digits})
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rename step given (use --rules or one of the step flags)")
	}
	return rules, nil
}

var renameCmd = &cobra.Command{
	Use:   "rename FILE...",
	Short: "Batch rename files",
	Example: `  tidy rename --prefix trip_ --sequence 1 *.jpg
  tidy rename --rules steps.yaml --apply ~/Scans/*`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := renameRules(cmd)
		if err != nil {
			return err
		}
		apply, _ := cmd.Flags().GetBool("apply")

		a, err := newApp(cmd, "rename", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		if !apply {
			previews, err := a.Service().PreviewRename(args, rules)
			if err != nil {
				return err
			}
			return render(cmd, previews, func(w io.Writer) {
				conflicts := 0
				for _, p := range previews {
					if p.HasConflict {
						conflicts++
						fmt.Fprintf(w, "%s %s -> %s  %s\n", red("!"), p.OriginalName, p.NewName, red(p.ConflictMessage))
						continue
					}
					fmt.Fprintf(w, "  %s -> %s\n", p.OriginalName, bold(p.NewName))
				}
				fmt.Fprintf(w, "\n%d file(s), %d conflict(s). Run again with --apply to rename.\n", len(previews), conflicts)
			})
		}

		res, err := a.ExecuteRename(cmd.Context(), args, rules)
		if err != nil {
			return err
		}
		return render(cmd, res, func(w io.Writer) {
			fmt.Fprintf(w, "%d renamed, %d failed", res.RenamedCount, res.FailedCount)
			if res.HistoryID != 0 {
				fmt.Fprintf(w, "  (undo with `tidy undo %d`)", res.HistoryID)
			}
			fmt.Fprintln(w)
			printFileErrors(w, res.Errors)
			printCancelled(w, res.Status)
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [PATH]",
	Short: "Summarize a folder by category",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "analyze", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		stats, err := a.Service().AnalyzeFolder(cmd.Context(), pathArg(args))
		if err != nil {
			return err
		}
		return render(cmd, stats, func(w io.Writer) {
			fmt.Fprintf(w, "%s  %d file(s), %d folder(s), %s\n", bold(stats.Path), stats.FileCount, stats.FolderCount, stats.TotalSizeFormatted)
			for _, c := range stats.Categories {
				share := 0.0
				if stats.TotalSize > 0 {
					share = float64(c.TotalSize) / float64(stats.TotalSize)
				}
				fmt.Fprintf(w, "  %-11s %6d  %10s  %s\n", c.Category, c.Count, c.TotalSizeFormatted, cyan(strings.Repeat("#", int(share*30+0.5))))
			}
			if stats.LargestFile != nil {
				fmt.Fprintf(w, "largest: %s (%s)\n", stats.LargestFile.Path, stats.LargestFile.SizeFormatted)
			}
			printCancelled(w, stats.Status)
		})
	},
}

var emptyCmd = &cobra.Command{
	Use:   "empty [PATH]",
	Short: "List empty folders",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "empty", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		dirs, err := a.Service().FindEmptyFolders(cmd.Context(), pathArg(args))
		if err != nil {
			return err
		}
		return render(cmd, dirs, func(w io.Writer) {
			if len(dirs) == 0 {
				fmt.Fprintln(w, "No empty folders.")
			}
			for _, d := range dirs {
				fmt.Fprintln(w, d)
			}
		})
	},
}

var largeCmd = &cobra.Command{
	Use:   "large [PATH]",
	Short: "List files above a size",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("min")
		threshold, err := tidy.ParseSize(raw)
		if err != nil {
			return fmt.Errorf("invalid --min: %w", err)
		}
		a, err := newApp(cmd, "large", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		files, err := a.Service().FindLargeFiles(cmd.Context(), pathArg(args), threshold)
		if err != nil {
			return err
		}
		return render(cmd, files, func(w io.Writer) {
			if len(files) == 0 {
				fmt.Fprintf(w, "No file is %s or larger.\n", tidy.FormatSize(threshold))
			}
			for _, f := range files {
				fmt.Fprintf(w, "%10s  %s\n", f.SizeFormatted, f.Path)
			}
		})
	},
}

func init() {
	compareCmd.Flags().Bool("all", false, "Also list identical files")

	mergeCmd.Flags().String("strategy", string(tidy.MergeSkipExisting), "skip_existing, overwrite_all, overwrite_newer, overwrite_older or rename")
	mergeCmd.Flags().Bool("only-in-source", true, "Copy files missing from the target")
	mergeCmd.Flags().Bool("different", true, "Handle files that differ")
	mergeCmd.Flags().Bool("delete-source", false, "Remove each merged file from the source")

	renameCmd.Flags().String("rules", "", "YAML file with a list of rename steps")
	renameCmd.Flags().String("find", "", "Text to replace")
	renameCmd.Flags().String("replace", "", "Replacement for --find")
	renameCmd.Flags().String("regex", "", "Regular expression to replace")
	renameCmd.Flags().String("regex-replace", "", "Replacement for --regex ($1 expands groups)")
	renameCmd.Flags().String("case", "", "upper, lower or title")
	renameCmd.Flags().String("prefix", "", "Text to put in front")
	renameCmd.Flags().String("suffix", "", "Text to append before the extension")
	renameCmd.Flags().String("date", "", "Prepend the created or modified date")
	renameCmd.Flags().String("date-format", "", "Date layout with YYYY MM DD HH mm ss (default YYYYMMDD)")
	renameCmd.Flags().Int("sequence", 1, "Append a counter starting here")
	renameCmd.Flags().Int("digits", 3, "Counter width")
	renameCmd.Flags().Bool("apply", false, "Rename instead of previewing")

	largeCmd.Flags().String("min", "100MB", "Size threshold, e.g. 500MB or 1.5GB")

	rootCmd.AddCommand(dupesCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(emptyCmd)
	rootCmd.AddCommand(largeCmd)
}
