package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past operations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		a, err := newApp(cmd, "history", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		entries, err := a.Service().GetHistory(limit, offset)
		if err != nil {
			return err
		}
		return render(cmd, entries, func(w io.Writer) {
			if len(entries) == 0 {
				fmt.Fprintln(w, "No operations recorded.")
				return
			}
			for _, e := range entries {
				state := ""
				if e.IsUndone {
					state = faint("  [undone]")
				}
				fmt.Fprintf(w, "#%-4d %s  %-9s %4d file(s)  %s%s\n",
					e.ID,
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					e.OperationType,
					e.FilesAffected,
					e.Description,
					state,
				)
			}
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all history; operations can no longer be undone",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := confirm(cmd, "Clear the whole history? Nothing in it can be undone afterwards.")
		if err != nil || !ok {
			return err
		}
		a, err := newApp(cmd, "history clear", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		if err := a.ClearHistory(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
		return nil
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo ID",
	Short: "Reverse an operation from the history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid history id %q", args[0])
		}
		a, err := newApp(cmd, "undo", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		res, err := a.UndoOperation(id)
		if err != nil {
			return err
		}
		return render(cmd, res, func(w io.Writer) {
			if res.Success {
				fmt.Fprintf(w, "%s #%d: %d restored, %d already in place\n", green("undone"), id, res.FilesRestored, res.FilesSkipped)
				return
			}
			fmt.Fprintf(w, "%s #%d: %d restored, %d failed; run undo again after fixing them\n",
				yellow("partially undone"), id, res.FilesRestored, len(res.Errors))
			printFileErrors(w, res.Errors)
		})
	},
}

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Inspect files removed by tidy",
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trashed files, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "trash list", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		items, err := a.Trash().List()
		if err != nil {
			return err
		}
		return render(cmd, items, func(w io.Writer) {
			if len(items) == 0 {
				fmt.Fprintln(w, "Trash is empty.")
			}
			for _, it := range items {
				fmt.Fprintf(w, "%s  %s  %s\n", it.DeletedAt.Format("2006-01-02 15:04:05"), faint(it.ID), it.OriginalPath)
			}
		})
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	historyCmd.Flags().Int("offset", 0, "Entries to skip, newest first")
	historyCmd.AddCommand(historyClearCmd)

	trashCmd.AddCommand(trashListCmd)

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(trashCmd)
}
