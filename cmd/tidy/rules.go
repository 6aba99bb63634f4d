package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tidy-go/internal/model"
	"tidy-go/internal/tidy"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage custom rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custom rules in evaluation order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "rules list", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		rules, err := a.Service().GetRules()
		if err != nil {
			return err
		}
		return render(cmd, rules, func(w io.Writer) {
			if len(rules) == 0 {
				fmt.Fprintln(w, "No custom rules.")
				return
			}
			for _, r := range rules {
				printRule(w, r)
			}
		})
	},
}

func printRule(w io.Writer, r *model.Rule) {
	state := green("on ")
	if !r.Enabled {
		state = faint("off")
	}
	target := r.ActionDestination
	if r.ActionType == tidy.ActionRename {
		target = r.ActionRenamePattern
	}
	fmt.Fprintf(w, "#%-4d %s p%-3d %s  %s %s\n", r.ID, state, r.Priority, bold(r.Name), r.ActionType, target)
	parts := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		parts[i] = fmt.Sprintf("%s %s %q", c.Field, c.Operator, c.Value)
	}
	fmt.Fprintf(w, "      %s\n", faint(strings.Join(parts, " "+r.ConditionLogic+" ")))
}

// parseCondition reads "field:operator:value". The value may contain colons.
func parseCondition(s string) (model.Condition, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return model.Condition{}, fmt.Errorf("condition %q must look like field:operator:value", s)
	}
	return model.Condition{Field: parts[0], Operator: parts[1], Value: parts[2]}, nil
}

// applyRuleFlags copies every flag the user set onto rule.
func applyRuleFlags(cmd *cobra.Command, rule *model.Rule) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		rule.Name, _ = flags.GetString("name")
	}
	if flags.Changed("priority") {
		rule.Priority, _ = flags.GetInt("priority")
	}
	if flags.Changed("when") {
		raw, _ := flags.GetStringArray("when")
		rule.Conditions = rule.Conditions[:0]
		for _, s := range raw {
			c, err := parseCondition(s)
			if err != nil {
				return err
			}
			rule.Conditions = append(rule.Conditions, c)
		}
	}
	if flags.Changed("logic") {
		rule.ConditionLogic, _ = flags.GetString("logic")
	}
	if flags.Changed("action") {
		rule.ActionType, _ = flags.GetString("action")
	}
	if flags.Changed("dest") {
		rule.ActionDestination, _ = flags.GetString("dest")
	}
	if flags.Changed("pattern") {
		rule.ActionRenamePattern, _ = flags.GetString("pattern")
	}
	if flags.Changed("date-subfolder") {
		rule.CreateDateSubfolder, _ = flags.GetBool("date-subfolder")
	}
	if flags.Changed("disabled") {
		disabled, _ := flags.GetBool("disabled")
		rule.Enabled = !disabled
	}
	return nil
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a custom rule",
	Example: `  tidy rules add --name Logs --when extension:equals:log --dest /Logs
  tidy rules add --name "Old installers" --when extension:equals:dmg --when "modifiedDate:greaterThan:30 days" --logic AND --action delete`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rule := &model.Rule{Enabled: true, ConditionLogic: "AND", ActionType: tidy.ActionMove}
		if err := applyRuleFlags(cmd, rule); err != nil {
			return err
		}

		a, err := newApp(cmd, "rules add", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		saved, err := a.SaveRule(rule)
		if err != nil {
			return err
		}
		return render(cmd, saved, func(w io.Writer) {
			fmt.Fprintf(w, "Added rule #%d\n", saved.ID)
			printRule(w, saved)
		})
	},
}

func ruleIDArg(args []string) (int64, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rule id %q", args[0])
	}
	return id, nil
}

var rulesUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Change fields of a custom rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ruleIDArg(args)
		if err != nil {
			return err
		}
		a, err := newApp(cmd, "rules update", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		rules, err := a.Service().GetRules()
		if err != nil {
			return err
		}
		var rule *model.Rule
		for _, r := range rules {
			if r.ID == id {
				rule = r
				break
			}
		}
		if rule == nil {
			return fmt.Errorf("rule %d: %w", id, tidy.ErrRuleNotFound)
		}
		if err := applyRuleFlags(cmd, rule); err != nil {
			return err
		}

		saved, err := a.SaveRule(rule)
		if err != nil {
			return err
		}
		return render(cmd, saved, func(w io.Writer) { printRule(w, saved) })
	},
}

func newToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: strings.ToUpper(use[:1]) + use[1:] + " a custom rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ruleIDArg(args)
			if err != nil {
				return err
			}
			a, err := newApp(cmd, "rules "+use, args)
			if err != nil {
				return err
			}
			defer closeApp(cmd, a)

			rule, err := a.SetRuleEnabled(id, enabled)
			if err != nil {
				return err
			}
			return render(cmd, rule, func(w io.Writer) { printRule(w, rule) })
		},
	}
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a custom rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := ruleIDArg(args)
		if err != nil {
			return err
		}
		ok, err := confirm(cmd, fmt.Sprintf("Delete rule #%d?", id))
		if err != nil || !ok {
			return err
		}
		a, err := newApp(cmd, "rules delete", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		if err := a.DeleteRule(id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule #%d\n", id)
		return nil
	},
}

// bundleFormat picks the encoding from --format, then the file extension.
func bundleFormat(cmd *cobra.Command, file string) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		switch strings.ToLower(filepath.Ext(file)) {
		case ".yaml", ".yml":
			format = "yaml"
		case ".json":
			format = "json"
		default:
			format = "toml"
		}
	}
	switch format {
	case "toml", "yaml", "json":
		return format, nil
	}
	return "", fmt.Errorf("unknown bundle format %q (want toml, yaml or json)", format)
}

func encodeBundle(w io.Writer, format string, bundle *tidy.RuleBundle) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(bundle); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(bundle)
	default:
		return toml.NewEncoder(w).Encode(bundle)
	}
}

func decodeBundle(data []byte, format string) (*tidy.RuleBundle, error) {
	var bundle tidy.RuleBundle
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &bundle)
	case "json":
		err = json.Unmarshal(data, &bundle)
	default:
		_, err = toml.NewDecoder(bytes.NewReader(data)).Decode(&bundle)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s bundle: %w", format, err)
	}
	return &bundle, nil
}

var rulesExportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write rules, defaults, mappings and exclusions to a file or stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := ""
		if len(args) > 0 {
			file = args[0]
		}
		format, err := bundleFormat(cmd, file)
		if err != nil {
			return err
		}
		a, err := newApp(cmd, "rules export", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		bundle, err := a.Service().ExportRules()
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := encodeBundle(&buf, format, bundle); err != nil {
			return fmt.Errorf("encoding bundle: %w", err)
		}
		if file == "" {
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if err := os.WriteFile(file, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", file, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rule(s) to %s\n", len(bundle.Rules), file)
		return nil
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Load rules from a bundle written by export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := bundleFormat(cmd, args[0])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading bundle: %w", err)
		}
		bundle, err := decodeBundle(data, format)
		if err != nil {
			return err
		}

		replace, _ := cmd.Flags().GetBool("replace")
		if replace {
			ok, err := confirm(cmd, "Replace all custom rules?")
			if err != nil || !ok {
				return err
			}
		}

		a, err := newApp(cmd, "rules import", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		n, err := a.ImportRules(bundle, replace)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rule(s)\n", n)
		return nil
	},
}

// defaults

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Manage the per-category fallback rules",
}

var defaultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List default rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "defaults list", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		defaults, err := a.Service().GetDefaultRules()
		if err != nil {
			return err
		}
		return render(cmd, defaults, func(w io.Writer) {
			for _, d := range defaults {
				printDefaultRule(w, d)
			}
		})
	},
}

func printDefaultRule(w io.Writer, d *model.DefaultRule) {
	state := green("on ")
	if !d.Enabled {
		state = faint("off")
	}
	dest := d.Destination
	if dest == "" {
		dest = tidy.CategoryFolder(d.Category)
	}
	dated := ""
	if d.CreateDateSubfolder {
		dated = faint(" +date")
	}
	fmt.Fprintf(w, "%s p%-2d %-11s %s%s\n", state, d.Priority, d.Category, dest, dated)
}

var defaultsSetCmd = &cobra.Command{
	Use:   "set CATEGORY",
	Short: "Change the default rule of a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category := model.Category(strings.ToLower(args[0]))
		if !category.IsValid() {
			return fmt.Errorf("%w: %s", tidy.ErrUnknownCategory, args[0])
		}
		a, err := newApp(cmd, "defaults set", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		defaults, err := a.Service().GetDefaultRules()
		if err != nil {
			return err
		}
		var rule *model.DefaultRule
		for _, d := range defaults {
			if d.Category == category {
				rule = d
				break
			}
		}
		if rule == nil {
			return fmt.Errorf("%w: %s", tidy.ErrUnknownCategory, category)
		}

		flags := cmd.Flags()
		if flags.Changed("dest") {
			rule.Destination, _ = flags.GetString("dest")
		}
		if flags.Changed("priority") {
			rule.Priority, _ = flags.GetInt("priority")
		}
		if flags.Changed("enabled") {
			rule.Enabled, _ = flags.GetBool("enabled")
		}
		if flags.Changed("date-subfolder") {
			rule.CreateDateSubfolder, _ = flags.GetBool("date-subfolder")
		}

		saved, err := a.SaveDefaultRule(rule)
		if err != nil {
			return err
		}
		return render(cmd, saved, func(w io.Writer) { printDefaultRule(w, saved) })
	},
}

// mappings

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Manage extension to category mappings",
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custom extension mappings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "mappings list", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		mappings, err := a.Service().GetExtensionMappings()
		if err != nil {
			return err
		}
		return render(cmd, mappings, func(w io.Writer) {
			if len(mappings) == 0 {
				fmt.Fprintln(w, "No custom mappings.")
			}
			for _, m := range mappings {
				fmt.Fprintf(w, "%-10s %s\n", m.Extension, m.Category)
			}
		})
	},
}

var mappingsSetCmd = &cobra.Command{
	Use:   "set EXTENSION CATEGORY",
	Short: "Map an extension to a category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "mappings set", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		m, err := a.SaveExtensionMapping(args[0], model.Category(strings.ToLower(args[1])))
		if err != nil {
			return err
		}
		return render(cmd, m, func(w io.Writer) {
			fmt.Fprintf(w, "%s -> %s\n", m.Extension, m.Category)
		})
	},
}

var mappingsDeleteCmd = &cobra.Command{
	Use:   "delete EXTENSION",
	Short: "Remove a custom mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "mappings delete", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		return a.DeleteExtensionMapping(args[0])
	},
}

// exclusions

var exclusionsCmd = &cobra.Command{
	Use:   "exclusions",
	Short: "Manage glob patterns that every scan skips",
}

var exclusionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exclusion patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "exclusions list", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		exclusions, err := a.Service().GetExclusions()
		if err != nil {
			return err
		}
		return render(cmd, exclusions, func(w io.Writer) {
			if len(exclusions) == 0 {
				fmt.Fprintln(w, "No exclusions.")
			}
			for _, e := range exclusions {
				fmt.Fprintf(w, "#%-4d %s\n", e.ID, e.Pattern)
			}
		})
	},
}

var exclusionsAddCmd = &cobra.Command{
	Use:   "add PATTERN",
	Short: "Add an exclusion pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "exclusions add", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		e, err := a.AddExclusion(args[0])
		if err != nil {
			return err
		}
		return render(cmd, e, func(w io.Writer) {
			fmt.Fprintf(w, "Added exclusion #%d %s\n", e.ID, e.Pattern)
		})
	},
}

var exclusionsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove an exclusion pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid exclusion id %q", args[0])
		}
		a, err := newApp(cmd, "exclusions delete", args)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		return a.DeleteExclusion(id)
	},
}

func init() {
	for _, c := range []*cobra.Command{rulesAddCmd, rulesUpdateCmd} {
		c.Flags().String("name", "", "Rule name")
		c.Flags().Int("priority", 0, "Lower runs first")
		c.Flags().StringArray("when", nil, "Condition field:operator:value (repeatable)")
		c.Flags().String("logic", "AND", "How conditions combine: AND or OR")
		c.Flags().String("action", tidy.ActionMove, "move, copy, rename or delete")
		c.Flags().String("dest", "", "Destination folder; relative paths are inside the organized folder")
		c.Flags().String("pattern", "", "Rename pattern with {name} {ext} {date} {category} {counter}")
		c.Flags().Bool("date-subfolder", false, "Add a date subfolder below the destination")
		c.Flags().Bool("disabled", false, "Store the rule switched off")
	}
	for _, c := range []*cobra.Command{rulesExportCmd, rulesImportCmd} {
		c.Flags().String("format", "", "toml, yaml or json (default from the file extension)")
	}
	rulesImportCmd.Flags().Bool("replace", false, "Delete existing custom rules first")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesUpdateCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(newToggleCmd("enable", true))
	rulesCmd.AddCommand(newToggleCmd("disable", false))
	rulesCmd.AddCommand(rulesExportCmd)
	rulesCmd.AddCommand(rulesImportCmd)

	defaultsSetCmd.Flags().String("dest", "", "Destination folder (empty uses the category folder)")
	defaultsSetCmd.Flags().Int("priority", 0, "Display order")
	defaultsSetCmd.Flags().Bool("enabled", true, "Whether the category is organized at all")
	defaultsSetCmd.Flags().Bool("date-subfolder", false, "Add a date subfolder below the destination")
	defaultsCmd.AddCommand(defaultsListCmd)
	defaultsCmd.AddCommand(defaultsSetCmd)

	mappingsCmd.AddCommand(mappingsListCmd)
	mappingsCmd.AddCommand(mappingsSetCmd)
	mappingsCmd.AddCommand(mappingsDeleteCmd)

	exclusionsCmd.AddCommand(exclusionsListCmd)
	exclusionsCmd.AddCommand(exclusionsAddCmd)
	exclusionsCmd.AddCommand(exclusionsDeleteCmd)

	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(defaultsCmd)
	rootCmd.AddCommand(mappingsCmd)
	rootCmd.AddCommand(exclusionsCmd)
}
