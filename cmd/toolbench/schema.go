package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/toolbench/tools/sqlquery"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema description of each configured database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if len(cfg.Tools.SQL) == 0 {
			return errors.New("no sql tools configured")
		}

		out := cmd.OutOrStdout()
		for _, sc := range cfg.Tools.SQL {
			t, err := sqlquery.Open(sc, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to open sql tool %q: %w", sc.Name, err)
			}
			desc, err := t.Describe(cmd.Context())
			t.Close()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, headerStyle.Render(sc.Name+" ("+sc.Driver+")"))
			fmt.Fprintln(out, desc)
		}
		return nil
	},
}

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, closeKernel, err := openKernel()
		if err != nil {
			return err
		}
		defer closeKernel()

		list := k.Tools().List()
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

		out := cmd.OutOrStdout()
		if toolsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}

		if len(list) == 0 {
			fmt.Fprintln(out, mutedStyle.Render("no tools enabled"))
			return nil
		}

		w := newTable(out)
		fmt.Fprintln(w, "NAME\tPARAMETERS\tDESCRIPTION")
		for _, t := range list {
			params := make([]string, 0)
			for name := range t.Properties() {
				params = append(params, name)
			}
			sort.Strings(params)
			desc, _, _ := strings.Cut(t.Description, "\n")
			fmt.Fprintf(w, "%s\t%s\t%s\n", titleStyle.Render(t.Name), strings.Join(params, ", "), desc)
		}
		return w.Flush()
	},
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "Print the full tool schemas as JSON")
	rootCmd.AddCommand(schemaCmd, toolsCmd)
}
