package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/astra"
	"github.com/hupe1980/astra/agent"
)

func newToolsCmd(e *env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools an application can reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog := astra.Catalog(e.settings)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.Schemas())
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, t := range catalog.Tools() {
				fmt.Fprintf(tw, "%s\t%s\n", t.Name(), t.Description())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print full schemas as JSON")
	return cmd
}

func newToolCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tool",
		Short: "Work with a single tool",
	}

	var args string
	exec := &cobra.Command{
		Use:     "exec <name>",
		Short:   "Invoke a tool with JSON arguments",
		Example: `  astra tool exec shell --args '{"command": "go version"}'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, argv []string) error {
			catalog := astra.Catalog(e.settings)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := catalog.Call(ctx, argv[0], args)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), agent.FormatResult(res))
			return nil
		},
	}
	exec.Flags().StringVar(&args, "args", "{}", "tool arguments as a JSON object")
	cmd.AddCommand(exec)
	return cmd
}
