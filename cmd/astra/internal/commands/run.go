package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/astra"
)

func newRunCmd(e *env) *cobra.Command {
	var (
		path   string
		inputs []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every task of an application once",
		Example: `  astra run --file app.yaml --input lang=go
  astra run -f app.yaml -i topic="binary search" --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			file, err := loadApp(path)
			if err != nil {
				return err
			}

			app, err := astra.FromFile(cmd.Context(), file, func(o *astra.Options) {
				o.Settings = &e.settings
				o.Logger = e.logger
			})
			if err != nil {
				return err
			}
			defer app.Close()

			res, runErr := app.Run(cmd.Context(), in)
			out := cmd.OutOrStdout()
			if res != nil {
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(res); err != nil {
						return err
					}
				} else {
					for _, s := range res.Steps {
						if s.HandoffFrom != "" {
							fmt.Fprintf(out, "\n[Handoff] %s -> %s (%s)\n", s.HandoffFrom, s.Agent, s.Task)
						} else {
							fmt.Fprintf(out, "\n[Task] %s (Agent: %s)\n", s.Task, s.Agent)
						}
						fmt.Fprintf(out, "[Result] %s\n", s.Output)
					}
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "app.yaml", "application definition")
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "template input as key=value (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func parseInputs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid input %q, want key=value", p)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}
