package commands

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/hupe1980/astra"
	"github.com/hupe1980/astra/internal/server"
	"github.com/hupe1980/astra/metrics"
)

func newServeCmd(e *env) *cobra.Command {
	var (
		path       string
		addr       string
		rateLimit  int
		runTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an application over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := loadApp(path)
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			mx := metrics.New(reg)

			app, err := astra.FromFile(cmd.Context(), file, func(o *astra.Options) {
				o.Settings = &e.settings
				o.Logger = e.logger
				o.Metrics = mx
			})
			if err != nil {
				return err
			}
			defer app.Close()

			srv := server.New(app.Application, func(o *server.Options) {
				o.RequestLimit = rateLimit
				o.RunTimeout = runTimeout
				o.Gatherer = reg
				o.Logger = e.logger.WithComponent("server")
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "app.yaml", "application definition")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 60, "requests per minute per client IP")
	cmd.Flags().DurationVar(&runTimeout, "run-timeout", 10*time.Minute, "maximum duration of one run")
	return cmd
}
