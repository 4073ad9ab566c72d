package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bilalbayram/adlens/internal/metrics"
	"github.com/bilalbayram/adlens/internal/report"
	"github.com/bilalbayram/adlens/internal/server"
	"github.com/bilalbayram/adlens/internal/telemetry"
)

// Swapped in tests.
var runServer = func(ctx context.Context, srv *server.Server) error {
	return srv.Run(ctx)
}

func NewServeCommand(runtime Runtime) *cobra.Command {
	var (
		reportID string
		addr     string
		from     string
		to       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a saved report over a JSON HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			const commandName = "adlens serve"
			if (from == "") != (to == "") {
				return writeCommandError(cmd, runtime, commandName, inputErrorf("--from and --to must be set together"))
			}
			if from != "" {
				if err := (report.DateRange{From: from, To: to}).Validate(); err != nil {
					return writeCommandError(cmd, runtime, commandName, inputErrorf("invalid --from/--to: %v", err))
				}
			}
			env, err := runtime.environment()
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			defer func() { _ = env.logger.Sync() }()

			session, err := openReportSession(env, reportID)
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			recorder := telemetry.NewInMemory()
			service := session.newService(recorder)
			defer service.Close()
			service.Subscribe(func(state report.State) {
				env.logger.Debug("report state changed",
					zap.Bool("loading", state.IsLoading),
					zap.Bool("loading_period_b", state.IsLoadingPeriodB),
					zap.String("signature", state.Signature),
					zap.String("error", state.Error),
				)
			})

			if from != "" {
				params, err := session.params(ctx, report.DateRange{From: from, To: to}, report.Tabs...)
				if err != nil {
					return writeCommandError(cmd, runtime, commandName, err)
				}
				service.Update(params)
			}

			handler := server.NewRouter(server.Deps{
				Service:  service,
				Engine:   metrics.Default,
				Logger:   env.logger.With(zap.String("component", "http")),
				Counters: recorder,
			})
			srv := server.New(handler, addr, env.settings.ShutdownTimeout, env.logger)
			if err := runServer(ctx, srv); err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&reportID, "report", "", "Saved report id")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().StringVar(&from, "from", "", "Optional initial load range start")
	cmd.Flags().StringVar(&to, "to", "", "Optional initial load range end")
	mustMarkFlagRequired(cmd, "report")
	return cmd
}
