package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/lingo/internal/audio"
	"github.com/abhisek/lingo/internal/bridge"
	"github.com/abhisek/lingo/internal/session"
	"github.com/abhisek/lingo/internal/settings"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host practice sessions for browser clients over a websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		cfg := bridge.ConfigFromEnv()
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}
		strict, _ := cmd.Flags().GetBool("no-fallback")

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		metrics := bridge.NewMetrics("")
		svc, err := buildServices(ctx, st, "", strict, metrics, logger)
		if err != nil {
			return err
		}
		defaults := settings.FromEnv()

		factory := func(player audio.Player, rec audio.Recorder) (*session.Engine, error) {
			return session.New(session.Deps{
				Scripts:     svc.scripts,
				Synth:       svc.synth,
				Transcriber: svc.transcriber,
				Player:      audio.NewController(player),
				Mic:         audio.NewMicrophone(rec),
				Settings:    settings.NewController(defaults),
			}, svc.sessionCfg, logger.Named("session"))
		}

		srv, err := bridge.NewServer(cfg, factory, metrics, logger.Named("bridge"))
		if err != nil {
			return fmt.Errorf("bridge: %w", err)
		}
		logger.Info("serving practice sessions", zap.String("addr", cfg.Addr))
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides LINGO_BRIDGE_ADDR, default :8080)")
	serveCmd.Flags().Bool("no-fallback", false, "Fail sessions whose script cannot be generated instead of using the fallback script")
}
