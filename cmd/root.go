package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Alturino/shopbot/internal/log"
)

func Start() {
	logger := log.InitLogger("/var/log/shopbot.log", os.Getenv("APP_ENV")).
		With().
		Str(log.KeyAppName, "shopbot").
		Str(log.KeyTag, "main Start").
		Logger()

	logger.Info().Msg("adding listener for SIGINT and SIGTERM")
	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info().Msg("added listener for SIGINT and SIGTERM")

	c = logger.WithContext(c)

	rootCmd := &cobra.Command{Use: "shopbot"}
	rootCmd.AddCommand(&cobra.Command{
		Use:   "worker",
		Short: "Run migrations, the cart reaper, and the metrics endpoint",
		Run: func(cmd *cobra.Command, args []string) {
			runWorker(cmd.Context())
		},
	})
	if err := rootCmd.ExecuteContext(c); err != nil {
		logger.Fatal().Err(err).Msgf("error when executing command=%s", err.Error())
	}
}
