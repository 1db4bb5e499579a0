// =============================================================================
// FBDI Workflow - Serve Command
// =============================================================================
//
// COMMAND USAGE:
//   fbdi serve [--address 127.0.0.1:8080]
//
// Starts the local console. Sessions live in memory and expire after
// server.session_ttl without use. Ctrl-C shuts the server down and closes
// every session.
//
// =============================================================================

package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbdi-workflow/internal/server"
)

// shutdownTimeout bounds the graceful shutdown.
const shutdownTimeout = 10 * time.Second

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local workflow console",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		if serveAddress != "" {
			a.cfg.Server.Address = serveAddress
		}

		srv := server.New(a.cfg, a.client, a.log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Listen()
		}()

		a.out.success("Console listening on http://%s (backend %s)", a.cfg.Server.Address, a.cfg.Backend.BaseURL)

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		a.out.info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "Listen address (default from config)")
}
