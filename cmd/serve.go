package main

import (
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/opengov-in/parivesh-sync/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the synced data over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = cfg.Server.Port
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "serve: migrate")
		}

		srv := api.NewServer(st, initPortal())
		addr := fmt.Sprintf(":%d", port)
		if err := srv.ListenAndServe(ctx, addr); err != nil && !eris.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "serve")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port; defaults to server.port from config")
	rootCmd.AddCommand(serveCmd)
}
