package cmd

import (
	"github.com/spf13/cobra"

	"github.com/abhisek/mabquiz/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		addr := e.cfg.Server.Addr
		if a, _ := cmd.Flags().GetString("addr"); a != "" {
			addr = a
		}
		srv := server.New(server.Deps{
			Updater:    e.updater,
			Selector:   e.selector,
			Projection: e.projection,
			Reconciler: e.reconciler,
			Analytics:  e.cfg.Analytics,
			Log:        e.log,
		})
		return srv.Run(commandContext(cmd), addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
}
