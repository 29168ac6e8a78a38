package cmd

import (
	"github.com/superworldapp/nftsalon-engine/src/marketplace"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the marketplace: REST gateway, auction janitor and event publishers",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller, err := marketplace.NewController(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		<-ctx.Done()

		controller.StopWait()
		return
	},
}
