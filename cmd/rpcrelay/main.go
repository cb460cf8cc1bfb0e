// Command rpcrelay runs the JSON-RPC relay and its configuration tools.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rpcrelay",
		Short: "Caching JSON-RPC reverse proxy for blockchain RPC backends",
		Long: `rpcrelay fronts several JSON-RPC backends behind one endpoint.

Every call is canonicalized into a URN, routed by longest-prefix match to its
upstream and cached according to a per-URN TTL, including responses that only
become cacheable once their block is irreversible.

Settings are read from --config, RPCRELAY_ prefixed environment variables and
flags, in increasing precedence.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "path to the configuration file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newCheckConfigCmd())
	root.AddCommand(newURNCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version)
		},
	}
}
