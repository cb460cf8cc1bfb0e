package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jonwraymond/rpcrelay/config"
)

// addConfigFlags registers flags named after configuration keys so that
// config.Load binds them directly.
func addConfigFlags(fs *pflag.FlagSet) {
	fs.String("upstreams", "", "path of the upstream JSON document")
	fs.String("server.addr", "", "listen address")
	fs.String("logging.level", "", "log level (debug, info, warn, error)")
	fs.String("logging.format", "", "log format (json, text)")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path, cmd.Flags())
}
