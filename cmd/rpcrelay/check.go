package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/rpcrelay/upstream"
)

func newCheckConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and the upstream document",
		Long: `check-config loads the configuration and the upstream document it names,
then builds the policy resolver, rejecting unparsable upstream URLs and,
unless --skip-dns is given, hosts that do not resolve.`,
		Args: cobra.NoArgs,
		RunE: runCheckConfig,
	}
	addConfigFlags(cmd.Flags())
	cmd.Flags().Bool("skip-dns", false, "do not resolve upstream hosts")
	return cmd
}

func runCheckConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	doc, err := upstream.LoadConfig(cfg.Upstreams)
	if err != nil {
		return err
	}

	var lookup upstream.HostLookup = net.DefaultResolver.LookupHost
	if skip, _ := cmd.Flags().GetBool("skip-dns"); skip {
		lookup = nil
	}
	resolver, err := upstream.NewResolver(cmd.Context(), doc, upstream.WithURLValidation(lookup))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config ok: listening on %s, batch limit %d\n", cfg.Server.Addr, cfg.Server.BatchLimit)
	for _, name := range resolver.Namespaces() {
		fmt.Fprintf(out, "namespace %s (translate to appbase: %t)\n", name, resolver.TranslateToAppbase(name))
	}
	for _, u := range resolver.URLs() {
		fmt.Fprintf(out, "upstream %s\n", u)
	}
	return nil
}
