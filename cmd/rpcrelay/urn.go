package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/rpcrelay/jsonrpc"
	"github.com/jonwraymond/rpcrelay/proxy"
	"github.com/jonwraymond/rpcrelay/upstream"
	"github.com/jonwraymond/rpcrelay/urn"
)

func newURNCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "urn [request]",
		Short: "Print the canonical URN of a JSON-RPC request",
		Long: `urn canonicalizes one JSON-RPC request object, read from the argument or
from stdin, and prints its URN.

With --upstreams the configured namespaces and appbase translation apply, and
the resolved policy is printed as well.`,
		Example: `  rpcrelay urn '{"jsonrpc":"2.0","id":1,"method":"get_block","params":[1000]}'
  echo '{"jsonrpc":"2.0","id":1,"method":"call","params":["database_api","get_config",[]]}' | rpcrelay urn`,
		Args: cobra.MaximumNArgs(1),
		RunE: runURN,
	}
	cmd.Flags().String("upstreams", "", "path of the upstream JSON document")
	return cmd
}

func runURN(cmd *cobra.Command, args []string) error {
	var body []byte
	if len(args) == 1 {
		body = []byte(args[0])
	} else {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		body = raw
	}

	req := new(jsonrpc.Request)
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(body))), req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	out := cmd.OutOrStdout()
	path, _ := cmd.Flags().GetString("upstreams")
	if path == "" {
		u, err := urn.NewParser().Parse(req)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, u.String())
		return nil
	}

	doc, err := upstream.LoadConfig(path)
	if err != nil {
		return err
	}
	resolver, err := upstream.NewResolver(cmd.Context(), doc)
	if err != nil {
		return err
	}
	u, _, err := proxy.Canonicalize(urn.NewParser(resolver.Namespaces()...), resolver, req)
	if err != nil {
		return err
	}

	key := u.String()
	fmt.Fprintln(out, key)
	policy, err := resolver.Resolve(key)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "url=%s ttl=%s timeout=%s retries=%d\n", policy.URL, policy.TTL, policy.Timeout, policy.Retries)
	return nil
}
