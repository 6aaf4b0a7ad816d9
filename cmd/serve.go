package cmd

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmorganca/pyramidkv/envconfig"
	"github.com/jmorganca/pyramidkv/server"
)

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the debug HTTP API",
		Long:  "Start the debug HTTP API.\n\nEnvironment Variables:\n" + envHelp(),
		RunE:  serveHandler,
	}

	cmd.Flags().String("host", "", "Bind address (default PYRAMIDKV_HOST)")

	return cmd
}

func serveHandler(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	if host == "" {
		host = envconfig.Host
	}

	ln, err := net.Listen("tcp", host)
	if err != nil {
		return err
	}

	return server.Serve(ln)
}

func envHelp() string {
	vars := envconfig.AsMap()

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "    %-24s%s\n", name, vars[name].Description)
	}
	return sb.String()
}
