package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/rcq/cmd/remote"
	"github.com/ValentinKolb/rcq/cmd/serve"
	"github.com/ValentinKolb/rcq/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "rcq",
		Short: "queued remote command service",
		Long: fmt.Sprintf(`rcq (v%s)

A remote command service over datagrams. Clients submit commands, the service
queues and executes them under a configurable processing mode and holds the
results until the client fetched and finalized them.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of rcq",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rcq v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(remote.RemoteCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "udp", util.WrapString("transport to use (udp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
