package remote

import (
	"github.com/ValentinKolb/rcq/cmd/util"
	"github.com/ValentinKolb/rcq/rpc/client"
	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/ValentinKolb/rcq/rpc/serializer"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.RPCClient

	// RemoteCommands represents the client command group
	RemoteCommands = &cobra.Command{
		Use:                "client",
		Short:              "Send requests to a running command service",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the client command
	util.SetupRPCClientFlags(RemoteCommands)

	key := "log-level"
	RemoteCommands.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	// Add subcommands
	RemoteCommands.AddCommand(stateCmd)
	RemoteCommands.AddCommand(execCmd)
	RemoteCommands.AddCommand(stopCmd)
	RemoteCommands.AddCommand(perfTestCmd)
}

// setupClient initializes the RPC client
func setupClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(cmd.Flag("log-level").Value.String()); err != nil {
		return err
	}

	t, err := util.GetClientTransport()
	if err != nil {
		return err
	}

	rpcClient, err = client.NewRPCClient(
		*util.GetClientConfig(),
		t,
		serializer.NewBinarySerializer(),
	)
	return err
}

// closeClient releases the socket of the RPC client
func closeClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}
