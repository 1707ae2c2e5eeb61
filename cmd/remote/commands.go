package remote

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/rcq/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	stateCmd = &cobra.Command{
		Use:   "state",
		Short: "Prints the state of the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := rpcClient.GetState(cmd.Context(), rpcClient.AnswerTimeout())
			if err != nil {
				return err
			}
			fmt.Print(state.String())
			return nil
		},
	}
	execCmd = &cobra.Command{
		Use:   "exec [input...]",
		Short: "Executes a command and prints its output",
		Long: `Executes a command and prints its output. The arguments are joined with spaces and sent as command input.
With a timeout of 0 the command is only submitted, a negative timeout is rejected unless the queue of the service is empty.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}

			res, err := rpcClient.Execute(cmd.Context(), rpcClient.AnswerTimeout(), viper.GetInt32("timeout-ms"), []byte(strings.Join(args, " ")))
			if err != nil {
				return err
			}
			if res.Output == nil {
				fmt.Printf("submitted command 0x%X\n", res.CommandID)
				return nil
			}
			fmt.Println(string(res.Output))
			return nil
		},
	}
	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stops the service",
		Long: `Stops the service. Without --restart-ms the service applies its own auto restart setting,
a negative value halts it and a positive value restarts it after that many milliseconds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var delay *int32
			if cmd.Flags().Changed("restart-ms") {
				d, err := cmd.Flags().GetInt32("restart-ms")
				if err != nil {
					return err
				}
				delay = &d
			}

			if err := rpcClient.Stop(cmd.Context(), rpcClient.AnswerTimeout(), delay); err != nil {
				return err
			}
			fmt.Println("stopped successfully")
			return nil
		},
	}
)

func init() {
	key := "timeout-ms"
	execCmd.Flags().Int32(key, 5000, util.WrapString("How long the service retains the result and the client polls for it (in milliseconds)"))

	key = "restart-ms"
	stopCmd.Flags().Int32(key, -1, util.WrapString("Restart delay in milliseconds, negative halts the service"))
}
