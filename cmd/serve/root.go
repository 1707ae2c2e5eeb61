package serve

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/rcq/cmd/util"
	"github.com/ValentinKolb/rcq/lib/commands"
	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/ValentinKolb/rcq/rpc/serializer"
	"github.com/ValentinKolb/rcq/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the command service",
		Long:    `Start the command service with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is RCQ_<flag> (e.g. RCQ_QUEUE_SIZE=8)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	defaults := common.DefaultServerConfig()

	// add flags
	key := "name"
	ServeCmd.PersistentFlags().String(key, defaults.Name, cmdUtil.WrapString("Name of the service, used in log output"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, defaults.Endpoint, cmdUtil.WrapString("The address on which the service will listen (host:port for udp, a socket path for unix)"))

	key = "max-message-size"
	ServeCmd.PersistentFlags().Int(key, defaults.MaxMessageSize, cmdUtil.WrapString("The size of the datagram buffers (in bytes, frame header included). Larger answers are not sent"))

	key = "queue-size"
	ServeCmd.PersistentFlags().Int(key, defaults.QueueSize, cmdUtil.WrapString("Number of command slots. Queued, executing and held results all occupy a slot"))

	key = "mode"
	ServeCmd.PersistentFlags().String(key, defaults.Mode.String(), cmdUtil.WrapString("Processing mode: parallel (all commands run concurrently), serial-client (one command per sender at a time), serial-all (one command at a time)"))

	key = "single-serial"
	ServeCmd.PersistentFlags().Bool(key, defaults.SingleSerial, cmdUtil.WrapString("Only admit a command if no other command (of the same sender in serial-client mode) occupies a slot"))

	key = "auto-restart-ms"
	ServeCmd.PersistentFlags().Int64(key, defaults.AutoRestartMs, cmdUtil.WrapString("Delay before the service restarts after it stopped (in milliseconds), negative disables the restart"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address serving Prometheus metrics on /metrics (e.g. localhost:9090), empty disables it"))

	key = "body"
	ServeCmd.PersistentFlags().String(key, "ping", cmdUtil.WrapString("The command body executing admitted commands ("+strings.Join(commands.Names(), ", ")+")"))

	key = "body-delay-ms"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Artificial delay added to every command execution (in milliseconds)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, defaults.LogLevel, cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	mode, err := common.ParseProcessingMode(viper.GetString("mode"))
	if err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Name = viper.GetString("name")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MaxMessageSize = viper.GetInt("max-message-size")
	serveCmdConfig.QueueSize = viper.GetInt("queue-size")
	serveCmdConfig.Mode = mode
	serveCmdConfig.SingleSerial = viper.GetBool("single-serial")
	serveCmdConfig.AutoRestartMs = viper.GetInt64("auto-restart-ms")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return serveCmdConfig.Validate()
}

// run starts the command service and blocks until it is halted or interrupted
func run(_ *cobra.Command, _ []string) error {
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	body, err := commands.ByName(viper.GetString("body"), time.Duration(viper.GetInt("body-delay-ms"))*time.Millisecond)
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv, err := server.NewRPCServer(
		*serveCmdConfig,
		t,
		serializer.NewBinarySerializer(),
		body,
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serv.Serve(ctx)
}
