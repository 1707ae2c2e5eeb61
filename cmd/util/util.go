package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/ValentinKolb/rcq/rpc/transport"
	"github.com/ValentinKolb/rcq/rpc/transport/udp"
	"github.com/ValentinKolb/rcq/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables (RCQ_<flag>)
	EnvPrefix = "rcq"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig loads .env files and makes viper read matching environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// SetupRPCClientFlags adds the connection flags of the client commands
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:7380", WrapString("The address of the service (host:port for udp, a socket path for unix)"))

	key = "sender-id"
	cmd.PersistentFlags().Uint32(key, 1, WrapString("The sender id identifying this client towards the service"))

	key = "answer-timeout-ms"
	cmd.PersistentFlags().Int(key, common.DefaultAnswerTimeoutMs, WrapString("How long to wait for the answer to a single request (in milliseconds)"))

	key = "max-message-size"
	cmd.PersistentFlags().Int(key, common.DefaultMaxMessageSize, WrapString("The size of the receive buffer (in bytes, frame header included)"))
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		SenderID:        viper.GetUint32("sender-id"),
		Endpoint:        viper.GetString("endpoint"),
		AnswerTimeoutMs: viper.GetInt("answer-timeout-ms"),
		MaxMessageSize:  viper.GetInt("max-message-size"),
	}
}

// GetClientTransport creates the client transport selected by the transport flag
func GetClientTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "udp":
		return udp.NewUDPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetServerTransport creates the server transport selected by the transport flag
func GetServerTransport() (transport.IRPCServerTransport, error) {
	switch viper.GetString("transport") {
	case "udp":
		return udp.NewUDPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
