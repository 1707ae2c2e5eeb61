package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	// DefaultMaxMessageSize is the default size of the datagram buffers (header included)
	DefaultMaxMessageSize = 2000
	// DefaultQueueSize is the default number of command slots
	DefaultQueueSize = 2
	// DefaultAnswerTimeoutMs is the default time a client waits for an answer
	DefaultAnswerTimeoutMs = 2000
	// NoAutoRestart disables restarting the service after it stopped
	NoAutoRestart = -1
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the command service.
type ServerConfig struct {
	// Name of the service, used in log output
	Name string

	// Transport settings
	Endpoint       string
	MaxMessageSize int

	// Command queue settings
	QueueSize    int
	Mode         ProcessingMode
	SingleSerial bool

	// AutoRestartMs is the delay before the service restarts after it stopped,
	// NoAutoRestart (any negative value) stops it for good
	AutoRestartMs int64

	// MetricsEndpoint is the http address serving /metrics, empty disables it
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns a configuration with the defaults of the CLI
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:           "rcq",
		Endpoint:       "0.0.0.0:7380",
		MaxMessageSize: DefaultMaxMessageSize,
		QueueSize:      DefaultQueueSize,
		Mode:           ModeSerialForClient,
		SingleSerial:   true,
		AutoRestartMs:  NoAutoRestart,
		LogLevel:       "info",
	}
}

// Validate checks the configuration for values the service cannot run with
func (c *ServerConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	if c.QueueSize <= 0 || c.QueueSize > 0xFFFF {
		return fmt.Errorf("queue size must be between 1 and 65535, got %d", c.QueueSize)
	}
	if c.MaxMessageSize < 64 || c.MaxMessageSize > 0xFFFF+4 {
		return fmt.Errorf("max message size must be between 64 and 65539, got %d", c.MaxMessageSize)
	}
	switch c.Mode {
	case ModeParallelForAll, ModeSerialForClient, ModeSerialForAll:
	default:
		return fmt.Errorf("invalid processing mode %d", c.Mode)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Name", c.Name)
	addField("Endpoint", c.Endpoint)
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.MaxMessageSize))
	if c.AutoRestartMs < 0 {
		addField("Auto Restart", "disabled")
	} else {
		addField("Auto Restart", fmt.Sprintf("%d ms", c.AutoRestartMs))
	}

	// Queue settings
	addSection("Command Queue")
	addField("Slots", strconv.Itoa(c.QueueSize))
	addField("Processing Mode", c.Mode.String())
	addField("Single Serial", fmt.Sprintf("%t", c.SingleSerial))

	// Logging and metrics
	addSection("Logging")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics", c.MetricsEndpoint+"/metrics")
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the configuration of a command client
type ClientConfig struct {
	// SenderID identifies this client towards the service
	SenderID uint32
	// Endpoint is the address of the service
	Endpoint string
	// AnswerTimeoutMs is the time to wait for the answer to a single request
	AnswerTimeoutMs int
	// MaxMessageSize is the size of the receive buffer (header included)
	MaxMessageSize int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Sender ID", strconv.FormatUint(uint64(c.SenderID), 10))
	addField("Endpoint", c.Endpoint)
	addField("Answer Timeout", fmt.Sprintf("%d ms", c.AnswerTimeoutMs))
	addField("Max Message Size", fmt.Sprintf("%d bytes", c.MaxMessageSize))

	return sb.String()
}
