// Package cmd implements the command-line interface of rcq. It provides a
// hierarchical command structure for running the command service and for
// talking to it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Command for starting and configuring the command service
//   - remote: Client commands (state, exec, stop, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as environment variables RCQ_<FLAG> or in a
// .env / .env.local file. See rcq -help for a list of all commands.
package cmd
