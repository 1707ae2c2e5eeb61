package remote

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/rcq/cmd/util"
	"github.com/ValentinKolb/rcq/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for command services",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfNumThreads = 4
	perfTimeoutMs  = int32(5000)
	perfInput      = "PING"
	perfSkip       = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. state,exec,exec-no-wait,exec-fire-and-forget)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 4, util.WrapString("Number of goroutines sending requests. Keep it below the queue size of the service, rejected commands are only logged"))
	key = "input"
	perfTestCmd.Flags().String(key, "PING", util.WrapString("Input of the executed commands"))
	key = "timeout-ms"
	perfTestCmd.Flags().Int32(key, 5000, util.WrapString("Execute timeout of the executed commands (in milliseconds)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfTimeoutMs = viper.GetInt32("timeout-ms")
	perfInput = viper.GetString("input")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for command services")

	// Print configuration
	config := util.GetClientConfig()
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	ctx := cmd.Context()
	timeout := rpcClient.AnswerTimeout()
	results := make(map[string]testing.BenchmarkResult)

	results["state"] = benchmark("state", func() error {
		_, err := rpcClient.GetState(ctx, timeout)
		return err
	})
	for _, mode := range perfExecModes(perfTimeoutMs) {
		results[mode.name] = benchmark(mode.name, func() error {
			_, err := rpcClient.Execute(ctx, timeout, mode.timeoutMs, []byte(perfInput))
			return err
		})
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return err
		}
	}

	return nil
}

// perfExecMode is an execute benchmark and the execute timeout it sends
type perfExecMode struct {
	name      string
	timeoutMs int32
}

// perfExecModes returns the execute benchmarks for the configured timeout.
// A negative timeout asks for no-wait admission, zero sends the command
// without waiting for its result.
func perfExecModes(timeoutMs int32) []perfExecMode {
	switch {
	case timeoutMs == math.MinInt32:
		timeoutMs = math.MaxInt32
	case timeoutMs < 0:
		timeoutMs = -timeoutMs
	case timeoutMs == 0:
		timeoutMs = 1
	}
	return []perfExecMode{
		{name: "exec", timeoutMs: timeoutMs},
		{name: "exec-no-wait", timeoutMs: -timeoutMs},
		{name: "exec-fire-and-forget", timeoutMs: 0},
	}
}

// benchmark runs op from perfNumThreads goroutines and prints the result
func benchmark(test string, op func() error) testing.BenchmarkResult {
	result := testing.Benchmark(func(b *testing.B) {
		if shouldSkip(test) {
			return
		}

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				if err := op(); err != nil && !isExpected(err) {
					log.Printf("(%s) - request failed: %v\n", test, err)
				}
			}
		})
	})

	printResult(test, result)
	return result
}

// isExpected reports errors caused by the load itself
func isExpected(err error) bool {
	return common.CodeOf(err) == common.ResultCannotExecute || errors.Is(err, context.Canceled)
}

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if strings.TrimSpace(skip) == test {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoint", "Transport", "SenderID", "AnswerTimeoutMs",
		"Threads", "ExecuteTimeoutMs", "InputSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "false"

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			strconv.FormatFloat(nsPerOp, 'f', 0, 64),
			time.Duration(nsPerOp).String(),
			strconv.FormatFloat(opsPerSec, 'f', 0, 64),
			skipped,
			config.Endpoint,
			viper.GetString("transport"),
			strconv.FormatUint(uint64(config.SenderID), 10),
			strconv.Itoa(config.AnswerTimeoutMs),
			strconv.Itoa(perfNumThreads),
			strconv.FormatInt(int64(perfTimeoutMs), 10),
			strconv.Itoa(len(perfInput)),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %v", err)
		}
	}

	return nil
}
