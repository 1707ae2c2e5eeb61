package commands

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ValentinKolb/rcq/lib/queue"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("commands")

// --------------------------------------------------------------------------
// Bodies
// --------------------------------------------------------------------------

// Echo returns a body that answers with its input
func Echo() queue.CommandBody {
	return queue.CommandBodyFunc(func(ctx context.Context, input []byte) ([]byte, error) {
		return append([]byte(nil), input...), nil
	})
}

// PingPong returns a body that answers PING with PONG and fails for every other input
func PingPong() queue.CommandBody {
	return queue.CommandBodyFunc(func(ctx context.Context, input []byte) ([]byte, error) {
		if !bytes.Equal(input, []byte("PING")) {
			return nil, fmt.Errorf("unknown command %q", input)
		}
		return []byte("PONG"), nil
	})
}

// Delayed wraps body so that every execution first waits for d. The wait is
// aborted (and the body not called) when ctx is cancelled.
func Delayed(body queue.CommandBody, d time.Duration) queue.CommandBody {
	if d <= 0 {
		return body
	}
	return queue.CommandBodyFunc(func(ctx context.Context, input []byte) ([]byte, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-timer.C:
			return body.Execute(ctx, input)
		case <-ctx.Done():
			return nil, fmt.Errorf("command aborted after less than %s: %w", d, ctx.Err())
		}
	})
}

// Logged wraps body with debug output for every execution
func Logged(name string, body queue.CommandBody) queue.CommandBody {
	return queue.CommandBodyFunc(func(ctx context.Context, input []byte) ([]byte, error) {
		start := time.Now()
		output, err := body.Execute(ctx, input)
		Logger.Debugf("%s: %d bytes in, %d bytes out, took %s, err=%v", name, len(input), len(output), time.Since(start), err)
		return output, err
	})
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// factories holds the bodies selectable by name
var factories = map[string]func() queue.CommandBody{
	"echo": Echo,
	"ping": PingPong,
}

// Names returns the names accepted by ByName in sorted order
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByName creates the body registered as name, delayed by delay
func ByName(name string, delay time.Duration) (queue.CommandBody, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown command body %q (available: %v)", name, Names())
	}
	return Logged(name, Delayed(factory(), delay)), nil
}
