package jsvm

import (
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/codename-co/runbox/internal/protocol"
)

// consoleRecorder captures guest console calls as host-side ConsoleEntry
// records, tagged with elapsed time since execution start. Entries are
// appended in guest emission order and never reordered.
type consoleRecorder struct {
	start     time.Time
	entries   []protocol.ConsoleEntry
	remaining int
	truncated bool
}

func newConsoleRecorder(start time.Time, limit int) *consoleRecorder {
	return &consoleRecorder{start: start, remaining: limit}
}

// install binds a console object with the standard five methods into vm.
func (c *consoleRecorder) install(vm *goja.Runtime) error {
	console := vm.NewObject()
	for _, kind := range []protocol.ConsoleKind{
		protocol.ConsoleLog,
		protocol.ConsoleWarn,
		protocol.ConsoleError,
		protocol.ConsoleInfo,
		protocol.ConsoleDebug,
	} {
		if err := console.Set(string(kind), c.method(kind)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

func (c *consoleRecorder) method(kind protocol.ConsoleKind) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if c.remaining <= 0 {
			c.truncated = true
			return goja.Undefined()
		}
		args := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			s := protocol.FormatValue(arg.Export())
			if len(s) > c.remaining {
				s = s[:c.remaining]
				c.truncated = true
			}
			c.remaining -= len(s)
			args = append(args, s)
			if c.remaining <= 0 {
				break
			}
		}
		c.entries = append(c.entries, protocol.ConsoleEntry{
			Kind:      kind,
			Args:      args,
			ElapsedMs: time.Since(c.start).Milliseconds(),
		})
		return goja.Undefined()
	}
}

// stdout joins log/info/debug entries into a conventional output stream;
// stderr collects warn/error entries.
func (c *consoleRecorder) stdout() string {
	return c.join(protocol.ConsoleLog, protocol.ConsoleInfo, protocol.ConsoleDebug)
}

func (c *consoleRecorder) stderr() string {
	return c.join(protocol.ConsoleWarn, protocol.ConsoleError)
}

func (c *consoleRecorder) join(kinds ...protocol.ConsoleKind) string {
	var b strings.Builder
	for _, e := range c.entries {
		for _, k := range kinds {
			if e.Kind == k {
				b.WriteString(strings.Join(e.Args, " "))
				b.WriteByte('\n')
				break
			}
		}
	}
	return b.String()
}
