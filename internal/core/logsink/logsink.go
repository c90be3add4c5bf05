package logsink

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sink receives human-readable progress and status lines from the engine.
// The service addresses these at the end user (request progress, account
// messages, news), so they are kept separate from the structured debug log.
type Sink interface {
	Emit(line string)
}

// Func adapts a plain function to a Sink.
type Func func(string)

func (f Func) Emit(line string) { f(line) }

// Stdout returns a Sink that prints each line to standard output with a
// timestamp prefix. This is the default sink.
func Stdout() Sink {
	return Func(func(line string) {
		fmt.Printf("%s %s\n", time.Now().Format("2006-01-02 15:04:05"), line)
	})
}

// Discard returns a Sink that drops every line.
func Discard() Sink {
	return Func(func(string) {})
}

// Zero returns a Sink that forwards lines to a zerolog logger at info level.
func Zero(l zerolog.Logger) Sink {
	return Func(func(line string) {
		l.Info().Msg(line)
	})
}
