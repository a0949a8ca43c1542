// Package logging gives each pipeline actor a small, tagged logger so its
// output can be told apart on a shared stderr stream, using a
// bracketed-tag convention ("[supervisor]", "[websocket]").
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// tailSize is how many recent lines each actor's ring buffer retains, for
// internal/statusserver's "last five log lines per actor" introspection.
const tailSize = 5

// Logger prefixes every line with a bracketed actor tag.
type Logger struct {
	tag  string
	name string
	std  *log.Logger
}

var (
	ringsMu sync.Mutex
	rings   = map[string][]string{}
)

func recordLine(name, line string) {
	ringsMu.Lock()
	defer ringsMu.Unlock()
	buf := append(rings[name], line)
	if len(buf) > tailSize {
		buf = buf[len(buf)-tailSize:]
	}
	rings[name] = buf
}

// Tail returns the last few log lines recorded under the given actor name,
// oldest first. Used by internal/statusserver to answer GET /status.
func Tail(name string) []string {
	ringsMu.Lock()
	defer ringsMu.Unlock()
	out := make([]string, len(rings[name]))
	copy(out, rings[name])
	return out
}

// New returns a Logger writing to stderr, tagged with name (e.g. "websocket").
func New(name string) *Logger {
	return &Logger{
		tag:  "[" + name + "] ",
		name: name,
		std:  log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Printf logs a formatted, timestamped line tagged with the actor's name.
func (l *Logger) Printf(format string, args ...interface{}) {
	line := fmt.Sprintf(l.tag+format, args...)
	l.std.Print(line)
	recordLine(l.name, line)
}

// Println logs a single timestamped line tagged with the actor's name.
func (l *Logger) Println(args ...interface{}) {
	line := fmt.Sprint(append([]interface{}{l.tag}, args...)...)
	l.std.Print(line)
	recordLine(l.name, line)
}

// With returns a derived Logger whose tag also carries a generation id, so
// log lines from a rebuilt actor group can be told apart from the last one.
func (l *Logger) With(generation string) *Logger {
	return &Logger{
		tag:  l.tag[:len(l.tag)-2] + "/" + generation + "] ",
		name: l.name,
		std:  l.std,
	}
}

// Acknowledge writes a user-visible acknowledgement line to stdout, matching
// §7's contract that acknowledgements ("successfully started websocket",
// "Subscribed to event: ...") are distinct from the error log on stderr.
func Acknowledge(format string, args ...interface{}) {
	log.New(os.Stdout, "", log.LstdFlags).Printf(format, args...)
}
