package utils

import "strings"

// AddToLogMessage appends one line to a handler's accumulated log output,
// flushed in a single print when the handler returns.
func AddToLogMessage(b *strings.Builder, msg string) {
	b.WriteString(msg)
	b.WriteString(";\n")
}
