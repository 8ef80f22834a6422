// Package output renders engine results for the CLI as tables, compact
// one-line records or JSON.
package output

import (
	"os"
	"strings"
)

// EnvOutput selects the format when no format flag is given.
const EnvOutput = "TRACKFLOW_OUTPUT"

// Format is an output format.
type Format int

// Output formats. Table is the default.
const (
	FormatTable Format = iota
	FormatJSON
	FormatCompact
)

var formatNames = map[string]Format{
	"table":   FormatTable,
	"json":    FormatJSON,
	"compact": FormatCompact,
	"oneline": FormatCompact,
}

// ParseFormat maps a format name such as "json" onto its Format.
func ParseFormat(name string) (Format, bool) {
	f, ok := formatNames[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Detect picks the format: --json, then --compact, then --table, then
// $TRACKFLOW_OUTPUT, falling back to table.
func Detect(jsonFlag, tableFlag, compactFlag bool) Format {
	switch {
	case jsonFlag:
		return FormatJSON
	case compactFlag:
		return FormatCompact
	case tableFlag:
		return FormatTable
	}
	if f, ok := ParseFormat(os.Getenv(EnvOutput)); ok {
		return f
	}
	return FormatTable
}
