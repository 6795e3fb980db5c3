// Package logging builds the slog loggers shared across scribe.
//
// Two handler formats are supported: a pretty console handler with a header
// line plus indented fields (colorized when writing to a terminal) and a
// compact JSON handler for log files and machine consumption. Field-name
// constants keep structured keys uniform across components.
package logging
