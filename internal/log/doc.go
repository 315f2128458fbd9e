// Package log holds the slog plumbing shared by the command line tools and
// the wire log sinks: a handler that redacts credentials and a size-rotated
// log file.
package log
