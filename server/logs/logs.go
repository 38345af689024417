/******************************************************************************
 *
 *  Description :
 *    Package exposes info, warning and error loggers.
 *
 *****************************************************************************/

// Package logs exposes info, warning and error loggers.
package logs

import (
	"io"
	"log"
	"os"
	"strings"
)

var (
	// Info is a logger at the 'info' logging level.
	Info *log.Logger
	// Warn is a logger at the 'warning' logging level.
	Warn *log.Logger
	// Err is a logger at the 'error' logging level.
	Err *log.Logger
)

func parseFlags(logFlags string) int {
	flags := 0
	for _, v := range strings.Split(logFlags, ",") {
		switch strings.TrimSpace(v) {
		case "date":
			flags |= log.Ldate
		case "time":
			flags |= log.Ltime
		case "microseconds":
			flags |= log.Lmicroseconds
		case "longfile":
			flags |= log.Llongfile
		case "shortfile":
			flags |= log.Lshortfile
		case "UTC":
			flags |= log.LUTC
		case "msgprefix":
			flags |= log.Lmsgprefix
		case "stdflags":
			flags |= log.LstdFlags
		}
	}
	if flags == 0 {
		flags = log.LstdFlags | log.Lshortfile
	}
	return flags
}

// Init initializes info, warning and error loggers given the flags and the output.
// Output is either "stdout" or "stderr", flags is a comma-separated list of
// date, time, microseconds, longfile, shortfile, UTC, msgprefix, stdflags.
func Init(output string, logFlags string) {
	var w io.Writer
	if output == "stdout" {
		w = os.Stdout
	} else {
		w = os.Stderr
	}
	initWith(w, parseFlags(logFlags))
}

// Discard silences all loggers.
func Discard() {
	initWith(io.Discard, 0)
}

func initWith(w io.Writer, flags int) {
	Info = log.New(w, "I", flags)
	Warn = log.New(w, "W", flags)
	Err = log.New(w, "E", flags)
}

func init() {
	initWith(os.Stderr, log.LstdFlags|log.Lshortfile)
}
