/******************************************************************************
 *
 *  Description :
 *    Package exposes info, warning and error loggers.
 *
 *****************************************************************************/
package logs

import (
	"io"
	"log"
	"os"
	"strings"
)

var (
	Info *log.Logger
	Warn *log.Logger
	Err  *log.Logger
)

func init() {
	// Default initialization for tests and tools which don't call Init.
	Init(os.Stderr, "stdFlags")
}

// Init initializes all three loggers with the same output and flags.
// Supported flags: date, time, utc, micro, shortfile, longfile, stdFlags.
func Init(out io.Writer, logFlags string) {
	var flags int
	for _, str := range strings.Split(logFlags, ",") {
		switch strings.TrimSpace(str) {
		case "date":
			flags |= log.Ldate
		case "time":
			flags |= log.Ltime
		case "utc":
			flags |= log.LUTC
		case "micro":
			flags |= log.Lmicroseconds
		case "shortfile":
			flags |= log.Lshortfile
		case "longfile":
			flags |= log.Llongfile
		case "stdFlags":
			flags |= log.LstdFlags
		}
	}

	Info = log.New(out, "I", flags)
	Warn = log.New(out, "W", flags)
	Err = log.New(out, "E", flags)
}
