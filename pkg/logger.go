package pkg

import (
	"io"
	"log"
	"os"
)

type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelErrOnly
	LogLevelDebug
)

var log_level = LogLevelErrOnly

var (
	info_logger  = log.New(os.Stdout, "INFO: ", log.Lshortfile|log.LstdFlags)
	warn_logger  = log.New(os.Stdout, "WARN: ", log.Lshortfile|log.LstdFlags)
	debug_logger = log.New(os.Stdout, "DEBUG: ", log.Lshortfile|log.LstdFlags)
	error_logger = log.New(os.Stderr, "ERROR: ", log.Lshortfile|log.LstdFlags)
	fatal_logger = log.New(os.Stderr, "FATAL: ", log.Lshortfile|log.LstdFlags)
)

func SetLogLevel(level LogLevel) {
	log_level = level

	set := func(l *log.Logger, min LogLevel, w io.Writer) {
		if level >= min {
			l.SetOutput(w)
		} else {
			l.SetOutput(io.Discard)
		}
	}

	set(error_logger, LogLevelErrOnly, os.Stderr)
	set(fatal_logger, LogLevelErrOnly, os.Stderr)
	set(info_logger, LogLevelDebug, os.Stdout)
	set(warn_logger, LogLevelDebug, os.Stdout)
	set(debug_logger, LogLevelDebug, os.Stdout)
}

func GetLogLevel() LogLevel { return log_level }

var (
	InfoLog  = info_logger.Println
	WarnLog  = warn_logger.Println
	DebugLog = debug_logger.Println
	ErrorLog = error_logger.Println
	FatalLog = fatal_logger.Fatalln
)
