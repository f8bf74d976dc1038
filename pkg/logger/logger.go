package logger

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// ANSI color codes, used by Section/Banner which print directly to stdout.
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[37m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

// Log levels, kept for SetLevel's public signature.
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSuccess
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	log.SetLevel(logrus.InfoLevel)
}

// SetLevel sets the minimum log level using the teacher's int scale.
func SetLevel(level int) {
	switch level {
	case LevelDebug:
		log.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		log.SetLevel(logrus.WarnLevel)
	case LevelError:
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// SetTimeFormat sets the timestamp layout used in log lines.
func SetTimeFormat(format string) {
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: format,
	})
}

// ShowTime enables or disables the timestamp prefix.
func ShowTime(show bool) {
	log.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !show,
		FullTimestamp:    show,
	})
}

// Fields carries structured key/value context through to the backing logrus
// entry: peer address, tick number, role, and the like.
type Fields = logrus.Fields

// Debug logs a debug message, optionally with a trailing Fields argument.
func Debug(format string, args ...interface{}) {
	entryFor(args).Debug(fmt.Sprintf(format, stripFields(args)...))
}

// Info logs an informational message.
func Info(format string, args ...interface{}) {
	entryFor(args).Info(fmt.Sprintf(format, stripFields(args)...))
}

// Warn logs a warning message.
func Warn(format string, args ...interface{}) {
	entryFor(args).Warn(fmt.Sprintf(format, stripFields(args)...))
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	entryFor(args).Error(fmt.Sprintf(format, stripFields(args)...))
}

// Success logs a successful-operation message, tagged for the console formatter.
func Success(format string, args ...interface{}) {
	entryFor(args).WithField("status", "success").Info(fmt.Sprintf(format, stripFields(args)...))
}

// Fatal logs a fatal error and exits.
func Fatal(format string, args ...interface{}) {
	entryFor(args).Fatal(fmt.Sprintf(format, stripFields(args)...))
}

// InfoCyan logs an info message tagged for highlighted display.
func InfoCyan(format string, args ...interface{}) {
	entryFor(args).WithField("highlight", true).Info(fmt.Sprintf(format, stripFields(args)...))
}

// entryFor pulls a trailing Fields argument off args, if present, and returns
// a logrus entry carrying it; otherwise it returns the bare logger entry.
func entryFor(args []interface{}) *logrus.Entry {
	if n := len(args); n > 0 {
		if f, ok := args[n-1].(Fields); ok {
			return log.WithFields(f)
		}
	}
	return logrus.NewEntry(log)
}

// stripFields removes a trailing Fields argument so it isn't passed to Sprintf.
func stripFields(args []interface{}) []interface{} {
	if n := len(args); n > 0 {
		if _, ok := args[n-1].(Fields); ok {
			return args[:n-1]
		}
	}
	return args
}

// Section prints a section header directly to stdout, outside the logrus pipeline.
func Section(title string) {
	border := "═══════════════════════════════════════════════════════════"
	fmt.Fprintf(os.Stdout, "\n%s╔%s╗%s\n", ColorCyan, border, ColorReset)
	fmt.Fprintf(os.Stdout, "%s║%s %-57s %s║%s\n", ColorCyan, ColorReset, title, ColorCyan, ColorReset)
	fmt.Fprintf(os.Stdout, "%s╚%s╝%s\n\n", ColorCyan, border, ColorReset)
}

// Banner prints the application banner directly to stdout.
func Banner(title, version string) {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   ██████╗  ██████╗ ███╗   ██╗ ██████╗                    ║
║   ██╔══██╗██╔═══██╗████╗  ██║██╔════╝                    ║
║   ██████╔╝██║   ██║██╔██╗ ██║██║  ███╗                   ║
║   ██╔═══╝ ██║   ██║██║╚██╗██║██║   ██║                   ║
║   ██║     ╚██████╔╝██║ ╚████║╚██████╔╝                   ║
║   ╚═╝      ╚═════╝ ╚═╝  ╚═══╝ ╚═════╝                    ║
║                                                           ║
║              %s%-37s%s║
║                    %sVersion %-7s%s                      ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Fprintf(os.Stdout, banner, ColorCyan, title, ColorReset, ColorGreen, version, ColorReset)
}
