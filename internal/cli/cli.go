package cli

import (
	"flag"
	"strings"

	"github.com/vkngwrapper/vkinit/internal/ctxlog"
)

// ExitError is an error that carries the process exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(msg string) *ExitError {
	return &ExitError{Code: 2, Message: msg}
}

// stringList is a repeatable flag. Each value may also hold a comma
// separated list.
type stringList struct {
	values []string
	set    bool
}

func (l *stringList) String() string {
	return strings.Join(l.values, ",")
}

func (l *stringList) Set(v string) error {
	l.set = true
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			l.values = append(l.values, part)
		}
	}
	return nil
}

// parseFlags runs the flag set and turns -h into a clean exit.
func parseFlags(flagSet *flag.FlagSet, args []string) (bool, error) {
	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return true, nil
		}
		return false, usageError(err.Error())
	}
	return false, nil
}

// checkLogging normalizes the shared -log-level and -log-format values.
func checkLogging(level, format string) (string, string, error) {
	level = strings.ToLower(level)
	if _, ok := ctxlog.ParseLevel(level); !ok {
		return "", "", usageError("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return "", "", usageError("invalid log-format: must be 'text' or 'json'")
	}
	return level, format, nil
}
