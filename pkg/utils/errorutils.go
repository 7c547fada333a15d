package utils

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
)

// WrapIfNotNil prefixes err with the calling function name and optional context.
// The original error stays reachable through errors.Is / errors.As.
func WrapIfNotNil(err error, context ...string) error {
	if err == nil {
		return nil
	}

	callerName := "unknown"
	if pc, _, _, ok := runtime.Caller(1); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			callerName = fn.Name()
		}
	}

	parts := make([]string, 0, 1+len(context))
	parts = append(parts, callerName)
	parts = append(parts, context...)

	return fmt.Errorf("%s: %w", strings.Join(parts, " - "), err)
}

// CloseLogged closes c and logs, rather than returns, a failure.
// Meant for deferred closes of read-only handles where the error carries no signal.
func CloseLogged(c io.Closer, log logging.Logger, what string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil && log != nil {
		log.Warnf("close %s: %v", what, err)
	}
}
