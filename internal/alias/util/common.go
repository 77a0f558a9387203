package util

import (
	"io"
	"log/slog"
)

// CloseQuietly closes c and logs, rather than returns, any error. Use it
// only where the data has already been read or written.
func CloseQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		slog.Warn("close failed", "what", what, "err", err)
	}
}
