package db

import (
	"strings"

	"github.com/teranos/nanoprobe/errors"
)

// ErrDatabaseClosed is returned when a write races with shutdown
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed reports whether err means the connection was already closed.
// database/sql returns its own unwrapped error for this, so the message is matched as a fallback.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
