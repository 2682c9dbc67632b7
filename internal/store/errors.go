package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// corruptionMarkers are substrings of SQLite errors that mean the file
// itself is damaged.
var corruptionMarkers = []string{
	"malformed",
	"not a database",
	"file is encrypted",
	"database disk image",
	"no such table: chunks",
	"unable to open database file",
}

// IsFatal reports whether err means the persisted store is unusable.
// Context cancellation is never fatal.
func IsFatal(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return docserrors.IsFatal(err)
}

// classify converts backend errors into DocsErrors, marking corruption
// and full disks fatal. Context errors pass through untouched.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var de *docserrors.DocsError
	if errors.As(err, &de) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, m := range corruptionMarkers {
		if strings.Contains(msg, m) {
			return docserrors.New(docserrors.ErrCodeCorruptIndex, op+": store is corrupt", err).
				WithSuggestion("the index will be rebuilt; run: docsmcp index")
		}
	}
	if strings.Contains(msg, "disk is full") || strings.Contains(msg, "no space left") {
		return docserrors.New(docserrors.ErrCodeDiskFull, op+": disk full", err)
	}
	return docserrors.New(docserrors.ErrCodeStoreWrite, op, err)
}

// recoverFatal turns a panic inside the backend into a fatal error.
func recoverFatal(op string, errp *error) {
	if r := recover(); r != nil {
		*errp = docserrors.New(docserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("%s: backend panic: %v", op, r), nil)
	}
}
