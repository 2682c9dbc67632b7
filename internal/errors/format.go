package errors

import (
	"fmt"
	"strings"
)

// FormatForCLI renders err for terminal output, with hint and code when the
// chain contains a DocsError.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	de, ok := as(err)
	if !ok {
		return fmt.Sprintf("Error: %s\n", err.Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", de.Message)
	if de.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", de.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", de.Code)
	return sb.String()
}
