// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package export

import (
	"fmt"
	"strings"
)

// Message renders the human-readable delivery text carrying the export blob.
func Message(brand, sessionID, blob string) string {
	if brand == "" {
		brand = "web-pair"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s session export*\n\n", strings.ToUpper(brand))
	fmt.Fprintf(&sb, "Session ID: %s\n\n", sessionID)
	sb.WriteString("Session data:\n")
	sb.WriteString(blob)
	sb.WriteString("\n\n")
	sb.WriteString("Save this message. The session data above restores your linked session.\n")
	sb.WriteString("Never share it: anyone holding it can act as your account.\n")
	sb.WriteString("This pairing session will now be closed.")
	return sb.String()
}
