package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/balupi/pkg/domain"
)

// Overlay marks live data on the rendered lifecycle.
type Overlay struct {
	Current domain.HostState
}

// edgeLabels names the component that normally drives each edge.
var edgeLabels = map[[2]domain.HostState]string{
	{domain.StateOffline, domain.StateBooting}:      "wol",
	{domain.StateOnline, domain.StateShuttingDown}:  "handshake",
	{domain.StateShuttingDown, domain.StateOffline}: "handshake",
	{domain.StateShuttingDown, domain.StateOnline}:  "heartbeat",
	{domain.StateOnline, domain.StateOffline}:       "heartbeat",
	{domain.StateBooting, domain.StateOffline}:      "heartbeat",
}

// GenerateMermaid renders the host lifecycle as a Mermaid state diagram.
// Unknown is drawn as the entry point; edges are annotated with their usual driver.
func GenerateMermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString(fmt.Sprintf("    [*] --> %s\n", sanitizeMermaidID(domain.StateUnknown)))

	for _, from := range domain.States {
		for _, to := range domain.NextStates(from) {
			line := fmt.Sprintf("    %s --> %s", sanitizeMermaidID(from), sanitizeMermaidID(to))
			if label, ok := edgeLabels[[2]domain.HostState{from, to}]; ok {
				line += ": " + label
			}
			sb.WriteString(line + "\n")
		}
	}

	if overlay != nil && overlay.Current.Valid() {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on both light and dark themes.
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000\n")
		sb.WriteString(fmt.Sprintf("    class %s current\n", sanitizeMermaidID(overlay.Current)))
	}

	return sb.String()
}

func sanitizeMermaidID(s domain.HostState) string {
	return strings.ReplaceAll(string(s), "-", "_")
}
