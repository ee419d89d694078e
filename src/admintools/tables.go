package admintools

import (
	"fmt"
	"strings"
	"time"

	"github.com/illustory/gallery/src/identity"
	"github.com/illustory/gallery/src/models"
)

func formatIllustrationTable(ills []*models.Illustration) string {
	if len(ills) == 0 {
		return "No illustrations.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%6s  %-8s  %6s  %6s  %s\n", "ID", "STATUS", "SVG", "PNG", "TITLE")
	for _, ill := range ills {
		fmt.Fprintf(&b, "%6d  %-8s  %6d  %6d  %s\n",
			ill.ID,
			visibilityLabel(ill.Visible),
			ill.DownloadCountSVG,
			ill.DownloadCountPNG,
			ill.Title,
		)
	}
	return b.String()
}

// Addresses are shown hashed, the same way they appear in the server logs.
func formatDownloadTable(entries []*models.DownloadLog) string {
	if len(entries) == 0 {
		return "No downloads.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-20s  %-6s  %-16s  %s\n", "WHEN", "FORMAT", "CLIENT", "IDENTIFIER")
	for _, e := range entries {
		identifier := e.Identifier()
		if identifier == "" {
			identifier = "-"
		}
		fmt.Fprintf(&b, "%-20s  %-6s  %-16s  %s\n",
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.DownloadType,
			identity.HashAddress(e.IPAddress),
			identifier,
		)
	}
	return b.String()
}
