package diff

import (
	"fmt"
	"strings"
)

// maxListed caps the per-section record list in rendered bodies.
const maxListed = 50

// RenderMarkdown renders changesets as a pull request body.
func RenderMarkdown(changesets []*ChangeSet) string {
	var b strings.Builder
	b.WriteString("## Model pricing refresh\n\n")
	b.WriteString("| Provider | Added | Removed | Price changes | Metadata changes | Unchanged |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|\n")
	for _, cs := range changesets {
		c := cs.Counts()
		fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d |\n",
			cs.Source, c.Added, c.Removed, c.PriceChanged, c.MetadataChanged, c.Unchanged)
	}

	for _, cs := range changesets {
		if !cs.HasChanges() {
			continue
		}
		fmt.Fprintf(&b, "\n### %s\n", cs.Source)

		if len(cs.Added) > 0 {
			b.WriteString("\n**Added**\n\n")
			for i, r := range cs.Added {
				if i == maxListed {
					fmt.Fprintf(&b, "- … and %d more\n", len(cs.Added)-maxListed)
					break
				}
				fmt.Fprintf(&b, "- `%s`\n", r.ID)
			}
		}

		if len(cs.Updated) > 0 {
			b.WriteString("\n**Updated**\n\n")
			for i, u := range cs.Updated {
				if i == maxListed {
					fmt.Fprintf(&b, "- … and %d more\n", len(cs.Updated)-maxListed)
					break
				}
				parts := make([]string, 0, len(u.Changes))
				for _, c := range u.Changes {
					parts = append(parts, fmt.Sprintf("%s %s → %s", c.Field, formatValue(c.OldValue), formatValue(c.NewValue)))
				}
				fmt.Fprintf(&b, "- `%s`: %s\n", u.ID, strings.Join(parts, "; "))
			}
		}

		if len(cs.Removed) > 0 {
			b.WriteString("\n**Removed**\n\n")
			for i, r := range cs.Removed {
				if i == maxListed {
					fmt.Fprintf(&b, "- … and %d more\n", len(cs.Removed)-maxListed)
					break
				}
				fmt.Fprintf(&b, "- `%s`\n", r.ID)
			}
		}
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "unknown"
	case float64:
		return fmt.Sprintf("%g", x)
	case []string:
		return "[" + strings.Join(x, ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}
