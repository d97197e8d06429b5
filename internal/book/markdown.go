package book

import (
	"fmt"
	"sort"
	"strings"
)

// Markdown renders d as a standalone markdown book.
func Markdown(d *Document) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", d.Title)
	if d.Author != "" {
		fmt.Fprintf(&sb, "*by %s*\n\n", d.Author)
	}
	if d.SourceVideo.URL != "" {
		fmt.Fprintf(&sb, "Source: %s\n\n", d.SourceVideo.URL)
	}
	if d.DifficultyLevel != "" || d.TargetAudience != "" {
		fmt.Fprintf(&sb, "**Level:** %s", d.DifficultyLevel)
		if d.TargetAudience != "" {
			fmt.Fprintf(&sb, " · **Audience:** %s", d.TargetAudience)
		}
		sb.WriteString("\n\n")
	}

	if d.Summary != "" {
		sb.WriteString("## Summary\n\n")
		sb.WriteString(d.Summary)
		sb.WriteString("\n\n")
	}

	if len(d.KeyTakeaways) > 0 {
		sb.WriteString("## Key Takeaways\n\n")
		writeList(&sb, d.KeyTakeaways)
	}

	for i, ch := range d.Chapters {
		fmt.Fprintf(&sb, "## %d. %s\n\n", i+1, ch.Title)
		if ch.Content != "" {
			sb.WriteString(ch.Content)
			sb.WriteString("\n\n")
		}
		if len(ch.KeyPoints) > 0 {
			sb.WriteString("### Key Points\n\n")
			writeList(&sb, ch.KeyPoints)
		}
		if len(ch.Examples) > 0 {
			sb.WriteString("### Examples\n\n")
			writeList(&sb, ch.Examples)
		}
		if len(ch.Quotes) > 0 {
			sb.WriteString("### Quotes\n\n")
			for _, q := range ch.Quotes {
				fmt.Fprintf(&sb, "> %s\n\n", q)
			}
		}
	}

	if len(d.Glossary) > 0 {
		sb.WriteString("## Glossary\n\n")
		terms := make([]string, 0, len(d.Glossary))
		for t := range d.Glossary {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		for _, t := range terms {
			fmt.Fprintf(&sb, "- **%s**: %s\n", t, d.Glossary[t])
		}
		sb.WriteString("\n")
	}

	if len(d.FurtherReading) > 0 {
		sb.WriteString("## Further Reading\n\n")
		for _, r := range d.FurtherReading {
			fmt.Fprintf(&sb, "- *%s*", r.Title)
			if r.Author != "" {
				fmt.Fprintf(&sb, " by %s", r.Author)
			}
			if r.Description != "" {
				fmt.Fprintf(&sb, ": %s", r.Description)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func writeList(sb *strings.Builder, items []string) {
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", it)
	}
	sb.WriteString("\n")
}
