package export

import (
	"fmt"
	"strings"
)

// exportMarkdown renders a PRD as a Markdown document with one heading per
// section and an optional comment appendix.
func exportMarkdown(info PRDInfo, sections []SectionInfo, comments []CommentInfo) (*Result, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", info.Title)
	if info.Summary != "" {
		fmt.Fprintf(&b, "> %s\n\n", info.Summary)
	}
	fmt.Fprintf(&b, "_%s", info.TeamName)
	if info.Author != "" {
		fmt.Fprintf(&b, " | %s", info.Author)
	}
	if !info.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, " | %s", info.UpdatedAt.Format("Jan 2, 2006"))
	}
	b.WriteString("_\n")

	for _, section := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", titleCase(section.Name), strings.TrimSpace(section.Body))
	}

	if len(comments) > 0 {
		b.WriteString("\n## Comments\n")
		for _, c := range comments {
			status := "open"
			if c.Resolved {
				status = "resolved"
			}
			fmt.Fprintf(&b, "\n- **%s** on _%s_ (%s): %s\n", c.Author, c.Section, status, c.Content)
		}
	}

	return &Result{
		Data:     []byte(b.String()),
		Filename: sanitizeFilename(info.Title) + ".md",
		MimeType: "text/markdown; charset=utf-8",
	}, nil
}

// titleCase upcases the first letter of each hyphen- or space-separated word
// in a section name, so "success-metrics" renders as "Success Metrics".
func titleCase(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
