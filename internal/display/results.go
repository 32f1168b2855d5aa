package display

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"people-search/internal/search"
)

const (
	maxDetailsLength = 100

	facebookMarker = "Facebook: "
)

// stdout results (truncated details)
func FormatResults(p *search.ResponsePayload) string {
	return formatResultsInternal(p, maxDetailsLength)
}

// full results (no truncation), used for logs
func FormatResultsFull(p *search.ResponsePayload) string {
	return formatResultsInternal(p, -1)
}

func formatResultsInternal(p *search.ResponsePayload, limit int) string {
	if p == nil {
		return "No results."
	}
	var sb strings.Builder
	sb.WriteString("Search results:\n")
	sb.WriteString(fmt.Sprintf("Found %d out of %d people across multiple platforms\n", p.Found, p.TotalProcessed))
	sb.WriteString("--------------------------------------------------\n")

	for _, person := range p.People {
		mark := "[x]"
		if person.Status == search.StatusFound {
			mark = "[+]"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", mark, person.Name))
		if person.Address != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", person.Address))
		}
		if person.Phone != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", person.Phone))
		}
		details := PlainText(person.Details)
		if link := ProfileLink(person.Details); link != "" {
			details = strings.TrimSpace(strings.SplitN(details, "|", 2)[0])
			sb.WriteString(fmt.Sprintf("    %s\n", truncate(details, limit)))
			sb.WriteString(fmt.Sprintf("    Facebook search: %s\n", link))
		} else {
			sb.WriteString(fmt.Sprintf("    %s\n", truncate(details, limit)))
		}
		if person.Confidence > 0 {
			sb.WriteString(fmt.Sprintf("    Confidence: %d%%\n", int(math.Round(person.Confidence*100))))
		}
		if len(person.Sources) > 0 {
			sb.WriteString(fmt.Sprintf("    Sources: %s\n", strings.Join(person.Sources, ", ")))
		}
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

// PlainText strips any markup from backend-supplied details and collapses
// whitespace.
func PlainText(s string) string {
	if strings.Contains(s, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// ProfileLink finds a facebook.com link in details, either after a
// "Facebook: " marker or as an anchor.
func ProfileLink(details string) string {
	if !strings.Contains(details, "facebook.com") {
		return ""
	}
	if _, after, ok := strings.Cut(details, facebookMarker); ok {
		if fields := strings.Fields(after); len(fields) > 0 {
			return fields[0]
		}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(details))
	if err != nil {
		return ""
	}
	var link string
	doc.Find(`a[href*="facebook.com"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link, _ = s.Attr("href")
		return false
	})
	return link
}

// limit < 0 means no limit
func truncate(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	if limit < 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "..."
}
