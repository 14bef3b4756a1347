package service

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func feedbackEmailSubject(n Notification) string {
	subject := fmt.Sprintf("[%s] New %s", n.ProjectName, cases.Title(language.English).String(string(n.Type)))
	if n.Title != "" {
		subject += ": " + n.Title
	}
	return subject
}

func feedbackEmailText(n Notification, appName string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New %s feedback for %s.\n\n", n.Type, n.ProjectName)
	if n.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", n.Title)
	}
	fmt.Fprintf(&b, "From: %s\n", reporter(n))
	if n.PageURL != "" {
		fmt.Fprintf(&b, "Page: %s\n", n.PageURL)
	}
	if n.MediaCount > 0 {
		fmt.Fprintf(&b, "Attachments: %d\n", n.MediaCount)
	}
	fmt.Fprintf(&b, "Feedback ID: %s\n\n", n.FeedbackID)
	b.WriteString(n.Description)
	fmt.Fprintf(&b, "\n\nBest,\nThe %s Team", appName)

	return b.String()
}

// feedbackEmailMarkdown is rendered to HTML; reporter text is embedded as is
// and sanitized after rendering.
func feedbackEmailMarkdown(n Notification) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**New %s feedback for %s**\n\n", n.Type, n.ProjectName)
	if n.Title != "" {
		fmt.Fprintf(&b, "- Title: %s\n", n.Title)
	}
	fmt.Fprintf(&b, "- From: %s\n", reporter(n))
	if n.PageURL != "" {
		fmt.Fprintf(&b, "- Page: %s\n", n.PageURL)
	}
	if n.MediaCount > 0 {
		fmt.Fprintf(&b, "- Attachments: %d\n", n.MediaCount)
	}
	fmt.Fprintf(&b, "- Feedback ID: `%s`\n\n---\n\n", n.FeedbackID)
	b.WriteString(n.Description)

	return b.String()
}

func reporter(n Notification) string {
	switch {
	case n.ReporterName != "" && n.ReporterEmail != "":
		return fmt.Sprintf("%s <%s>", n.ReporterName, n.ReporterEmail)
	case n.ReporterEmail != "":
		return n.ReporterEmail
	case n.ReporterName != "":
		return n.ReporterName
	default:
		return "anonymous"
	}
}
