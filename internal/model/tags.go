package model

import "strings"

// ParseTags splits the comma-delimited wire form of a task's tags into a
// list, trimming whitespace and dropping empty entries.
func ParseTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		tags = append(tags, p)
	}
	return tags
}

// JoinTags renders a tag list in its comma-delimited wire form.
func JoinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		cleaned = append(cleaned, t)
	}
	return strings.Join(cleaned, ",")
}
