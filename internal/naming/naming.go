// Package naming maps notes to deterministic remote file paths. Given the
// same note it always yields the same path, which is what makes re-syncing a
// note an update of the same remote file instead of a new one.
package naming

import (
	"strings"

	"github.com/starford/ehwaz/internal/models"
)

const (
	rootDir         = "notes"
	defaultCategory = "general"
	maxSlugLen      = 50
)

// categoryDirs maps canonical category names to their remote directory.
// Unmapped categories pass through sanitized.
var categoryDirs = map[string]string{
	"research-paper": "research-papers",
	"article":        "articles",
	"tutorial":       "tutorials",
	"video":          "videos",
	"book":           "books",
	"podcast":        "podcasts",
	"reference":      "references",
}

// FilePath returns the full remote path for a note:
// notes/{category dir}/{yyyy-MM-dd}-{id8}-{slug}.md. The id fragment is the
// sole collision guard: notes sharing title and creation date never collide.
func FilePath(n *models.Note) string {
	return Dir(n.Category) + "/" + Filename(n)
}

// Dir returns the remote directory for a category.
func Dir(category string) string {
	if category == "" {
		return rootDir + "/" + defaultCategory
	}
	if mapped, ok := categoryDirs[category]; ok {
		return rootDir + "/" + mapped
	}
	s := Slug(category)
	if s == "" {
		s = defaultCategory
	}
	return rootDir + "/" + s
}

// Filename returns {date}-{id8}-{slug}.md for a note.
func Filename(n *models.Note) string {
	date := n.DateCreated.UTC().Format("2006-01-02")
	slug := Slug(n.Title)
	if slug == "" {
		slug = "untitled"
	}
	return date + "-" + idFragment(n.ID) + "-" + slug + ".md"
}

// Slug lowercases, replaces spaces with dashes, strips everything outside
// [a-z0-9-], and truncates to 50 characters.
func Slug(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	out = strings.Trim(out, "-")
	if len(out) > maxSlugLen {
		out = strings.Trim(out[:maxSlugLen], "-")
	}
	return out
}

// idFragment returns the first 8 hex characters of an id.
func idFragment(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(id) {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "00000000"
	}
	return b.String()
}
