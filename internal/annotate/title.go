package annotate

import (
	"fmt"
	"regexp"
)

// Titler adds and removes the decision prefix on scene titles.
type Titler struct {
	prefix   string
	template Template
	strip    *regexp.Regexp
	match    string
}

// NewTitler returns a Titler for prefix. The template must already be parsed.
func NewTitler(prefix string, tmpl Template) *Titler {
	quoted := regexp.QuoteMeta(prefix)
	return &Titler{
		prefix:   prefix,
		template: tmpl,
		strip:    regexp.MustCompile(`^\[` + quoted + `: .+?\] ?`),
		match:    `^\[` + quoted + `: .+?\]`,
	}
}

// FormatTitle returns "[<prefix>: <annotation>] <title>". A prefix already
// present on title is replaced rather than stacked.
func (t *Titler) FormatTitle(groupSize string, sceneID int64, flag, title string) string {
	return fmt.Sprintf("[%s: %s] %s", t.prefix, t.template.Render(groupSize, sceneID, flag), t.StripTitle(title))
}

// StripTitle removes one leading decision prefix.
func (t *Titler) StripTitle(title string) string {
	return t.strip.ReplaceAllString(title, "")
}

// MatchPattern is the catalog title regex selecting annotated scenes.
func (t *Titler) MatchPattern() string { return t.match }
