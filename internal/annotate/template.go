package annotate

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultTemplate is used when the configured template cannot be rendered.
const DefaultTemplate = "$group_size|$scene_id$flag"

const gib = 1 << 30

// Title flags.
const (
	FlagKeep    = "K"
	FlagRemove  = "R"
	FlagUnknown = "U"
)

var placeholderPattern = regexp.MustCompile(`(?i)\$(?:(\$)|([_a-z][_a-z0-9]*)|\{([_a-z][_a-z0-9]*)\}|())`)

var templateFields = map[string]struct{}{
	"group_size": {},
	"scene_id":   {},
	"flag":       {},
}

// Template renders the annotation placed inside the title prefix. It supports
// $name and ${name} placeholders and $$ for a literal dollar sign.
type Template struct {
	source string
}

// ParseTemplate validates source against the known placeholders.
func ParseTemplate(source string) (Template, error) {
	if strings.TrimSpace(source) == "" {
		return Template{}, errors.New("template is empty")
	}
	t := Template{source: source}
	rendered, err := t.render(map[string]string{"group_size": "0G", "scene_id": "0", "flag": FlagKeep})
	if err != nil {
		return Template{}, err
	}
	if strings.ContainsAny(rendered, "[]") {
		return Template{}, errors.New("template must not contain square brackets")
	}
	// The prefix pattern does not span lines.
	if strings.ContainsAny(rendered, "\r\n") {
		return Template{}, errors.New("template must not contain line breaks")
	}
	return t, nil
}

// String returns the template source.
func (t Template) String() string { return t.source }

// Render substitutes the three annotation fields.
func (t Template) Render(groupSize string, sceneID int64, flag string) string {
	out, err := t.render(map[string]string{
		"group_size": groupSize,
		"scene_id":   fmt.Sprintf("%d", sceneID),
		"flag":       flag,
	})
	if err != nil {
		// Parsed templates always render.
		return fmt.Sprintf("%s|%d%s", groupSize, sceneID, flag)
	}
	return out
}

func (t Template) render(values map[string]string) (string, error) {
	var firstErr error
	out := placeholderPattern.ReplaceAllStringFunc(t.source, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		switch {
		case sub[1] != "":
			return "$"
		case sub[2] != "" || sub[3] != "":
			name := strings.ToLower(sub[2] + sub[3])
			if _, ok := templateFields[name]; !ok {
				if firstErr == nil {
					firstErr = fmt.Errorf("unknown placeholder %q", match)
				}
				return match
			}
			return values[name]
		default:
			if firstErr == nil {
				firstErr = errors.New("invalid placeholder: dangling $")
			}
			return match
		}
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// FormatSize renders a byte count in GiB rounded to at most two decimals,
// e.g. 4.2G.
func FormatSize(bytes int64) string {
	return humanize.FtoaWithDigits(math.Round(float64(bytes)/gib*100)/100, 2) + "G"
}
