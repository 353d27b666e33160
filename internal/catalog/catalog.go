package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Distance is the perceptual hash distance used to group duplicate scenes.
type Distance int

const (
	DistanceExact  Distance = 0
	DistanceHigh   Distance = 4
	DistanceMedium Distance = 8
)

// ParseDistance maps a similarity level name to its phash distance.
func ParseDistance(value string) (Distance, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "exact", "":
		return DistanceExact, nil
	case "high":
		return DistanceHigh, nil
	case "medium":
		return DistanceMedium, nil
	default:
		return 0, fmt.Errorf("unknown similarity level %q (want exact, high or medium)", value)
	}
}

func (d Distance) String() string {
	switch d {
	case DistanceExact:
		return "exact"
	case DistanceHigh:
		return "high"
	case DistanceMedium:
		return "medium"
	default:
		return "distance-" + strconv.Itoa(int(d))
	}
}

// Service is the full set of catalog operations dupetag consumes.
type Service interface {
	FindDuplicateGroups(ctx context.Context, distance Distance) ([][]RawScene, error)
	FindScenes(ctx context.Context, filter SceneFilter) ([]RawScene, error)
	UpdateScenes(ctx context.Context, update SceneUpdate) error
	FindTag(ctx context.Context, name string) (Tag, bool, error)
	FindTags(ctx context.Context, nameRegex string) ([]Tag, error)
	FindOrCreateTag(ctx context.Context, name string) (string, error)
	DestroyTag(ctx context.Context, id string) error
	CreateScene(ctx context.Context, title string, fileIDs []string) (string, error)
	RawQuery(ctx context.Context, sql string) ([][]any, error)
}

// Ref is an object reference carrying only an identifier.
type Ref struct {
	ID string `json:"id"`
}

// Tag is a named catalog tag.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Fingerprint is a typed content hash attached to a file.
type Fingerprint struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// RawFile is one physical file as reported by the catalog.
type RawFile struct {
	ID           string        `json:"id"`
	Path         string        `json:"path"`
	Size         Number        `json:"size"`
	Width        Number        `json:"width"`
	Height       Number        `json:"height"`
	BitRate      Number        `json:"bit_rate"`
	FrameRate    Number        `json:"frame_rate"`
	Duration     Number        `json:"duration"`
	VideoCodec   string        `json:"video_codec"`
	CreatedAt    string        `json:"created_at"`
	Fingerprints []Fingerprint `json:"fingerprints,omitempty"`
}

// Fingerprint returns the value of the fingerprint with the given type.
func (f RawFile) Fingerprint(kind string) (string, bool) {
	for _, fp := range f.Fingerprints {
		if strings.EqualFold(fp.Type, kind) {
			return fp.Value, true
		}
	}
	return "", false
}

// RawScene is an unvalidated catalog scene entry.
type RawScene struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"`
	Tags      []Ref     `json:"tags"`
	Galleries []Ref     `json:"galleries"`
	Files     []RawFile `json:"files"`
}

// SceneFilter narrows FindScenes. Zero-valued fields are ignored.
type SceneFilter struct {
	TitleRegex    string
	TagIDs        []string
	ExcludeTagIDs []string
	Oshash        string
	// MinFileCount matches scenes with strictly more files than the value.
	MinFileCount int
	Path         string
}

// TagMode selects how a tag mutation applies.
type TagMode string

const (
	TagModeAdd    TagMode = "ADD"
	TagModeRemove TagMode = "REMOVE"
)

// TagMutation adds or removes a set of tags.
type TagMutation struct {
	Mode   TagMode
	TagIDs []string
}

// SceneUpdate describes a bulk scene mutation. Nil fields are left untouched.
type SceneUpdate struct {
	IDs   []string
	Title *string
	Tags  *TagMutation
}

// Number holds a numeric catalog value that may be encoded as a JSON number,
// a numeric string or null. Coercion is left to the consumer.
type Number string

// UnmarshalJSON accepts numbers, strings and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(s))
		return nil
	}
	*n = Number(data)
	return nil
}

// MarshalJSON emits the value as a JSON number when it parses as one.
func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(string(n), 64); err == nil {
		return []byte(n), nil
	}
	return json.Marshal(string(n))
}

// Int64 coerces the value to an integer, truncating fractional values.
func (n Number) Int64() (int64, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int64(f), nil
}

// Float64 coerces the value to a float.
func (n Number) Float64() (float64, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return 0, fmt.Errorf("missing value")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}

// NumberOf formats an integer as a Number.
func NumberOf(v int64) Number {
	return Number(strconv.FormatInt(v, 10))
}

// FloatNumber formats a float as a Number.
func FloatNumber(v float64) Number {
	return Number(strconv.FormatFloat(v, 'f', -1, 64))
}
