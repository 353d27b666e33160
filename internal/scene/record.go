// Package scene turns raw catalog entries into validated records that the
// comparator chain can reason about.
package scene

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dupetag/internal/catalog"
	"dupetag/internal/logging"
)

const (
	createdAtLayout = "2006-01-02T15:04:05Z07:00"
	dateLayout      = "2006-01-02"
)

var (
	fractionalSeconds = regexp.MustCompile(`\.\d+`)
	legacyTitlePrefix = regexp.MustCompile(`^\[Dupe: \d+[KR]\]\s+`)
)

// Record is the validated view of one catalog scene backed by exactly one file.
type Record struct {
	ID         int64
	CreatedAt  time.Time
	Date       *time.Time
	Path       string
	Width      int
	Height     int
	Size       int64
	FrameRate  int
	BitRate    int64
	Duration   float64
	Title      string
	TagIDs     []string
	GalleryIDs []string
	Codec      string

	codecRank   int
	codecRanked bool
}

// CodecRank reports the configured priority of the record's codec. Lower is
// better; ok is false when the codec is not in the table.
func (r *Record) CodecRank() (rank int, ok bool) {
	return r.codecRank, r.codecRanked
}

// HasTag reports whether the record carries the tag id.
func (r *Record) HasTag(id string) bool {
	if id == "" {
		return false
	}
	for _, tag := range r.TagIDs {
		if tag == id {
			return true
		}
	}
	return false
}

// IDString returns the catalog form of the identifier.
func (r *Record) IDString() string {
	return strconv.FormatInt(r.ID, 10)
}

func (r *Record) String() string {
	return fmt.Sprintf("id:%d, height:%d, size:%d, file_created_at:%s, title:%s",
		r.ID, r.Height, r.Size, r.CreatedAt.Format(time.RFC3339), r.Title)
}

// Builder constructs records using a fixed codec ranking.
type Builder struct {
	codecRanks map[string]int
	upper      cases.Caser
	logger     *slog.Logger
}

// NewBuilder returns a Builder. Codec names in ranks are matched case-insensitively.
func NewBuilder(ranks map[string]int, logger *slog.Logger) *Builder {
	upper := cases.Upper(language.Und)
	normalized := make(map[string]int, len(ranks))
	for name, rank := range ranks {
		normalized[upper.String(strings.TrimSpace(name))] = rank
	}
	return &Builder{
		codecRanks: normalized,
		upper:      upper,
		logger:     logging.NewComponentLogger(logger, "scene"),
	}
}

// Build validates raw and returns its Record. Any problem is reported as a
// *MalformedRecordError.
func (b *Builder) Build(raw catalog.RawScene) (*Record, error) {
	if len(raw.Files) != 1 {
		return nil, malformed(raw.ID, fmt.Sprintf("scene has %d file(s), must have one file for comparing", len(raw.Files)), nil)
	}
	file := raw.Files[0]

	id, err := strconv.ParseInt(strings.TrimSpace(raw.ID), 10, 64)
	if err != nil {
		return nil, malformed(raw.ID, "invalid scene id", err)
	}

	createdAt, err := ParseTimestamp(file.CreatedAt)
	if err != nil {
		return nil, malformed(raw.ID, "invalid file created_at", err)
	}

	record := &Record{
		ID:        id,
		CreatedAt: createdAt,
		Path:      file.Path,
		Title:     StripLegacyPrefix(raw.Title),
	}

	if date := strings.TrimSpace(raw.Date); date != "" {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, malformed(raw.ID, "invalid scene date", err)
		}
		record.Date = &parsed
	}

	ints := []struct {
		field string
		value catalog.Number
		dst   func(int64)
	}{
		{"width", file.Width, func(v int64) { record.Width = int(v) }},
		{"height", file.Height, func(v int64) { record.Height = int(v) }},
		{"size", file.Size, func(v int64) { record.Size = v }},
		{"frame_rate", file.FrameRate, func(v int64) { record.FrameRate = int(v) }},
		{"bit_rate", file.BitRate, func(v int64) { record.BitRate = v }},
	}
	for _, f := range ints {
		v, err := f.value.Int64()
		if err != nil {
			return nil, malformed(raw.ID, "invalid file "+f.field, err)
		}
		f.dst(v)
	}
	if record.Duration, err = file.Duration.Float64(); err != nil {
		return nil, malformed(raw.ID, "invalid file duration", err)
	}

	for _, tag := range raw.Tags {
		record.TagIDs = append(record.TagIDs, tag.ID)
	}
	for _, gallery := range raw.Galleries {
		record.GalleryIDs = append(record.GalleryIDs, gallery.ID)
	}

	record.Codec = b.upper.String(strings.TrimSpace(file.VideoCodec))
	if rank, ok := b.codecRanks[record.Codec]; ok {
		record.codecRank = rank
		record.codecRanked = true
	} else {
		logging.WarnWithContext(b.logger, "codec missing from priority table", "codec_unranked",
			logging.String("codec", record.Codec),
			logging.Int64(logging.FieldSceneID, record.ID),
			logging.String(logging.FieldImpact, "scene loses every codec comparison"),
			logging.String(logging.FieldErrorHint, "add the codec to duplicates.codec_priority"),
		)
	}

	return record, nil
}

// ParseTimestamp parses an ISO-8601 timestamp with offset after dropping any
// fractional seconds.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	return time.Parse(createdAtLayout, fractionalSeconds.ReplaceAllString(value, ""))
}

// StripLegacyPrefix removes one leading "[Dupe: <n><K|R>]" annotation.
func StripLegacyPrefix(title string) string {
	return legacyTitlePrefix.ReplaceAllString(title, "")
}
