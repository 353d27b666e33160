package testsupport

import (
	"fmt"
	"strconv"

	"dupetag/internal/catalog"
)

// MiB is one mebibyte, handy for readable sizes in fixtures.
const MiB int64 = 1 << 20

// SceneOption customizes a raw scene fixture.
type SceneOption func(*catalog.RawScene)

// RawScene returns a well-formed single-file scene: 1080p H264 at 8 Mbps,
// 100 MiB, 30 fps, ten minutes long.
func RawScene(id int, opts ...SceneOption) catalog.RawScene {
	idStr := strconv.Itoa(id)
	raw := catalog.RawScene{
		ID:    idStr,
		Title: "Scene " + idStr,
		Files: []catalog.RawFile{{
			ID:         "f" + idStr,
			Path:       fmt.Sprintf("/media/library/scene-%d.mp4", id),
			Size:       catalog.NumberOf(100 * MiB),
			Width:      catalog.NumberOf(1920),
			Height:     catalog.NumberOf(1080),
			BitRate:    catalog.NumberOf(8_000_000),
			FrameRate:  catalog.FloatNumber(30),
			Duration:   catalog.FloatNumber(600),
			VideoCodec: "h264",
			CreatedAt:  "2023-01-01T10:00:00.123456+00:00",
		}},
	}
	for _, opt := range opts {
		opt(&raw)
	}
	return raw
}

func withFile(fn func(*catalog.RawFile)) SceneOption {
	return func(s *catalog.RawScene) {
		if len(s.Files) > 0 {
			fn(&s.Files[0])
		}
	}
}

func WithTitle(title string) SceneOption {
	return func(s *catalog.RawScene) { s.Title = title }
}

func WithDate(date string) SceneOption {
	return func(s *catalog.RawScene) { s.Date = date }
}

func WithTags(ids ...string) SceneOption {
	return func(s *catalog.RawScene) {
		for _, id := range ids {
			s.Tags = append(s.Tags, catalog.Ref{ID: id})
		}
	}
}

func WithGalleries(ids ...string) SceneOption {
	return func(s *catalog.RawScene) {
		for _, id := range ids {
			s.Galleries = append(s.Galleries, catalog.Ref{ID: id})
		}
	}
}

func WithSize(bytes int64) SceneOption {
	return withFile(func(f *catalog.RawFile) { f.Size = catalog.NumberOf(bytes) })
}

func WithResolution(width, height int64) SceneOption {
	return withFile(func(f *catalog.RawFile) {
		f.Width = catalog.NumberOf(width)
		f.Height = catalog.NumberOf(height)
	})
}

func WithBitRate(bps int64) SceneOption {
	return withFile(func(f *catalog.RawFile) { f.BitRate = catalog.NumberOf(bps) })
}

func WithFrameRate(fps float64) SceneOption {
	return withFile(func(f *catalog.RawFile) { f.FrameRate = catalog.FloatNumber(fps) })
}

func WithDuration(seconds float64) SceneOption {
	return withFile(func(f *catalog.RawFile) { f.Duration = catalog.FloatNumber(seconds) })
}

func WithCodec(codec string) SceneOption {
	return withFile(func(f *catalog.RawFile) { f.VideoCodec = codec })
}

func WithCreatedAt(ts string) SceneOption {
	return withFile(func(f *catalog.RawFile) { f.CreatedAt = ts })
}

func WithPath(path string) SceneOption {
	return withFile(func(f *catalog.RawFile) { f.Path = path })
}

func WithFingerprint(kind, value string) SceneOption {
	return withFile(func(f *catalog.RawFile) {
		f.Fingerprints = append(f.Fingerprints, catalog.Fingerprint{Type: kind, Value: value})
	})
}

// WithExtraFile appends another backing file, which makes the scene
// unusable for comparison.
func WithExtraFile(file catalog.RawFile) SceneOption {
	return func(s *catalog.RawScene) { s.Files = append(s.Files, file) }
}

// RawFile returns a minimal file fixture carrying the given fingerprints.
func RawFile(id string, fingerprints ...catalog.Fingerprint) catalog.RawFile {
	return catalog.RawFile{
		ID:           id,
		Path:         "/media/library/" + id + ".mp4",
		Size:         catalog.NumberOf(100 * MiB),
		Width:        catalog.NumberOf(1920),
		Height:       catalog.NumberOf(1080),
		BitRate:      catalog.NumberOf(8_000_000),
		FrameRate:    catalog.FloatNumber(30),
		Duration:     catalog.FloatNumber(600),
		VideoCodec:   "h264",
		CreatedAt:    "2023-01-01T10:00:00+00:00",
		Fingerprints: fingerprints,
	}
}
