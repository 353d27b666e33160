package config

const (
	BackendStash  = "stash"
	BackendSQLite = "sqlite"
)

const (
	defaultStateDir       = "~/.local/share/dupetag"
	defaultBackend        = BackendStash
	defaultCatalogURL     = "http://localhost:9999/graphql"
	defaultSQLiteFile     = "catalog.db"
	defaultTimeoutSeconds = 30
	defaultIgnoreTag      = "[Dupe: Ignore]"
	defaultKeepTag        = "[Dupe: Keep]"
	defaultRemoveTag      = "[Dupe: Remove]"
	defaultUnknownTag     = "[Dupe: Unknown]"
	defaultTitlePrefix    = "PDT"
	defaultTitleTemplate  = "$group_size|$scene_id$flag"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// DefaultTitleTemplate is the built-in title template used when the configured
// template cannot be applied.
const DefaultTitleTemplate = defaultTitleTemplate

var defaultPriority = []string{"resolution", "bitrate", "codec", "size", "age"}

var defaultCodecPriority = map[string]int{
	"AV1":        0,
	"H265":       1,
	"HEVC":       1,
	"H264":       2,
	"MPEG4":      3,
	"MPEG2VIDEO": 4,
	"WMV3":       5,
	"WMV2":       6,
	"VC1":        6,
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	codecs := make(map[string]int, len(defaultCodecPriority))
	for name, rank := range defaultCodecPriority {
		codecs[name] = rank
	}
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Catalog: Catalog{
			Backend:        defaultBackend,
			URL:            defaultCatalogURL,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Duplicates: Duplicates{
			IgnoreTag:     defaultIgnoreTag,
			KeepTag:       defaultKeepTag,
			RemoveTag:     defaultRemoveTag,
			UnknownTag:    defaultUnknownTag,
			TitlePrefix:   defaultTitlePrefix,
			TitleTemplate: defaultTitleTemplate,
			Priority:      append([]string(nil), defaultPriority...),
			CodecPriority: codecs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
