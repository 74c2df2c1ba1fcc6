// Package config loads tidy's configuration from a YAML file, TIDY_*
// environment variables and command-line flags, in increasing precedence.
package config

// Default configuration values for tidy.
const (
	DefaultBy               = "type"
	DefaultMode             = "move"
	DefaultNaming           = "numbered"
	DefaultDateSource       = "mtime"
	DefaultSizeBucketFolder = "Large"
	DefaultAlgorithm        = "sha256"
	DefaultKeep             = "oldest"
	DefaultDuplicatesFolder = "duplicates"
	DefaultRetentionDays    = 90
	DefaultDebounce         = "2s"
	DefaultOutput           = "pretty"
	DefaultLogMaxSize       = "10MB"
	DefaultLogMaxAge        = 30
	DefaultLogMaxBackups    = 5
)

// DefaultExclusions are glob patterns skipped by every scan in addition to
// the scanner's built-in ones.
var DefaultExclusions = []string{
	"**/node_modules",
	"**/.Trash",
}
