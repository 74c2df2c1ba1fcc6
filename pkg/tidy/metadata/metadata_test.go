package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want time.Time
		ok   bool
	}{
		{"DJI_20250619224111_0001_D.MP4", time.Date(2025, 6, 19, 0, 0, 0, 0, time.UTC), true},
		{"IMG_20240105_101500.jpg", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"2023-11-30 party.png", time.Date(2023, 11, 30, 0, 0, 0, 0, time.UTC), true},
		{"scan_20220102.pdf", time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"invoice-99999999.pdf", time.Time{}, false},
		{"holiday.jpg", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FromFilename(filepath.Join("/photos", tt.name))
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}
}

func TestDate_Sources(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "IMG_20240105_101500.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not really a jpeg"), 0o644))

	assert.True(t, Date(path, SourceModTime).IsZero())

	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	assert.True(t, want.Equal(Date(path, SourceFilename)))

	// No EXIF block: falls back to the file name.
	assert.True(t, want.Equal(Date(path, SourceExif)))
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	s, err := ParseSource("EXIF")
	require.NoError(t, err)
	assert.Equal(t, SourceExif, s)
	assert.Equal(t, "exif", s.String())

	s, err = ParseSource("")
	require.NoError(t, err)
	assert.Equal(t, SourceModTime, s)

	_, err = ParseSource("ctime")
	assert.Error(t, err)
}
