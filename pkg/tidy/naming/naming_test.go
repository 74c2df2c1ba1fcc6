package naming

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		scheme Scheme
		path   string
		n      int
		want   string
	}{
		{"zero keeps path", Numbered, "/t/jpg/a.jpg", 0, "/t/jpg/a.jpg"},
		{"numbered", Numbered, "/t/jpg/a.jpg", 1, "/t/jpg/a (1).jpg"},
		{"numbered second", Numbered, "/t/jpg/a.jpg", 2, "/t/jpg/a (2).jpg"},
		{"underscore", Underscore, "/t/png/photo.png", 3, "/t/png/photo_3.png"},
		{"no extension", Numbered, "/t/noext/README", 1, "/t/noext/README (1)"},
		{"dotfile", Numbered, "/t/x/.bashrc", 1, "/t/x/.bashrc (1)"},
		{"double extension", Numbered, "/t/gz/a.tar.gz", 1, "/t/gz/a.tar (1).gz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.scheme.Candidate(filepath.FromSlash(tt.path), tt.n)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}

func TestFree(t *testing.T) {
	t.Parallel()

	taken := map[string]bool{
		"/t/a.jpg":     true,
		"/t/a (1).jpg": true,
	}
	lookup := func(p string) (bool, error) { return taken[p], nil }

	got, n, err := Numbered.Free("/t/a.jpg", 0, lookup)
	require.NoError(t, err)
	assert.Equal(t, "/t/a (2).jpg", got)
	assert.Equal(t, 2, n)

	got, n, err = Numbered.Free("/t/b.jpg", 0, lookup)
	require.NoError(t, err)
	assert.Equal(t, "/t/b.jpg", got)
	assert.Equal(t, 0, n)
}

func TestFree_PropagatesLookupError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, _, err := Numbered.Free("/t/a.jpg", 0, func(string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}

func TestFree_Exhausted(t *testing.T) {
	t.Parallel()

	_, _, err := Underscore.Free("/t/a.jpg", 0, func(string) (bool, error) { return true, nil })
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestParseScheme(t *testing.T) {
	t.Parallel()

	s, err := ParseScheme("")
	require.NoError(t, err)
	assert.Equal(t, Numbered, s)

	s, err = ParseScheme("Underscore")
	require.NoError(t, err)
	assert.Equal(t, Underscore, s)
	assert.Equal(t, "underscore", s.String())

	_, err = ParseScheme("roman")
	assert.Error(t, err)
}

func TestRestored(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/src/a (restored).jpg", Restored("/src/a.jpg", 1))
	assert.Equal(t, "/src/a (restored 3).jpg", Restored("/src/a.jpg", 3))
}
