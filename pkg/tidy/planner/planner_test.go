package planner

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/tidy/pkg/tidy/naming"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
)

const target = "/target"

func rec(path string, size int64, mod time.Time) types.FileRecord {
	return types.FileRecord{Path: path, Size: size, ModTime: mod}
}

var jan5 = time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

func destinations(plan []types.PlannedAction) []string {
	out := make([]string, 0, len(plan))
	for _, a := range plan {
		out = append(out, a.Destination)
	}
	return out
}

func TestPlan_ByType(t *testing.T) {
	t.Parallel()

	records := []types.FileRecord{
		rec("/src/a.jpg", 1200, jan5),
		rec("/src/a (copy).jpg", 1200, jan5),
		rec("/src/Notes.TXT", 10, jan5),
		rec("/src/Makefile", 10, jan5),
		rec("/src/photo.", 10, jan5),
	}

	plan, err := New().Plan(records, Policy{By: ByType, TargetRoot: target, Mode: types.ModeCopy})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/target/jpg/a.jpg",
		"/target/jpg/a (copy).jpg",
		"/target/txt/Notes.TXT",
		"/target/noext/Makefile",
		"/target/noext/photo.",
	}, destinations(plan))

	for i, a := range plan {
		assert.Equal(t, records[i].Path, a.Source)
		assert.Equal(t, types.ModeCopy, a.Mode)
		assert.Equal(t, types.ReasonType, a.Reason)
	}
}

func TestPlan_ByDate(t *testing.T) {
	t.Parallel()

	taken := time.Date(2019, 7, 4, 0, 0, 0, 0, time.UTC)
	withExif := rec("/src/b.jpg", 1, jan5)
	withExif.ExtractedDate = taken

	plan, err := New().Plan([]types.FileRecord{
		rec("/src/a.jpg", 1, jan5),
		withExif,
	}, Policy{By: ByDate, TargetRoot: target, Mode: types.ModeMove})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/target/2024/2024-01/a.jpg",
		"/target/2019/2019-07/b.jpg",
	}, destinations(plan))
}

func TestPlan_CollisionsFirstSeenWins(t *testing.T) {
	t.Parallel()

	records := []types.FileRecord{
		rec("/one/photo.png", 1, jan5),
		rec("/two/photo.png", 1, jan5),
		rec("/three/photo.png", 1, jan5),
		rec("/four/photo (1).png", 1, jan5),
	}

	plan, err := New().Plan(records, Policy{By: ByType, TargetRoot: target, Mode: types.ModeMove})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/target/png/photo.png",
		"/target/png/photo (1).png",
		"/target/png/photo (2).png",
		"/target/png/photo (1) (1).png",
	}, destinations(plan))
}

func TestPlan_DestinationsUnique(t *testing.T) {
	t.Parallel()

	var records []types.FileRecord
	for i := range 50 {
		dir := filepath.Join("/src", string(rune('a'+i%5)))
		name := "x.jpg"
		if i%3 == 0 {
			name = "x (1).jpg"
		}
		records = append(records, rec(filepath.Join(dir, name), 1, jan5))
	}

	for _, scheme := range []naming.Scheme{naming.Numbered, naming.Underscore} {
		plan, err := New().Plan(records, Policy{By: ByType, TargetRoot: target, Mode: types.ModeCopy, Naming: scheme})
		require.NoError(t, err)

		seen := map[string]bool{}
		for _, a := range plan {
			assert.False(t, seen[a.Destination], "duplicate destination %s", a.Destination)
			seen[a.Destination] = true
		}
		assert.Len(t, seen, len(records))
	}
}

func TestPlan_UnderscoreScheme(t *testing.T) {
	t.Parallel()

	plan, err := New().Plan([]types.FileRecord{
		rec("/a/doc.pdf", 1, jan5),
		rec("/b/doc.pdf", 1, jan5),
	}, Policy{By: ByType, TargetRoot: target, Mode: types.ModeCopy, Naming: naming.Underscore})
	require.NoError(t, err)
	assert.Equal(t, "/target/pdf/doc_1.pdf", plan[1].Destination)
}

func TestPlan_ExtensionsAndSizeBucket(t *testing.T) {
	t.Parallel()

	records := []types.FileRecord{
		rec("/src/movie.MP4", 5000, jan5),
		rec("/src/clip.mp4", 10, jan5),
		rec("/src/song.mp3", 10, jan5),
	}

	plan, err := New().Plan(records, Policy{
		By:         ByType,
		TargetRoot: target,
		Mode:       types.ModeMove,
		Extensions: []string{"mp4"},
		SizeBucket: &SizeBucket{Threshold: 1000},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/target/Large/movie.MP4", "/target/mp4/clip.mp4"}, destinations(plan))
	assert.Equal(t, types.ReasonSize, plan[0].Reason)
}

func TestPlan_MonthSelection(t *testing.T) {
	t.Parallel()

	records := []types.FileRecord{
		rec("/src/jan.jpg", 1, jan5),
		rec("/src/feb.jpg", 1, jan5.AddDate(0, 1, 0)),
		rec("/src/old.jpg", 1, jan5.AddDate(-1, 0, 0)),
	}

	plan, err := New().Plan(records, Policy{
		By: ByDate, TargetRoot: target, Mode: types.ModeMove, Year: 2024, Month: time.January,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/target/January 2024/jan.jpg"}, destinations(plan))

	plan, err = New().Plan(records, Policy{By: ByDate, TargetRoot: target, Mode: types.ModeMove, Year: 2024})
	require.NoError(t, err)
	assert.Equal(t, []string{"/target/2024/jan.jpg", "/target/2024/feb.jpg"}, destinations(plan))
}

func TestPlan_InvalidPolicy(t *testing.T) {
	t.Parallel()

	records := []types.FileRecord{rec("/src/a.jpg", 1, jan5)}
	policies := map[string]Policy{
		"no grouping key":  {TargetRoot: target, Mode: types.ModeCopy},
		"empty target":     {By: ByType, Mode: types.ModeCopy},
		"relative target":  {By: ByType, TargetRoot: "sorted", Mode: types.ModeCopy},
		"unset mode":       {By: ByType, TargetRoot: target},
		"month without by": {By: ByType, TargetRoot: target, Mode: types.ModeCopy, Month: time.March},
		"bad bucket":       {By: ByType, TargetRoot: target, Mode: types.ModeCopy, SizeBucket: &SizeBucket{}},
	}

	for name, p := range policies {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := New().Plan(records, p)
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestPlan_EmptyInput(t *testing.T) {
	t.Parallel()

	plan, err := New().Plan(nil, Policy{By: ByDate, TargetRoot: target, Mode: types.ModeIndex})
	require.NoError(t, err)
	assert.Empty(t, plan)
}

func TestPlanDuplicates(t *testing.T) {
	t.Parallel()

	groups := []types.DuplicateGroup{
		{
			Keeper:    rec("/p/a.jpg", 5, jan5),
			Redundant: []types.FileRecord{rec("/p/a (copy).jpg", 5, jan5), rec("/q/a.jpg", 5, jan5)},
		},
		{
			Keeper:    rec("/p/b.txt", 1, jan5),
			Redundant: []types.FileRecord{rec("/r/a.jpg", 1, jan5)},
		},
	}

	plan, err := New().PlanDuplicates(groups, Policy{TargetRoot: target, Mode: types.ModeMove})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/target/duplicates/a (copy).jpg",
		"/target/duplicates/a.jpg",
		"/target/duplicates/a (1).jpg",
	}, destinations(plan))
	for _, a := range plan {
		assert.Equal(t, types.ReasonDuplicate, a.Reason)
	}
}

func TestParseGroupBy(t *testing.T) {
	t.Parallel()

	g, err := ParseGroupBy("Date")
	require.NoError(t, err)
	assert.Equal(t, ByDate, g)

	_, err = ParseGroupBy("colour")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}
