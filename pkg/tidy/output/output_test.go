package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/tidy/pkg/tidy/dedupe"
	"github.com/jamesainslie/tidy/pkg/tidy/preview"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
	"github.com/jamesainslie/tidy/pkg/tidy/undolog"
)

var at = time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)

func organizeResult() *Result {
	actions := []types.CompletedAction{
		{Source: "/in/a.jpg", Destination: "/out/jpg/a.jpg", Time: at, Status: types.StatusOK, Mode: types.ModeCopy, Size: 1200},
		{Source: "/in/b, c.txt", Destination: "/out/txt/b, c.txt", Time: at, Status: types.StatusFailed, Mode: types.ModeCopy, Error: "permission denied"},
	}
	p := preview.Summarize(actions, 5)
	return &Result{
		Kind:    KindOrganize,
		Target:  "/out",
		LogPath: "/out/fm_organize_20240105T103000Z.json",
		Actions: actions,
		Preview: &p,
	}
}

func undoResult() *Result {
	return &Result{
		Kind: KindUndo,
		Undo: []types.UndoResult{
			{Entry: types.CompletedAction{Source: "/in/a.jpg", Destination: "/out/jpg/a.jpg", Status: types.StatusOK, Mode: types.ModeMove}, Outcome: types.OutcomeOK, RestoredTo: "/in/a.jpg"},
			{Entry: types.CompletedAction{Source: "/in/b.jpg", Destination: "/out/jpg/b.jpg", Status: types.StatusFailed, Mode: types.ModeMove}, Outcome: types.OutcomeNotApplicable},
		},
	}
}

func dedupeResult() *Result {
	r := dedupe.NewReport(dedupe.SHA256, []types.DuplicateGroup{{
		Fingerprint: "deadbeefcafe0123",
		Size:        1200,
		Keeper:      types.FileRecord{Path: "/in/a.jpg"},
		Redundant:   []types.FileRecord{{Path: "/in/a (copy).jpg"}},
	}}, nil)
	return &Result{Kind: KindDedupe, Dedupe: &r}
}

func historyResult() *Result {
	return &Result{Kind: KindHistory, History: []undolog.Info{
		{Path: "/out/fm_organize_20240105T103000Z.json", Started: at, Summary: undolog.Summary{Total: 2, OK: 1, Failed: 1, Bytes: 1200}},
	}}
}

func format(t *testing.T, name string, r *Result) string {
	t.Helper()
	f, err := Get(name)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, r))
	return buf.String()
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"csv", "json", "plain", "pretty", "tsv", "yaml"}, Available())

	_, err := Get("xml")
	assert.Error(t, err)

	reg := NewRegistry()
	reg.Register("x", func() Formatter { return &PlainFormatter{} })
	assert.Equal(t, []string{"x"}, reg.Available())
}

func TestJSON_Organize(t *testing.T) {
	out := format(t, "json", organizeResult())

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "organize", doc["kind"])
	assert.Equal(t, "/out", doc["target"])

	actions := doc["actions"].([]any)
	require.Len(t, actions, 2)
	first := actions[0].(map[string]any)
	assert.Equal(t, "/in/a.jpg", first["src"])
	assert.Equal(t, "copy", first["mode"])
	assert.Equal(t, "ok", first["status"])

	pv := doc["preview"].(map[string]any)
	assert.Equal(t, float64(1200), pv["total_bytes"])
}

func TestJSON_UndoHasSummary(t *testing.T) {
	out := format(t, "json", undoResult())

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	summary := doc["undo_summary"].(map[string]any)
	assert.Equal(t, float64(1), summary["ok"])
	assert.Equal(t, float64(1), summary["not_applicable"])
}

func TestYAML_Dedupe(t *testing.T) {
	out := format(t, "yaml", dedupeResult())

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	d := doc["dedupe"].(map[string]any)
	assert.Equal(t, 1200, d["reclaimable"])
	groups := d["groups"].([]any)
	require.Len(t, groups, 1)
	assert.Equal(t, "/in/a.jpg", groups[0].(map[string]any)["keeper"])
}

func TestCSV_QuotesAndRoles(t *testing.T) {
	out := format(t, "csv", organizeResult())
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"status", "mode", "size", "src", "dst", "error"}, records[0])
	assert.Equal(t, "/in/b, c.txt", records[2][3])

	out = format(t, "csv", dedupeResult())
	records, err = csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "keeper", records[1][2])
	assert.Equal(t, "redundant", records[2][2])
}

func TestPlainAndTSV(t *testing.T) {
	out := format(t, "plain", historyResult())
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "STARTED"))
	assert.Contains(t, lines[1], "2024-01-05T10:30:00Z")

	out = format(t, "tsv", undoResult())
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "ok\tmove\t/in/a.jpg\t/out/jpg/a.jpg\t/in/a.jpg\t", lines[1])
}

func TestPretty_EveryKind(t *testing.T) {
	out := format(t, "pretty", organizeResult())
	assert.Contains(t, out, "organize")
	assert.Contains(t, out, "/out/jpg/a.jpg")
	assert.Contains(t, out, "permission denied")

	out = format(t, "pretty", undoResult())
	assert.Contains(t, out, "notApplicable")

	out = format(t, "pretty", dedupeResult())
	assert.Contains(t, out, "deadbeefcafe")
	assert.Contains(t, out, "a (copy).jpg")

	out = format(t, "pretty", historyResult())
	assert.Contains(t, out, "1 failed")

	out = format(t, "pretty", &Result{Kind: KindOrganize, DryRun: true, Warnings: []string{"careful"}})
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "Nothing to do")
	assert.Contains(t, out, "careful")
}
