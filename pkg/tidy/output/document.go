package output

import (
	"strconv"
	"time"

	"github.com/jamesainslie/tidy/pkg/tidy/dedupe"
	"github.com/jamesainslie/tidy/pkg/tidy/preview"
	"github.com/jamesainslie/tidy/pkg/tidy/types"
	"github.com/jamesainslie/tidy/pkg/tidy/undo"
	"github.com/jamesainslie/tidy/pkg/tidy/undolog"
)

// document is the structured form shared by the json and yaml formatters.
type document struct {
	Kind    Kind           `json:"kind" yaml:"kind"`
	DryRun  bool           `json:"dry_run" yaml:"dry_run"`
	Target  string         `json:"target,omitempty" yaml:"target,omitempty"`
	LogPath string         `json:"log,omitempty" yaml:"log,omitempty"`
	Actions []actionView   `json:"actions,omitempty" yaml:"actions,omitempty"`
	Preview *previewView   `json:"preview,omitempty" yaml:"preview,omitempty"`
	Undo    []undoView     `json:"undo,omitempty" yaml:"undo,omitempty"`
	Summary *undo.Summary  `json:"undo_summary,omitempty" yaml:"undo_summary,omitempty"`
	Dedupe  *dedupe.Report `json:"dedupe,omitempty" yaml:"dedupe,omitempty"`
	History []historyView  `json:"history,omitempty" yaml:"history,omitempty"`

	Duration    string   `json:"duration,omitempty" yaml:"duration,omitempty"`
	Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Interrupted bool     `json:"interrupted" yaml:"interrupted"`
}

type actionView struct {
	Source      string    `json:"src" yaml:"src"`
	Destination string    `json:"dst" yaml:"dst"`
	Mode        string    `json:"mode" yaml:"mode"`
	Status      string    `json:"status" yaml:"status"`
	Size        int64     `json:"size" yaml:"size"`
	Time        time.Time `json:"time" yaml:"time"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
}

type previewView struct {
	Total      int              `json:"total" yaml:"total"`
	OK         int              `json:"ok" yaml:"ok"`
	Skipped    int              `json:"skipped" yaml:"skipped"`
	Failed     int              `json:"failed" yaml:"failed"`
	Bytes      map[string]int64 `json:"bytes" yaml:"bytes"`
	TotalBytes int64            `json:"total_bytes" yaml:"total_bytes"`
	TotalHuman string           `json:"total_human" yaml:"total_human"`
	Largest    []actionView     `json:"largest" yaml:"largest"`
}

type undoView struct {
	Source      string `json:"src" yaml:"src"`
	Destination string `json:"dst" yaml:"dst"`
	Mode        string `json:"mode" yaml:"mode"`
	Outcome     string `json:"outcome" yaml:"outcome"`
	RestoredTo  string `json:"restored_to,omitempty" yaml:"restored_to,omitempty"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
}

type historyView struct {
	Path    string          `json:"path" yaml:"path"`
	Started time.Time       `json:"started" yaml:"started"`
	Summary undolog.Summary `json:"summary" yaml:"summary"`
}

func buildDocument(r *Result) document {
	doc := document{
		Kind:        r.Kind,
		DryRun:      r.DryRun,
		Target:      r.Target,
		LogPath:     r.LogPath,
		Dedupe:      r.Dedupe,
		Duration:    formatDurationString(r.Duration),
		Warnings:    r.Warnings,
		Interrupted: r.Interrupted,
	}

	for _, a := range r.Actions {
		doc.Actions = append(doc.Actions, newActionView(a))
	}
	if r.Preview != nil {
		doc.Preview = newPreviewView(*r.Preview)
	}
	if r.Kind == KindUndo {
		for _, u := range r.Undo {
			doc.Undo = append(doc.Undo, undoView{
				Source:      u.Entry.Source,
				Destination: u.Entry.Destination,
				Mode:        u.Entry.Mode.String(),
				Outcome:     string(u.Outcome),
				RestoredTo:  u.RestoredTo,
				Error:       u.Error,
			})
		}
		s := undo.Summarize(r.Undo)
		doc.Summary = &s
	}
	for _, h := range r.History {
		doc.History = append(doc.History, historyView{Path: h.Path, Started: h.Started, Summary: h.Summary})
	}
	return doc
}

func newActionView(a types.CompletedAction) actionView {
	return actionView{
		Source:      a.Source,
		Destination: a.Destination,
		Mode:        a.Mode.String(),
		Status:      string(a.Status),
		Size:        a.Size,
		Time:        a.Time,
		Error:       a.Error,
	}
}

func newPreviewView(s preview.Summary) *previewView {
	v := &previewView{
		Total:      s.Total,
		OK:         s.OK,
		Skipped:    s.Skipped,
		Failed:     s.Failed,
		Bytes:      s.Bytes,
		TotalBytes: s.TotalBytes,
		TotalHuman: types.FormatSize(s.TotalBytes),
		Largest:    make([]actionView, 0, len(s.Largest)),
	}
	for _, a := range s.Largest {
		v.Largest = append(v.Largest, newActionView(a))
	}
	return v
}

// formatDurationString formats a duration for structured output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// table returns the tabular form of r used by plain, tsv and csv.
func table(r *Result) ([]string, [][]string) {
	switch r.Kind {
	case KindUndo:
		header := []string{"OUTCOME", "MODE", "SRC", "DST", "RESTORED_TO", "ERROR"}
		rows := make([][]string, 0, len(r.Undo))
		for _, u := range r.Undo {
			rows = append(rows, []string{string(u.Outcome), u.Entry.Mode.String(), u.Entry.Source, u.Entry.Destination, u.RestoredTo, u.Error})
		}
		return header, rows

	case KindDedupe:
		header := []string{"FINGERPRINT", "SIZE", "ROLE", "PATH"}
		var rows [][]string
		if r.Dedupe != nil {
			for _, g := range r.Dedupe.Groups {
				size := strconv.FormatInt(g.Size, 10)
				rows = append(rows, []string{g.Fingerprint, size, "keeper", g.Keeper})
				for _, p := range g.Redundant {
					rows = append(rows, []string{g.Fingerprint, size, "redundant", p})
				}
			}
		}
		return header, rows

	case KindHistory:
		header := []string{"STARTED", "ENTRIES", "OK", "SKIPPED", "FAILED", "BYTES", "LOG"}
		rows := make([][]string, 0, len(r.History))
		for _, h := range r.History {
			rows = append(rows, []string{
				h.Started.UTC().Format(time.RFC3339),
				strconv.Itoa(h.Summary.Total),
				strconv.Itoa(h.Summary.OK),
				strconv.Itoa(h.Summary.Skipped),
				strconv.Itoa(h.Summary.Failed),
				strconv.FormatInt(h.Summary.Bytes, 10),
				h.Path,
			})
		}
		return header, rows

	default:
		header := []string{"STATUS", "MODE", "SIZE", "SRC", "DST", "ERROR"}
		rows := make([][]string, 0, len(r.Actions))
		for _, a := range r.Actions {
			rows = append(rows, []string{string(a.Status), a.Mode.String(), strconv.FormatInt(a.Size, 10), a.Source, a.Destination, a.Error})
		}
		return header, rows
	}
}
