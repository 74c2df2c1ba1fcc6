package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/tidy/pkg/tidy/types"
	"github.com/jamesainslie/tidy/pkg/tidy/undo"
)

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	switch r.Kind {
	case KindUndo:
		w.WriteString(f.formatUndo(r))
	case KindDedupe:
		w.WriteString(f.formatDedupe(r))
	case KindHistory:
		w.WriteString(f.formatHistory(r))
	default:
		w.WriteString(f.formatActions(r))
	}

	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range r.Warnings {
			w.WriteString(WarningStyle.Render("  " + warning))
			w.WriteString("\n")
		}
	}
	return nil
}

func label(name, value string) string {
	return fmt.Sprintf("%s %s", LabelStyle.Render(name+":"), ValueStyle.Render(value))
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	title := string(r.Kind)
	if r.DryRun {
		title += " (dry run)"
	}
	lines := []string{TitleStyle.Render(title)}

	var info []string
	if r.Target != "" {
		info = append(info, label("Target", r.Target))
	}
	if r.LogPath != "" {
		info = append(info, label("Log", r.LogPath))
	}
	if r.Duration > 0 {
		info = append(info, label("Took", formatDuration(r.Duration.Seconds())))
	}
	if len(info) > 0 {
		lines = append(lines, strings.Join(info, "  "))
	}
	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Interrupted; completed entries are logged"))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatActions(r *Result) string {
	if len(r.Actions) == 0 {
		return MutedStyle.Render("  Nothing to do\n")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("STATUS", 8)),
		TableHeaderStyle.Render(padLeft("SIZE", 9)),
		TableHeaderStyle.Render("SRC → DST"))

	for _, a := range r.Actions {
		status := StatusStyle(string(a.Status)).Render(padRight(string(a.Status), 8))
		size := SizeStyle.Render(padLeft(types.FormatSize(a.Size), 9))
		fmt.Fprintf(&sb, "  %s  %s  %s %s %s\n", status, size,
			PathStyle.Render(a.Source), MutedStyle.Render("→"), PathStyle.Render(a.Destination))
		if a.Error != "" {
			sb.WriteString(MutedStyle.Render("            " + a.Error))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatUndo(r *Result) string {
	if len(r.Undo) == 0 {
		return MutedStyle.Render("  Log holds no entries\n")
	}

	var sb strings.Builder
	for _, u := range r.Undo {
		outcome := StatusStyle(string(u.Outcome)).Render(padRight(string(u.Outcome), 13))
		restored := u.Entry.Source
		if u.RestoredTo != "" {
			restored = u.RestoredTo
		}
		fmt.Fprintf(&sb, "  %s  %s  %s %s %s\n", outcome,
			MutedStyle.Render(padRight(u.Entry.Mode.String(), 8)),
			PathStyle.Render(u.Entry.Destination), MutedStyle.Render("←"), PathStyle.Render(restored))
		if u.Error != "" {
			sb.WriteString(ErrorStyle.Render("                 " + u.Error))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatDedupe(r *Result) string {
	if r.Dedupe == nil || len(r.Dedupe.Groups) == 0 {
		return MutedStyle.Render("  No duplicates found\n")
	}

	var sb strings.Builder
	for _, g := range r.Dedupe.Groups {
		fp := g.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		fmt.Fprintf(&sb, "  %s  %s\n", MutedStyle.Render(fp), SizeStyle.Render(types.FormatSize(g.Size)))
		fmt.Fprintf(&sb, "    %s %s\n", SuccessStyle.Render("keep"), PathStyle.Render(g.Keeper))
		for _, p := range g.Redundant {
			fmt.Fprintf(&sb, "    %s  %s\n", WarningStyle.Render("dup"), PathStyle.Render(p))
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatHistory(r *Result) string {
	if len(r.History) == 0 {
		return MutedStyle.Render("  No undo logs\n")
	}

	var sb strings.Builder
	for _, h := range r.History {
		fmt.Fprintf(&sb, "  %s  %s  %s\n",
			ValueStyle.Render(h.Started.Local().Format("2006-01-02 15:04:05")),
			SuccessStyle.Render(fmt.Sprintf("%d ok", h.Summary.OK)),
			PathStyle.Render(h.Path))
		if h.Summary.Failed > 0 {
			sb.WriteString(ErrorStyle.Render(fmt.Sprintf("      %d failed", h.Summary.Failed)))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	var parts []string

	switch r.Kind {
	case KindUndo:
		s := undo.Summarize(r.Undo)
		parts = append(parts,
			label("Reversed", fmt.Sprintf("%d", s.OK+s.Preview)),
			label("Not applicable", fmt.Sprintf("%d", s.NotApplicable)),
			label("Failed", fmt.Sprintf("%d", s.Failed)))
	case KindDedupe:
		if r.Dedupe != nil {
			parts = append(parts,
				label("Groups", fmt.Sprintf("%d", len(r.Dedupe.Groups))),
				label("Reclaimable", types.FormatSize(r.Dedupe.Reclaimable)))
		}
	case KindHistory:
		parts = append(parts, label("Logs", fmt.Sprintf("%d", len(r.History))))
	default:
		if r.Preview != nil {
			p := r.Preview
			parts = append(parts,
				label("OK", fmt.Sprintf("%d", p.OK)),
				label("Skipped", fmt.Sprintf("%d", p.Skipped)),
				label("Failed", fmt.Sprintf("%d", p.Failed)),
				label("Bytes", types.FormatSize(p.TotalBytes)))
		}
	}

	if len(parts) == 0 {
		return ""
	}
	parts = append(parts, MutedStyle.Render("Use -o plain for unformatted output"))
	return FooterBox.Render(strings.Join(parts, "  ")) + "\n"
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats seconds in a human-friendly way.
func formatDuration(sec float64) string {
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
