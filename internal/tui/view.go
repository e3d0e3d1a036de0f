package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fastsearch/internal/catalog"

	"github.com/charmbracelet/glamour"
)

const previewMaxBytes = 1 << 20

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("fastsearch"))
	b.WriteString("  ")
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("mode: %s (tab to cycle)", m.mode)))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.showPrev {
		b.WriteString(m.preview.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter: back to results  ↑/↓: scroll  esc: quit"))
		return b.String()
	}

	visible := m.height - 8
	if visible < 1 {
		visible = 10
	}
	for i, r := range m.results {
		if i >= visible {
			b.WriteString(dimStyle.Render(fmt.Sprintf("… %d more", len(m.results)-visible)))
			b.WriteString("\n")
			break
		}
		line := fmt.Sprintf("%-12s %8s  %s  %s", r.Filetype, humanSize(r.SizeBytes), humanTime(r.MtimeNS), shortPath(r.Path))
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(listItemStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}
	if len(m.results) == 0 && m.input.Value() != "" {
		b.WriteString(dimStyle.Render("  no matches"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(facetLine("filetype", m.facets))
	b.WriteString(facetLine("date_bucket", m.facets))
	b.WriteString("\n")
	b.WriteString(statusBarStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: preview  tab: mode  esc: quit"))
	return b.String()
}

func facetLine(dim string, facets catalog.FacetCounts) string {
	counts := facets[dim]
	if len(counts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", k, counts[k]))
	}
	return dimStyle.Render(dim+": "+strings.Join(parts, " · ")) + "\n"
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fGB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func humanTime(ns int64) string {
	return time.Unix(0, ns).Format("2006-01-02 15:04")
}

// renderPreview reads the file and renders markdown through glamour; other
// text files pass through as-is.
func renderPreview(path string, width int) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if fi.Size() > previewMaxBytes {
		return "", fmt.Errorf("file too large to preview (%s)", humanSize(fi.Size()))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	text := strings.ToValidUTF8(string(data), "�")

	if strings.ToLower(filepath.Ext(path)) == ".md" {
		if width < 20 {
			width = 80
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			if rendered, err := r.Render(text); err == nil {
				return rendered, nil
			}
		}
	}
	return text, nil
}
