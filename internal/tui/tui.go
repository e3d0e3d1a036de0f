// Package tui is the interactive search front end: a query input with live
// results, facet counts, an indexing status line, and a markdown preview for
// the selected document.
package tui

import (
	"fmt"
	"os"
	"path/filepath"

	"fastsearch/internal/catalog"
	"fastsearch/internal/config"
	"fastsearch/internal/extract"
	"fastsearch/internal/pool"
	"fastsearch/internal/query"
	"fastsearch/internal/watch"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// programRef is an indirect pointer to the tea.Program so background
// goroutines can send messages. It must be set after tea.NewProgram returns
// but before Run.
type programRef struct {
	p *tea.Program
}

func (r *programRef) send(msg tea.Msg) {
	if r.p != nil {
		r.p.Send(msg)
	}
}

type resultsMsg query.Response

type statusMsg string

// Model is the top-level Bubble Tea model.
type Model struct {
	input    textinput.Model
	preview  viewport.Model
	mode     catalog.Mode
	results  []catalog.Result
	facets   catalog.FacetCounts
	selected int
	status   string
	showPrev bool
	width    int
	height   int

	seq        int64
	dispatcher *query.Dispatcher
}

func newModel(d *query.Dispatcher) Model {
	ti := textinput.New()
	ti.Placeholder = "Type to search…"
	ti.Focus()
	return Model{
		input:      ti,
		mode:       catalog.ModeAll,
		status:     "Starting…",
		dispatcher: d,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) submit() {
	m.seq++
	m.dispatcher.Submit(query.Request{
		Seq:   m.seq,
		Query: m.input.Value(),
		Mode:  m.mode,
		Limit: 200,
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.preview.Width = msg.Width - 4
		m.preview.Height = msg.Height - 6
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case resultsMsg:
		if msg.Seq != m.seq {
			// A newer query is already in flight.
			return m, nil
		}
		m.results = msg.Rows
		m.facets = msg.Facets
		if m.selected >= len(m.results) {
			m.selected = 0
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab":
			switch m.mode {
			case catalog.ModeAll:
				m.mode = catalog.ModeFilename
			case catalog.ModeFilename:
				m.mode = catalog.ModeContent
			default:
				m.mode = catalog.ModeAll
			}
			m.submit()
			return m, nil
		case "up":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down":
			if m.selected < len(m.results)-1 {
				m.selected++
			}
			return m, nil
		case "enter":
			m.togglePreview()
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.showPrev = false
		m.submit()
	}
	return m, cmd
}

func (m *Model) togglePreview() {
	if m.showPrev {
		m.showPrev = false
		return
	}
	if m.selected >= len(m.results) {
		return
	}
	rendered, err := renderPreview(m.results[m.selected].Path, m.preview.Width)
	if err != nil {
		m.status = fmt.Sprintf("Preview unavailable: %v", err)
		return
	}
	m.preview.SetContent(rendered)
	m.preview.GotoTop()
	m.showPrev = true
}

// Run wires up the whole service behind the UI: catalog, extraction pool,
// watch service, and search dispatcher, then drives the Bubble Tea program
// until the user quits.
func Run(cfg config.Config) error {
	cat, err := catalog.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cat.Close()

	p := pool.New(cat, extract.NewRouter(), pool.Config{
		Workers:         cfg.Workers,
		QueueCapacity:   cfg.QueueCapacity,
		MaxExtractBytes: cfg.MaxExtractBytes,
	}, nil)
	p.Start()
	defer p.Stop()

	ref := &programRef{}

	svc := watch.New(cat, p, watch.Config{
		Roots:                     cfg.Roots,
		ExcludeDirs:               cfg.ExcludeSet(),
		SkipInitialIfIndexPresent: cfg.SkipInitialScanIfIndexed,
	}, nil)
	svc.OnStatus(func(s string) { ref.send(statusMsg(s)) })
	defer svc.Stop()

	d := query.New(cat, query.DefaultDebounce, func(resp query.Response) {
		ref.send(resultsMsg(resp))
	}, nil)
	defer d.Stop()

	prog := tea.NewProgram(newModel(d), tea.WithAltScreen())
	ref.p = prog
	svc.Start()

	_, err = prog.Run()
	return err
}

// shortPath abbreviates a home-relative path for display.
func shortPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if rel, err := filepath.Rel(home, path); err == nil && filepath.IsLocal(rel) {
		return "~/" + rel
	}
	return path
}
