// Package tui is the interactive schema browser started by `pdqctl browse`.
//
// The model loads the schema list through the fetcher into a store, lets the
// user pick a (schema, query) pair, compute its plan and download it. The
// download buttons follow the selection: moving the cursor unmounts the old
// buttons, so a download still in flight for the previous row is dropped.
package tui

import (
	"context"
	"errors"
	"fmt"

	"pdqctl/internal/download"
	"pdqctl/internal/fetcher"
	"pdqctl/internal/filestore"
	"pdqctl/internal/pdq"
	"pdqctl/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// Planner is the part of the planner API the browser needs beyond the
// schema list. *pdq.Client implements it.
type Planner interface {
	Plan(ctx context.Context, schemaID, queryID int, sql string) (*pdq.Plan, error)
	download.PlanDownloader
	download.RunDownloader
}

type row struct {
	schema pdq.Schema
	query  pdq.Query
}

type fetchDoneMsg struct{ err error }

type planMsg struct {
	ref  pdq.PlanRef
	plan *pdq.Plan
	err  error
}

type savedMsg struct {
	saved download.Saved
	err   error
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	fetcher *fetcher.Fetcher
	store   *store.Store
	api     Planner
	saver   filestore.Saver
	log     zerolog.Logger

	rows      []row
	cursor    int
	plan      *pdq.Plan
	planning  bool
	button    *download.Button
	runButton *download.RunButton
	status    string
	width     int
	quitting  bool
}

// New builds the browser model. Close (or quitting) cancels everything
// started from it.
func New(ctx context.Context, f *fetcher.Fetcher, st *store.Store, api Planner, saver filestore.Saver, log zerolog.Logger) *Model {
	if ctx == nil {
		ctx = context.Background()
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:     cctx,
		cancel:  cancel,
		fetcher: f,
		store:   st,
		api:     api,
		saver:   saver,
		log:     log,
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return m.load()
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case fetchDoneMsg:
		// The outcome, failure included, is in the store.
		m.applyStore()
	case planMsg:
		m.planning = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Could not compute plan for schema %d, query %d: %v", msg.ref.SchemaID, msg.ref.QueryID, msg.err)
			return m, nil
		}
		m.plan = msg.plan
		m.status = fmt.Sprintf("Plan ready for schema %d, query %d", msg.ref.SchemaID, msg.ref.QueryID)
		m.syncButtons()
	case savedMsg:
		switch {
		case errors.Is(msg.err, download.ErrUnmounted):
			// The row changed while downloading.
		case msg.err != nil:
			m.status = "Download failed: " + msg.err.Error()
		default:
			m.status = fmt.Sprintf("Saved %s (%d bytes)", msg.saved.Name, msg.saved.Bytes)
		}
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.Close()
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.remountButtons()
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
			m.remountButtons()
		}
	case "r":
		for _, r := range m.rows {
			m.fetcher.Forget(r.schema.ID)
		}
		m.status = ""
		return m, m.load()
	case "p":
		return m, m.computePlan()
	case "d":
		if m.button != nil {
			return m, m.click(m.button)
		}
	case "D":
		if m.runButton != nil {
			return m, m.click(m.runButton)
		}
	case "?":
		if m.button != nil {
			m.button.ToggleTooltip()
		}
	}
	return m, nil
}

// Close unmounts the buttons and cancels in-flight requests.
func (m *Model) Close() {
	m.unmountButtons()
	m.cancel()
}

// Selected returns the highlighted pair, if any.
func (m *Model) Selected() (pdq.Schema, pdq.Query, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return pdq.Schema{}, pdq.Query{}, false
	}
	r := m.rows[m.cursor]
	return r.schema, r.query, true
}

// Button returns the plan download button of the selected row.
func (m *Model) Button() *download.Button {
	return m.button
}

// Status returns the last status line.
func (m *Model) Status() string {
	return m.status
}

func (m *Model) load() tea.Cmd {
	thunk := m.fetcher.GetInitialData()
	ctx := m.ctx
	dispatch := m.store.Dispatch
	return func() tea.Msg {
		return fetchDoneMsg{err: thunk(ctx, dispatch)}
	}
}

func (m *Model) computePlan() tea.Cmd {
	s, q, ok := m.Selected()
	if !ok || m.planning {
		return nil
	}
	m.planning = true
	m.status = fmt.Sprintf("Computing plan for schema %d, query %d...", s.ID, q.ID)

	ctx, api := m.ctx, m.api
	ref := pdq.PlanRef{SchemaID: s.ID, QueryID: q.ID}
	sql := download.SimplifySQL(q.SQL)
	return func() tea.Msg {
		p, err := api.Plan(ctx, ref.SchemaID, ref.QueryID, sql)
		return planMsg{ref: ref, plan: p, err: err}
	}
}

type clicker interface {
	Disabled() bool
	Click() (download.Saved, error)
}

func (m *Model) click(b clicker) tea.Cmd {
	if b.Disabled() {
		m.status = "Download disabled: compute the plan first (p)"
		return nil
	}
	m.status = "Downloading..."
	return func() tea.Msg {
		saved, err := b.Click()
		return savedMsg{saved: saved, err: err}
	}
}

// applyStore rebuilds the row list from the store state.
func (m *Model) applyStore() {
	loaded, ok := m.store.State().(store.Loaded)
	if !ok {
		return
	}

	var prev pdq.PlanRef
	if s, q, ok := m.Selected(); ok {
		prev = pdq.PlanRef{SchemaID: s.ID, QueryID: q.ID}
	}

	m.rows = m.rows[:0]
	for _, s := range loaded.Schemas {
		for _, q := range s.Queries {
			m.rows = append(m.rows, row{schema: s, query: q})
		}
	}

	m.cursor = 0
	for i, r := range m.rows {
		if r.schema.ID == prev.SchemaID && r.query.ID == prev.QueryID {
			m.cursor = i
			break
		}
	}
	m.remountButtons()
}

func (m *Model) remountButtons() {
	m.unmountButtons()
	s, q, ok := m.Selected()
	if !ok {
		return
	}
	props := download.Props{
		ID:       q.ID,
		SchemaID: s.ID,
		QueryID:  q.ID,
		SQL:      q.SQL,
		Plan:     m.plan.Ref(),
	}
	m.button = download.NewButton(m.ctx, props, m.api, m.saver, m.log)
	m.runButton = download.NewRunButton(m.ctx, props, m.api, m.saver, m.log)
}

func (m *Model) syncButtons() {
	if m.button == nil {
		m.remountButtons()
		return
	}
	m.button.SetPlan(m.plan.Ref())
	m.runButton.SetPlan(m.plan.Ref())
}

func (m *Model) unmountButtons() {
	if m.button != nil {
		m.button.Unmount()
		m.button = nil
	}
	if m.runButton != nil {
		m.runButton.Unmount()
		m.runButton = nil
	}
}

// Run starts the browser and blocks until the user quits.
func Run(m *Model, opts ...tea.ProgramOption) error {
	defer m.Close()
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}
