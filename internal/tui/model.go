package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spec-kit/ticket-board/internal/domain"
	"github.com/spec-kit/ticket-board/internal/realtime"
	"github.com/spec-kit/ticket-board/internal/repository"
	"github.com/spec-kit/ticket-board/internal/service"
	apperrors "github.com/spec-kit/ticket-board/pkg/util/errorutil"
)

// Session is the part of the session guard the board can act on.
type Session interface {
	Logout(ctx context.Context)
	Identity() domain.Identity
}

// ConnectionState reports the sync channel state for the status line.
type ConnectionState interface {
	State() realtime.State
}

// Form fields in tab order.
const (
	fieldTitle = iota
	fieldDescription
	fieldPriority
	fieldAssignee
	fieldCount
)

// Messages
type (
	storeChangedMsg struct{}
	tickMsg         time.Time
	opDoneMsg       struct {
		action string
		err    error
	}
)

// Options wires the model to the running application.
type Options struct {
	Board   *service.BoardService
	Form    *service.FormController
	Session Session
	Channel ConnectionState
	Changes <-chan struct{}
}

// Model is the board program state
type Model struct {
	ctx     context.Context
	board   *service.BoardService
	form    *service.FormController
	session Session
	channel ConnectionState
	changes <-chan struct{}
	keys    KeyMap

	// Cursor
	col int
	row int

	// Form inputs
	inputs [fieldCount]textinput.Model
	focus  int

	// Status line
	notice string
	err    error

	width  int
	height int
}

// ChangeSignal returns a channel that receives after store mutations.
// Bursts coalesce into a single pending signal.
func ChangeSignal(store *repository.TicketStore) <-chan struct{} {
	ch := make(chan struct{}, 1)
	store.Subscribe(func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return ch
}

// NewModel creates the board model
func NewModel(ctx context.Context, opts Options) Model {
	m := Model{
		ctx:     ctx,
		board:   opts.Board,
		form:    opts.Form,
		session: opts.Session,
		channel: opts.Channel,
		changes: opts.Changes,
		keys:    DefaultKeyMap(),
	}
	labels := [fieldCount]string{"Title", "Description", "Priority", "Assignee"}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = strings.ToLower(labels[i])
		ti.Prompt = ""
		ti.CharLimit = 200
		ti.Width = 48
		m.inputs[i] = ti
	}
	m.inputs[fieldPriority].CharLimit = 4
	return m
}

// Init starts the background listeners
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForChange(),
		tickCmd(),
		m.opCmd("load", m.board.Load),
	)
}

func (m Model) waitForChange() tea.Cmd {
	changes := m.changes
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// opCmd runs a board operation off the update loop.
func (m Model) opCmd(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{action: action, err: fn(ctx)}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case storeChangedMsg:
		m.clampCursor()
		return m, m.waitForChange()

	case tickMsg:
		return m, tickCmd()

	case opDoneMsg:
		m.err = msg.err
		m.notice = ""
		if msg.err == nil {
			m.notice = doneNotice(msg.action)
		}
		if msg.action == "logout" {
			return m, tea.Quit
		}
		m.clampCursor()
		return m, nil

	case tea.KeyMsg:
		if m.form.Mode() != service.FormClosed {
			return m.updateForm(msg)
		}
		return m.updateBoard(msg)
	}
	return m, nil
}

func (m Model) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
		}
		m.clampCursor()

	case key.Matches(msg, m.keys.Right):
		if m.col < len(domain.BoardStatuses())-1 {
			m.col++
		}
		m.clampCursor()

	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}

	case key.Matches(msg, m.keys.Down):
		m.row++
		m.clampCursor()

	case key.Matches(msg, m.keys.MoveLeft):
		return m, m.moveSelected(-1)

	case key.Matches(msg, m.keys.MoveRight):
		return m, m.moveSelected(1)

	case key.Matches(msg, m.keys.New):
		if err := m.form.OpenCreate(); err != nil {
			m.err = err
			return m, nil
		}
		cmd := m.loadInputs()
		return m, cmd

	case key.Matches(msg, m.keys.Edit):
		ticket, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.form.OpenEdit(ticket.ID); err != nil {
			m.err = err
			return m, nil
		}
		cmd := m.loadInputs()
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		m.notice = "refreshing..."
		return m, m.opCmd("refresh", m.board.Refresh)

	case key.Matches(msg, m.keys.Logout):
		session := m.session
		return m, m.opCmd("logout", func(ctx context.Context) error {
			session.Logout(ctx)
			return nil
		})
	}
	return m, nil
}

// moveSelected drags the selected ticket to the adjacent column.
func (m Model) moveSelected(delta int) tea.Cmd {
	ticket, ok := m.selected()
	if !ok {
		return nil
	}
	statuses := domain.BoardStatuses()
	target := m.col + delta
	if target < 0 || target >= len(statuses) {
		return nil
	}
	event := service.DragEndEvent{ActiveID: ticket.ID, OverID: string(statuses[target])}
	board := m.board
	return m.opCmd("move", func(ctx context.Context) error {
		return board.DragEnd(ctx, event)
	})
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form.ConfirmingDelete() {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			return m, m.opCmd("delete", m.form.ConfirmDelete)
		case key.Matches(msg, m.keys.Deny):
			m.form.CancelDelete()
		}
		return m, nil
	}

	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.form.Close()
		m.err = nil
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if err := m.form.RequestDelete(); err != nil {
			m.err = err
		}
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		cmd := m.focusField((m.focus + 1) % fieldCount)
		return m, cmd

	case key.Matches(msg, m.keys.PrevField):
		cmd := m.focusField((m.focus + fieldCount - 1) % fieldCount)
		return m, cmd

	case key.Matches(msg, m.keys.Submit):
		if err := m.storeInputs(); err != nil {
			m.err = err
			return m, nil
		}
		return m, m.opCmd("save", m.form.Submit)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// loadInputs copies the controller's form into the text inputs.
func (m *Model) loadInputs() tea.Cmd {
	form := m.form.Form()
	m.inputs[fieldTitle].SetValue(form.Title)
	m.inputs[fieldDescription].SetValue(form.Description)
	m.inputs[fieldPriority].SetValue(fmt.Sprint(form.Priority))
	m.inputs[fieldAssignee].SetValue(form.AssigneeID)
	m.err = nil
	return m.focusField(fieldTitle)
}

// storeInputs pushes the text inputs back into the controller.
func (m *Model) storeInputs() error {
	m.form.SetTitle(m.inputs[fieldTitle].Value())
	m.form.SetDescription(m.inputs[fieldDescription].Value())
	m.form.SetAssignee(strings.TrimSpace(m.inputs[fieldAssignee].Value()))
	return m.form.SetPriority(m.inputs[fieldPriority].Value())
}

func (m *Model) focusField(i int) tea.Cmd {
	m.focus = i
	var cmd tea.Cmd
	for j := range m.inputs {
		if j == i {
			cmd = m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
	return cmd
}

func (m Model) selected() (domain.Ticket, bool) {
	columns := m.board.Columns()
	if m.col >= len(columns) {
		return domain.Ticket{}, false
	}
	tickets := columns[m.col].Tickets
	if m.row < 0 || m.row >= len(tickets) {
		return domain.Ticket{}, false
	}
	return tickets[m.row], true
}

func (m *Model) clampCursor() {
	columns := m.board.Columns()
	if m.col >= len(columns) {
		m.col = len(columns) - 1
	}
	if m.col < 0 {
		m.col = 0
	}
	n := 0
	if m.col < len(columns) {
		n = len(columns[m.col].Tickets)
	}
	if m.row >= n {
		m.row = n - 1
	}
	if m.row < 0 {
		m.row = 0
	}
}

func doneNotice(action string) string {
	switch action {
	case "refresh":
		return "board refreshed"
	case "save":
		return "ticket saved"
	case "delete":
		return "ticket deleted"
	}
	return ""
}

// View renders the board or the open form
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.form.Mode() == service.FormClosed {
		b.WriteString(m.renderBoard())
	} else {
		b.WriteString(m.renderForm())
	}
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m Model) renderHeader() string {
	title := "Ticket board"
	if name := m.session.Identity().Name; name != "" {
		title += " · " + name
	}
	return HeaderStyle.Render(title)
}

func (m Model) renderBoard() string {
	columns := m.board.Columns()
	width := 30
	if m.width > 0 {
		width = max(20, m.width/len(columns)-4)
	}

	rendered := make([]string, 0, len(columns))
	for i, col := range columns {
		lines := []string{ColumnTitleStyle.Render(fmt.Sprintf("%s (%d)", col.Title, len(col.Tickets)))}
		for j, t := range col.Tickets {
			style := CardStyle
			prefix := "  "
			if i == m.col && j == m.row {
				style = SelectedCardStyle
				prefix = "> "
			}
			lines = append(lines, style.Render(prefix+cardLine(t)))
		}
		if len(col.Tickets) == 0 {
			lines = append(lines, MutedStyle.Render("  no tickets"))
		}
		style := ColumnStyle
		if i == m.col {
			style = ActiveColumnStyle
		}
		rendered = append(rendered, style.Width(width).Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func cardLine(t domain.Ticket) string {
	line := fmt.Sprintf("#%s %s [P%d]", t.ID, t.Title, t.Priority)
	if t.Assignee != nil {
		line += " @" + *t.Assignee
	}
	return line
}

func (m Model) renderForm() string {
	mode := m.form.Mode()
	heading := "New ticket"
	if mode == service.FormEdit {
		heading = "Edit ticket #" + m.form.Form().TicketID
	}

	labels := [fieldCount]string{"Title", "Description", "Priority", "Assignee"}
	lines := []string{ColumnTitleStyle.Render(heading), ""}
	for i, in := range m.inputs {
		lines = append(lines, LabelStyle.Render(labels[i])+in.View())
	}

	if team := m.board.Team(); len(team) > 0 {
		names := make([]string, 0, len(team))
		for _, member := range team {
			names = append(names, member.ID+"="+member.Name)
		}
		lines = append(lines, "", MutedStyle.Render("team: "+strings.Join(names, ", ")))
	}

	if m.form.ConfirmingDelete() {
		lines = append(lines, "", ConfirmStyle.Render("Delete this ticket? (y/n)"))
	}
	lines = append(lines, "", MutedStyle.Render(helpLine(m.keys.FormHelp(mode == service.FormEdit))))
	return FormStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatus() string {
	var parts []string
	if m.channel != nil {
		state := m.channel.State()
		style := StatusWarnStyle
		if state == realtime.StateConnected {
			style = StatusConnectedStyle
		}
		parts = append(parts, style.Render("● "+string(state)))
	}
	if m.err != nil {
		parts = append(parts, ErrorStyle.Render(errorText(m.err)))
	} else if m.notice != "" {
		parts = append(parts, MutedStyle.Render(m.notice))
	}
	if m.form.Mode() == service.FormClosed {
		parts = append(parts, MutedStyle.Render(helpLine(m.keys.BoardHelp())))
	}
	return strings.Join(parts, "  ")
}

func errorText(err error) string {
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		if resp, ok := de.Details["response"].(string); ok && resp != "" {
			return de.Message + ": " + resp
		}
		return de.Message
	}
	return err.Error()
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
