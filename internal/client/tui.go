package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	taskStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	breakStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	timerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	frameStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2)
)

type renderMsg struct{ state State }

type noticeMsg struct {
	title string
	body  string
}

type actionErrMsg struct{ err error }

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Display is the terminal timer view. It only renders what the engine's
// cache holds; all state mutation flows through the engine and actions.
type Display struct {
	userName string
	actions  *Actions
	push     *PushSubscriber

	state    State
	notice   string
	noticeAt time.Time
	err      error
}

func NewDisplay(userName string, actions *Actions, push *PushSubscriber) *Display {
	return &Display{userName: userName, actions: actions, push: push}
}

func (d *Display) Init() tea.Cmd { return tickCmd() }

func (d *Display) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if d.notice != "" && time.Since(d.noticeAt) > 15*time.Second {
			d.notice = ""
		}
		return d, tickCmd()
	case renderMsg:
		d.state = msg.state
		return d, nil
	case noticeMsg:
		d.notice = msg.title + " — " + msg.body
		d.noticeAt = time.Now()
		return d, nil
	case actionErrMsg:
		d.err = msg.err
		return d, nil
	case tea.FocusMsg:
		d.push.Resume()
		return d, nil
	case tea.BlurMsg:
		d.push.Suspend()
		return d, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return d, tea.Quit
		case "b":
			return d, d.toggleBreakCmd()
		case "s":
			return d, d.stopCmd()
		}
	}
	return d, nil
}

func (d *Display) toggleBreakCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		var err error
		if d.state.OnBreak() {
			err = d.actions.EndBreak(ctx)
		} else {
			err = d.actions.StartBreak(ctx)
		}
		if err != nil {
			return actionErrMsg{err}
		}
		return nil
	}
}

func (d *Display) stopCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := d.actions.Stop(ctx, ""); err != nil {
			return actionErrMsg{err}
		}
		return nil
	}
}

func (d *Display) View() string {
	var task, timer string
	switch {
	case d.state.OnBreak():
		task = breakStyle.Render("on break")
		timer = timerStyle.Render(formatElapsed(time.Since(d.state.StartTime)))
	case d.state.IsWorking:
		label := d.state.Task
		if d.state.GoalTitle != "" {
			label = fmt.Sprintf("%s (%s)", d.state.Task, d.state.GoalTitle)
		}
		task = taskStyle.Render(label)
		timer = timerStyle.Render(formatElapsed(time.Since(d.state.StartTime)))
	default:
		task = idleStyle.Render("not started")
		timer = timerStyle.Render("00:00:00")
	}

	body := titleStyle.Render(d.userName) + "\n" + task + "\n" + timer
	if d.notice != "" {
		body += "\n" + noticeStyle.Render(d.notice)
	}
	if d.err != nil {
		body += "\n" + noticeStyle.Render("error: "+d.err.Error())
	}
	body += "\n" + helpStyle.Render("b: break  s: stop  q: quit")
	return frameStyle.Render(body)
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// ProgramRenderer forwards engine renders into a running bubbletea program.
// It is constructed empty and attached once the program exists, since the
// engine has to be built before the display that renders it.
type ProgramRenderer struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *ProgramRenderer) Attach(p *tea.Program) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

func (r *ProgramRenderer) Render(s State) {
	if r == nil {
		return
	}
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(renderMsg{state: s})
	}
}

// ProgramNotifier surfaces notifications inside the terminal display.
type ProgramNotifier struct {
	mu sync.Mutex
	p  *tea.Program
}

func (n *ProgramNotifier) Attach(p *tea.Program) {
	n.mu.Lock()
	n.p = p
	n.mu.Unlock()
}

func (n *ProgramNotifier) Notify(_ context.Context, title, body string) error {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	p := n.p
	n.mu.Unlock()
	if p != nil {
		p.Send(noticeMsg{title: title, body: body})
	}
	return nil
}
