package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/airctrl/airctrl/internal/client"
)

// statusMsg delivers a fresh snapshot to the watch model.
type statusMsg client.DeviceStatus

// closedMsg signals that the update channel was closed.
type closedMsg struct{}

// WatchModel is the bubbletea model behind `airctrl watch`: a live
// status table that repaints on every device push.
type WatchModel struct {
	title   string
	updates <-chan client.DeviceStatus

	spinner    spinner.Model
	status     client.DeviceStatus
	lastUpdate time.Time
}

// NewWatchModel creates a watch model fed by updates. The channel is
// typically filled by a coordinator listener; closing it ends the
// program.
func NewWatchModel(title string, updates <-chan client.DeviceStatus) WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle
	return WatchModel{
		title:   title,
		updates: updates,
		spinner: sp,
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case statusMsg:
		m.status = client.DeviceStatus(msg)
		m.lastUpdate = time.Now()
		return m, waitForUpdate(m.updates)

	case closedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	if m.status == nil {
		return fmt.Sprintf("\n %s Waiting for first status update... %s\n",
			m.spinner.View(),
			HintStyle.Render("(q to quit)"),
		)
	}

	footer := HintStyle.Render(fmt.Sprintf("Updated %s • q to quit", m.lastUpdate.Format("15:04:05")))
	return RenderStatus(m.title, m.status) + "\n" + footer + "\n"
}

// waitForUpdate blocks until the next snapshot arrives.
func waitForUpdate(updates <-chan client.DeviceStatus) tea.Cmd {
	return func() tea.Msg {
		status, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return statusMsg(status)
	}
}
