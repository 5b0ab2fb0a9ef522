// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/ipmctl/pkg/controller"
	"github.com/Thermoquad/ipmctl/pkg/ipm"
)

var interactiveHex bool

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Menu for sending single commands to the iPM",
	Long: `Send commands to the iPM one at a time from a terminal menu.

Pick a command from the list and press Enter, or type a command in the input
line (for example "ADR 3" or "MEASURE?"). Tab switches between the list and
the input line. Choosing ADR from the list asks for the address. Responses
with a binary block are decoded.

Press 'q' in the list or Ctrl+C to quit.`,
	RunE: runInteractive,
}

func init() {
	interactiveCmd.Flags().BoolVarP(&interactiveHex, "hex", "H", false, "Show raw hex instead of scaled values")
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine, conn, connInfo, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	p := tea.NewProgram(initialMenuModel(engine, connInfo, !interactiveHex), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// Focus states
const (
	focusCommandList = iota
	focusEntry
)

// commandItem is one registry entry in the menu
type commandItem struct {
	spec ipm.CommandSpec
}

func (c commandItem) Title() string { return c.spec.Name }
func (c commandItem) Description() string {
	switch {
	case c.spec.HasBinaryPayload:
		return fmt.Sprintf("%s-byte block", strings.TrimSpace(c.spec.Expected))
	case c.spec.Pattern != nil:
		return "matches " + c.spec.Pattern.String()
	case c.spec.Expected == "":
		return "no response"
	}
	return fmt.Sprintf("expects %q", c.spec.Expected)
}
func (c commandItem) FilterValue() string { return c.spec.Name }

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// menuModel is the Bubble Tea model for the interactive menu
type menuModel struct {
	engine   *controller.Engine
	connInfo string
	scale    bool

	commands list.Model
	entry    textinput.Model
	focus    int

	address int
	busy    bool
	badData int

	log           []logEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

// commandResultMsg carries the outcome of one transaction
type commandResultMsg struct {
	command string
	arg     string
	output  string
	err     error
	badData int
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMenuModel(engine *controller.Engine, connInfo string, scale bool) menuModel {
	ti := textinput.New()
	ti.Placeholder = "MEASURE?"
	ti.CharLimit = 32
	ti.Width = 24

	registry := engine.Registry()
	items := make([]list.Item, 0)
	for _, name := range registry.Names() {
		spec, _ := registry.Lookup(name)
		items = append(items, commandItem{spec: spec})
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	commands := list.New(items, delegate, 36, 16)
	commands.Title = "Commands"
	commands.SetShowStatusBar(false)
	commands.SetShowHelp(false)
	commands.SetFilteringEnabled(false)

	return menuModel{
		engine:        engine,
		connInfo:      connInfo,
		scale:         scale,
		commands:      commands,
		entry:         ti,
		focus:         focusCommandList,
		log:           make([]logEntry, 0),
		maxLogEntries: 50,
		width:         80,
		height:        24,
	}
}

// parseEntry splits a typed line into command name and argument
func parseEntry(line string) (string, string) {
	name, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	return strings.ToUpper(name), strings.TrimSpace(arg)
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listHeight := m.height - 8
		if listHeight < 6 {
			listHeight = 6
		}
		m.commands.SetSize(36, listHeight)

	case commandResultMsg:
		m.busy = false
		m.badData = msg.badData
		label := strings.TrimSpace(msg.command + " " + msg.arg)
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %v", label, msg.err), true)
			if controller.IsFatal(msg.err) {
				m.addLogEntry("Bad data limit reached; the polling loop would restart here", true)
			}
			return m, nil
		}
		if msg.command == ipm.CmdAddress {
			if a, err := strconv.Atoi(msg.arg); err == nil {
				m.address = a
			}
		}
		m.addLogEntry(strings.TrimRight(msg.output, "\r\n"), false)
	}
	return m, nil
}

func (m menuModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab":
		if m.focus == focusCommandList {
			m.focus = focusEntry
			m.entry.Focus()
		} else {
			m.focus = focusCommandList
			m.entry.Blur()
		}
		return m, nil
	case "q":
		if m.focus == focusCommandList {
			m.quitting = true
			return m, tea.Quit
		}
	case "enter":
		return m.submit()
	}

	var cmd tea.Cmd
	if m.focus == focusEntry {
		m.entry, cmd = m.entry.Update(msg)
	} else {
		m.commands, cmd = m.commands.Update(msg)
	}
	return m, cmd
}

func (m menuModel) submit() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	var name, arg string
	if m.focus == focusEntry {
		name, arg = parseEntry(m.entry.Value())
		m.entry.SetValue("")
	} else if item, ok := m.commands.SelectedItem().(commandItem); ok {
		name = item.spec.Name
	}

	if name == "" {
		return m, nil
	}
	if !m.engine.Registry().Verify(name) {
		m.addLogEntry(fmt.Sprintf("Invalid command %q, try again", name), true)
		return m, nil
	}

	if name == ipm.CmdAddress && arg == "" {
		m.focus = focusEntry
		m.entry.Focus()
		m.entry.SetValue(ipm.CmdAddress + " ")
		m.entry.CursorEnd()
		m.addLogEntry(fmt.Sprintf("Enter an address 0-%d", ipm.MaxAddress), false)
		return m, nil
	}
	if name == ipm.CmdAddress {
		if a, err := strconv.Atoi(arg); err != nil || a < 0 || a > ipm.MaxAddress {
			m.addLogEntry(fmt.Sprintf("Address must be 0-%d, got %q", ipm.MaxAddress, arg), true)
			return m, nil
		}
	}

	m.busy = true
	return m, m.sendCmd(name, arg)
}

// sendCmd runs one transaction off the UI goroutine
func (m menuModel) sendCmd(name, arg string) tea.Cmd {
	engine := m.engine
	address := m.address
	scale := m.scale
	return func() tea.Msg {
		var out string
		var err error
		if name == ipm.CmdAddress {
			err = engine.Send(name, arg)
			out = fmt.Sprintf("Selected address %s\n", arg)
		} else {
			out, err = sendAndDescribe(engine, address, name, arg, scale)
		}
		return commandResultMsg{command: name, arg: arg, output: out, err: err, badData: engine.BadData()}
	}
}

func (m menuModel) View() string {
	if m.quitting {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))
	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("IPMCTL - INTERACTIVE"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Tab switches focus | 'q' quits", m.connInfo)))
	s.WriteString("\n\n")

	stats := m.engine.Stats()
	var status strings.Builder
	fmt.Fprintf(&status, "%s %s\n", labelStyle.Render("Address:"), valueStyle.Render(strconv.Itoa(m.address)))
	fmt.Fprintf(&status, "%s %s\n", labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", stats.Transactions.Load())))
	badData := valueStyle.Render(fmt.Sprintf("%d/%d", m.badData, controller.MaxBadData))
	if m.badData > 0 {
		badData = errorStyle.Render(fmt.Sprintf("%d/%d", m.badData, controller.MaxBadData))
	}
	fmt.Fprintf(&status, "%s %s\n", labelStyle.Render("Bad data:"), badData)
	if m.busy {
		status.WriteString(headerStyle.Render("waiting for response..."))
	}

	right := lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Render(status.String()),
		"",
		labelStyle.Render("Command: ")+m.entry.View(),
	)
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.commands.View(), "  ", right))
	s.WriteString("\n\n")

	maxLines := m.height - 22
	if maxLines < 5 {
		maxLines = 5
	}
	start := len(m.log) - maxLines
	if start < 0 {
		start = 0
	}
	for _, e := range m.log[start:] {
		line := fmt.Sprintf("%s %s", e.timestamp.Format("15:04:05"), e.message)
		if e.isError {
			line = errorStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}
	return s.String()
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *menuModel) addLogEntry(message string, isError bool) {
	m.log = append(m.log, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}
