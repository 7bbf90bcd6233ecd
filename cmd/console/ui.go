package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/turn-engine/pkg/chat"
	"github.com/jwebster45206/turn-engine/pkg/scenario"
	"github.com/jwebster45206/turn-engine/pkg/state"
	"github.com/jwebster45206/turn-engine/pkg/turn"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "What do you do?"

	// openingAction asks for the prologue on a fresh session.
	openingAction = "start"
)

type transcriptEntry struct {
	role string // chat.ChatRoleUser or chat.ChatRoleAgent
	text string
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config *ConsoleConfig
	client *http.Client

	sessionKey string

	narrationViewport viewport.Model
	statusViewport    viewport.Model
	textarea          textarea.Model
	ready             bool
	width             int
	height            int
	err               error
	notice            string

	// Scenario selection state
	showScenarioModal bool
	scenarios         []scenario.Summary
	selectedScenario  int
	loadingScenarios  bool
	creatingSession   bool

	// Quit confirmation state
	showQuitModal bool

	// Turn in flight
	loading      bool
	events       <-chan streamItem
	cancelTurn   context.CancelFunc
	current      string
	progressTick int

	// Built from the event stream
	transcript []transcriptEntry
	scene      turn.PrefixContent
	player     *state.PlayerState
	world      *turn.WorldView
	npcs       []state.NPC
	ending     *turn.EndingContent
}

type scenariosLoadedMsg struct {
	scenarios []scenario.Summary
	err       error
}

type sessionCreatedMsg struct {
	key string
	err error
}

type turnEventMsg struct {
	item streamItem
}

type turnClosedMsg struct{}

type progressTickMsg struct{}

var (
	narrationPanelStyle = lipgloss.NewStyle().
				PaddingTop(2).
				PaddingBottom(1).
				PaddingLeft(3).
				PaddingRight(0)

	statusPanelStyle = lipgloss.NewStyle().
				PaddingTop(2).
				PaddingBottom(0).
				PaddingLeft(0).
				PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	endingStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)
)

var separatorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("240")) // dark grey

func NewConsoleUI(cfg *ConsoleConfig, client *http.Client) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	narrationVp := viewport.New(50, 20)
	narrationVp.MouseWheelEnabled = true

	statusVp := viewport.New(20, 20)

	return ConsoleUI{
		config:            cfg,
		client:            client,
		textarea:          ta,
		narrationViewport: narrationVp,
		statusViewport:    statusVp,
		showScenarioModal: true,
		loadingScenarios:  true,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadScenarios()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Stream events keep arriving behind the modals.
	switch msg := msg.(type) {
	case turnEventMsg:
		return m.handleTurnEvent(msg)
	case turnClosedMsg:
		return m.handleTurnClosed()
	}

	if m.showScenarioModal {
		return m.updateScenarioModal(msg)
	}
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		svCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.narrationViewport, vpCmd = m.narrationViewport.Update(msg)
		m.statusViewport, svCmd = m.statusViewport.Update(msg)
		return m, tea.Batch(vpCmd, svCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlY:
			m.copySessionKey()
			m.refresh()
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			if strings.HasPrefix(input, "/") {
				m.handleCommand(input)
				return m, nil
			}
			if m.ending != nil {
				m.notice = "This story has ended. Press Esc to quit."
				m.refresh()
				return m, nil
			}
			m.transcript = append(m.transcript, transcriptEntry{role: chat.ChatRoleUser, text: input})
			return m.beginTurn(input)
		}

	case progressTickMsg:
		if m.loading && m.current == "" {
			m.progressTick++
			m.refresh()
			return m, progressTick()
		}
		return m, nil
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.narrationViewport, vpCmd = m.narrationViewport.Update(msg)
	m.statusViewport, svCmd = m.statusViewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, svCmd)
}

// beginTurn starts streaming one turn. Events arrive as turnEventMsg until
// the stream closes.
func (m ConsoleUI) beginTurn(action string) (tea.Model, tea.Cmd) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan streamItem)
	go streamTurn(ctx, m.client, m.config.APIBaseURL, chat.TurnRequest{
		SessionKey: m.sessionKey,
		Action:     action,
	}, ch)

	m.events = ch
	m.cancelTurn = cancel
	m.loading = true
	m.current = ""
	m.notice = ""
	m.err = nil
	m.progressTick = 0
	m.refresh()
	return m, tea.Batch(waitForEvent(ch), progressTick())
}

func waitForEvent(ch <-chan streamItem) tea.Cmd {
	return func() tea.Msg {
		it, ok := <-ch
		if !ok {
			return turnClosedMsg{}
		}
		return turnEventMsg{item: it}
	}
}

func (m ConsoleUI) handleTurnEvent(msg turnEventMsg) (tea.Model, tea.Cmd) {
	if msg.item.err != nil {
		m.err = msg.item.err
	} else if err := m.applyEvent(msg.item.event); err != nil {
		m.err = err
	}
	m.refresh()
	if m.events == nil {
		return m, nil
	}
	return m, waitForEvent(m.events)
}

func (m ConsoleUI) handleTurnClosed() (tea.Model, tea.Cmd) {
	if m.cancelTurn != nil {
		m.cancelTurn()
		m.cancelTurn = nil
	}
	// A stream cut off before done still shows what arrived.
	m.finishNarration()
	m.events = nil
	m.loading = false
	m.refresh()
	m.textarea.Focus()
	return m, textarea.Blink
}

// applyEvent folds one stream event into the model.
func (m *ConsoleUI) applyEvent(ev wireEvent) error {
	switch ev.Type {
	case turn.EventSessionID:
		return decode(ev.Content, &m.sessionKey)
	case turn.EventPrefix:
		return decode(ev.Content, &m.scene)
	case turn.EventToken:
		var s string
		if err := decode(ev.Content, &s); err != nil {
			return err
		}
		m.current += s
	case turn.EventSectionEnd:
	case turn.EventRetry:
		var r turn.RetryContent
		if err := decode(ev.Content, &r); err != nil {
			return err
		}
		m.current = ""
		m.notice = fmt.Sprintf("The narrator lost the thread. Retrying (%d of %d)...", r.Attempt+1, r.Max)
	case turn.EventFallback:
		var s string
		if err := decode(ev.Content, &s); err != nil {
			return err
		}
		m.current = s
		m.notice = ""
	case turn.EventEndingStart:
		var e turn.EndingContent
		if err := decode(ev.Content, &e); err != nil {
			return err
		}
		m.ending = &e
	case turn.EventStats:
		var p state.PlayerState
		if err := decode(ev.Content, &p); err != nil {
			return err
		}
		m.player = &p
	case turn.EventWorldState:
		var w turn.WorldView
		if err := decode(ev.Content, &w); err != nil {
			return err
		}
		m.world = &w
	case turn.EventNPCStatus:
		var npcs []state.NPC
		if err := decode(ev.Content, &npcs); err != nil {
			return err
		}
		m.npcs = npcs
	case turn.EventError:
		var e turn.ErrorContent
		if err := decode(ev.Content, &e); err != nil {
			return err
		}
		m.err = errors.New(e.Message)
	case turn.EventDone:
		m.finishNarration()
		m.notice = ""
	}
	return nil
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return nil
}

func (m *ConsoleUI) finishNarration() {
	if strings.TrimSpace(m.current) != "" {
		m.transcript = append(m.transcript, transcriptEntry{role: chat.ChatRoleAgent, text: strings.TrimSpace(m.current)})
	}
	m.current = ""
}

func (m *ConsoleUI) copySessionKey() {
	if m.sessionKey == "" {
		m.notice = "No session yet."
		return
	}
	if err := clipboard.WriteAll(m.sessionKey); err != nil {
		m.notice = "Clipboard unavailable: " + err.Error()
		return
	}
	m.notice = "Session key copied to clipboard."
}

func (m *ConsoleUI) handleCommand(input string) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "/help":
		m.notice = "Type an action and press Enter. Ctrl+Y copies the session key. /key shows it. Esc quits."
	case "/key":
		m.notice = "Session key: " + m.sessionKey
	default:
		m.notice = "Unknown command " + input + ". Try /help."
	}
	m.refresh()
}

// layout sizes the panels: narration on the left three quarters, status on
// the right.
func (m *ConsoleUI) layout() {
	narrationWidth := int(float64(m.width)*0.75) - 4
	statusWidth := m.width - narrationWidth - 6

	m.narrationViewport.Width = narrationWidth - 2
	m.narrationViewport.Height = m.height - 7
	m.statusViewport.Width = statusWidth - 2
	m.statusViewport.Height = m.height - 4
	m.textarea.SetWidth(narrationWidth - 4)
}

func (m *ConsoleUI) refresh() {
	width := m.narrationViewport.Width - 6 // Account for left(3) + right(3) padding
	if width < 20 {
		width = 20
	}
	m.narrationViewport.SetContent(m.renderNarration(width))
	m.narrationViewport.GotoBottom()
	m.statusViewport.SetContent(m.renderStatus(max(m.statusViewport.Width, 20)))
}

func (m ConsoleUI) renderNarration(width int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("TURN ENGINE") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	for _, e := range m.transcript {
		switch e.role {
		case chat.ChatRoleUser:
			content.WriteString(userStyle.Render("You: ") + wordwrap.String(e.text, width-5) + "\n\n")
		default:
			content.WriteString(formatNarration(e.text, width) + "\n\n")
		}
	}

	if m.loading {
		if m.current != "" {
			content.WriteString(formatNarration(m.current, width) + "\n\n")
		} else {
			content.WriteString(m.renderProgressBar(width) + "\n\n")
		}
	}
	if m.ending != nil {
		body := titleStyle.Render(m.ending.Title) + "\n\n" + wordwrap.String(m.ending.Text, width-4)
		content.WriteString(endingStyle.Width(width).Render(body) + "\n\n")
	}
	if m.notice != "" {
		content.WriteString(loadingStyle.Render(wordwrap.String(m.notice, width)) + "\n\n")
	}
	if m.err != nil {
		content.WriteString(errorStyle.Render(wordwrap.String("Error: "+m.err.Error(), width)) + "\n\n")
	}
	return content.String()
}

func formatNarration(text string, width int) string {
	prefix := AgentName + ": "
	wrapped := wordwrap.String(text, width-len(prefix))
	return narratorStyle.Render(prefix) + wrapped
}

func (m ConsoleUI) renderStatus(width int) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("STATUS") + "\n\n")

	if m.sessionKey != "" {
		key := m.sessionKey
		if len(key) > 8 {
			key = key[:8] + "..."
		}
		content.WriteString("Session:\n" + key + "\n\n")
	}

	if m.scene.SceneID != "" {
		title := m.scene.Title
		if title == "" {
			title = m.scene.SceneID
		}
		content.WriteString("Scene:\n" + title + "\n")
		if m.scene.Background != "" {
			content.WriteString(promptStyle.Render(wordwrap.String(m.scene.Background, width)) + "\n")
		}
		if m.scene.Hint != "" {
			content.WriteString(loadingStyle.Render(wordwrap.String("Hint: "+m.scene.Hint, width)) + "\n")
		}
		content.WriteString("\n")
	}

	if p := m.player; p != nil {
		fmt.Fprintf(&content, "HP: %d/%d\n", p.HP, p.MaxHP)
		if p.MaxMP > 0 {
			fmt.Fprintf(&content, "MP: %d/%d\n", p.MP, p.MaxMP)
		}
		fmt.Fprintf(&content, "Sanity: %d\n", p.Sanity)
		fmt.Fprintf(&content, "Gold: %d\n\n", p.Gold)

		content.WriteString("Inventory:\n")
		if len(p.Inventory) == 0 {
			content.WriteString("Empty\n")
		}
		for _, item := range p.Inventory {
			content.WriteString("• " + item.Name + "\n")
		}
		content.WriteString("\n")
	}

	if w := m.world; w != nil {
		fmt.Fprintf(&content, "Day %d, %s\n", w.Time.Day, w.Time.Phase)
		fmt.Fprintf(&content, "Turn: %d\n", w.TurnCount)
		if w.StuckCount > 0 {
			fmt.Fprintf(&content, "Stuck: %d\n", w.StuckCount)
		}
		if len(w.GlobalFlags) > 0 {
			content.WriteString("Flags:\n")
			for _, k := range sortedKeys(w.GlobalFlags) {
				fmt.Fprintf(&content, "• %s: %v\n", k, w.GlobalFlags[k])
			}
		}
		content.WriteString("\n")
	}

	if len(m.npcs) > 0 {
		content.WriteString("Characters:\n")
		for _, npc := range m.npcs {
			line := fmt.Sprintf("• %s %d/%d", npc.Name, npc.HP, npc.MaxHP)
			if npc.Status == state.NPCDead {
				line += " (dead)"
			}
			content.WriteString(line + "\n")
		}
		content.WriteString("\n")
	}

	content.WriteString("Commands:\n")
	content.WriteString("• Enter: Act\n")
	content.WriteString("• Ctrl+Y: Copy key\n")
	content.WriteString("• /help: Help\n")
	content.WriteString("• Esc: Quit\n")
	return content.String()
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m ConsoleUI) loadScenarios() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
		defer cancel()
		list, err := listScenarios(ctx, m.client, m.config.APIBaseURL)
		return scenariosLoadedMsg{list, err}
	}
}

func (m ConsoleUI) createSession(scenarioID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.config.Timeout)
		defer cancel()
		key, err := createSession(ctx, m.client, m.config.APIBaseURL, scenarioID)
		return sessionCreatedMsg{key, err}
	}
}

func (m ConsoleUI) updateScenarioModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case scenariosLoadedMsg:
		m.loadingScenarios = false
		if msg.err != nil {
			m.err = msg.err
		} else if len(msg.scenarios) == 0 {
			m.err = errors.New("the server has no scenarios")
		} else {
			m.scenarios = msg.scenarios
		}

	case sessionCreatedMsg:
		m.creatingSession = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sessionKey = msg.key
		m.showScenarioModal = false
		if m.width > 0 && m.height > 0 {
			m.layout()
		}
		m.ready = true
		m.textarea.Focus()
		// The opening turn delivers the prologue.
		return m.beginTurn(openingAction)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			if m.loadingScenarios || m.err != nil {
				return m, tea.Quit
			}
			m.showQuitModal = true
			m.showScenarioModal = false
			return m, nil
		}
		if m.loadingScenarios || m.creatingSession || m.err != nil {
			return m, nil
		}

		switch msg.Type {
		case tea.KeyUp:
			if m.selectedScenario > 0 {
				m.selectedScenario--
			}
		case tea.KeyDown:
			if m.selectedScenario < len(m.scenarios)-1 {
				m.selectedScenario++
			}
		case tea.KeyEnter:
			if len(m.scenarios) > 0 {
				m.creatingSession = true
				return m, m.createSession(m.scenarios[m.selectedScenario].ID)
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m.quit()
		default:
			switch msg.String() {
			case "y", "Y":
				return m.quit()
			case "n", "N":
				m.showQuitModal = false
				if m.sessionKey == "" {
					m.showScenarioModal = true
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) quit() (tea.Model, tea.Cmd) {
	if m.cancelTurn != nil {
		m.cancelTurn()
	}
	return m, tea.Quit
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to quit your adventure?")
	content.WriteString("\n\n")
	if m.sessionKey != "" {
		content.WriteString("Your session key is " + m.sessionKey)
		content.WriteString("\n\n")
	}
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderScenarioModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingScenarios:
		content.WriteString(modalTitleStyle.Render("Loading Scenarios..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Please wait while we fetch available scenarios..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(wordwrap.String(m.err.Error(), 50)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.creatingSession:
		content.WriteString(modalTitleStyle.Render("Creating Game..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Setting up your adventure..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Scenario"))
		content.WriteString("\n\n")

		for i, sc := range m.scenarios {
			label := sc.Title
			if label == "" {
				label = sc.ID
			}
			if i == m.selectedScenario {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + label))
			} else {
				content.WriteString(modalItemStyle.Render("  " + label))
			}
			content.WriteString("\n")
			if sc.Description != "" {
				content.WriteString(promptStyle.Render("    "+wordwrap.String(sc.Description, 50)) + "\n")
			}
		}

		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showScenarioModal {
		return m.renderScenarioModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	narrationWidth := int(float64(m.width)*0.75) - 4
	statusWidth := m.width - narrationWidth - 6

	narrationPanel := narrationPanelStyle.Width(narrationWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.narrationViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", max(narrationWidth-4, 0))),
			m.textarea.View(),
		),
	)

	statusPanel := statusPanelStyle.Width(statusWidth).Height(m.height - 2).Render(
		m.statusViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, narrationPanel, statusPanel)
}

// renderProgressBar animates while the narrator has not produced any text.
func (m ConsoleUI) renderProgressBar(usable int) string {
	if usable > 80 {
		usable = 80
	} else if usable < 10 {
		usable = 10
	}

	const totalFrames = 40
	frame := m.progressTick % totalFrames
	filled := (frame * usable) / totalFrames

	var bar strings.Builder
	for i := 0; i < usable; i++ {
		if i < filled {
			bar.WriteString("█")
		} else if i == filled && frame%4 < 2 {
			bar.WriteString("▓")
		} else {
			bar.WriteString("░")
		}
	}
	return separatorStyle.Render(bar.String())
}

func progressTick() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(time.Time) tea.Msg {
		return progressTickMsg{}
	})
}
