// Package tui implements the Bubble Tea review screen for a generated
// commit message.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/smartcommit/internal/agent"
	"github.com/sprite-ai/smartcommit/internal/diff"
	"github.com/sprite-ai/smartcommit/internal/evaluate"
)

// Model is the top-level Bubble Tea model for the review screen.
type Model struct {
	result  *agent.Result
	diffSet *diff.DiffSet

	// ungrounded holds the message tokens the diff does not support;
	// evidence holds the message tokens worth finding in the diff.
	ungrounded map[string]struct{}
	evidence   map[string]struct{}

	width  int
	height int

	fileIndex    int
	scrollOffset int
	lines        []renderedLine

	splitView bool
	showTrail bool
	trailStep int
	showHelp  bool

	outcome Outcome
}

// New creates a review model for a loop result and the diff it describes.
func New(res *agent.Result, ds *diff.DiffSet) Model {
	m := Model{
		result:     res,
		diffSet:    ds,
		ungrounded: make(map[string]struct{}),
		evidence:   make(map[string]struct{}),
		showTrail:  res.Trail != nil && res.Trail.Len() > 0,
		outcome:    Outcome{Message: res.Message},
	}
	for _, tok := range res.Evaluation.Hallucination.UngroundedTokens {
		m.ungrounded[tok] = struct{}{}
	}
	for tok := range tokenSet(res.Message) {
		if _, bad := m.ungrounded[tok]; !bad && !evaluate.IsGeneric(tok) {
			m.evidence[tok] = struct{}{}
		}
	}
	m.updateLines()
	return m
}

// Outcome reports what the user decided. It is valid after the program
// exits.
func (m Model) Outcome() Outcome {
	return m.outcome
}

func (m *Model) updateLines() {
	if len(m.diffSet.Files) == 0 {
		m.lines = nil
		return
	}
	m.lines = renderFile(m.diffSet.Files[m.fileIndex], m.evidence)
}

func (m Model) trailLen() int {
	if m.result.Trail == nil {
		return 0
	}
	return m.result.Trail.Len()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.Accept):
			m.outcome.Decided, m.outcome.Accepted = true, true
			return m, tea.Quit

		case key.Matches(msg, keys.Reject):
			m.outcome.Decided, m.outcome.Accepted = true, false
			return m, tea.Quit

		case key.Matches(msg, keys.Down):
			if m.scrollOffset < len(m.lines)-1 {
				m.scrollOffset++
			}

		case key.Matches(msg, keys.Up):
			if m.scrollOffset > 0 {
				m.scrollOffset--
			}

		case key.Matches(msg, keys.NextFile):
			if m.fileIndex < len(m.diffSet.Files)-1 {
				m.fileIndex++
				m.scrollOffset = 0
				m.updateLines()
			}

		case key.Matches(msg, keys.PrevFile):
			if m.fileIndex > 0 {
				m.fileIndex--
				m.scrollOffset = 0
				m.updateLines()
			}

		case key.Matches(msg, keys.NextHunk):
			m.jumpToNextHunk()

		case key.Matches(msg, keys.PrevHunk):
			m.jumpToPrevHunk()

		case key.Matches(msg, keys.NextStep):
			if m.trailStep < m.trailLen()-1 {
				m.trailStep++
			}

		case key.Matches(msg, keys.PrevStep):
			if m.trailStep > 0 {
				m.trailStep--
			}

		case key.Matches(msg, keys.Toggle):
			m.splitView = !m.splitView

		case key.Matches(msg, keys.Trail):
			if m.trailLen() > 0 {
				m.showTrail = !m.showTrail
			}

		case key.Matches(msg, keys.Help):
			m.showHelp = !m.showHelp
		}
	}

	return m, nil
}

func (m *Model) jumpToNextHunk() {
	for i := m.scrollOffset + 1; i < len(m.lines); i++ {
		if m.lines[i].IsHunk {
			m.scrollOffset = i
			return
		}
	}
}

func (m *Model) jumpToPrevHunk() {
	for i := m.scrollOffset - 1; i >= 0; i-- {
		if m.lines[i].IsHunk {
			m.scrollOffset = i
			return
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	header := m.renderMessagePanel(m.width)
	bodyHeight := max(m.height-lipgloss.Height(header)-1, 5)

	var body string
	if m.showTrail {
		trailWidth := max(m.width/3, 30)
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			m.renderTrail(trailWidth, bodyHeight),
			" ",
			m.renderDiffView(m.width-trailWidth-1, bodyHeight),
		)
	} else {
		body = m.renderDiffView(m.width, bodyHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusBar())
}

func (m Model) renderMessagePanel(width int) string {
	res := m.result
	v := res.Verdict

	verdict := verdictValidStyle.Render("✓ valid")
	if !v.Valid {
		verdict = verdictInvalidStyle.Render("✗ needs review")
	}
	if res.Assessment.HumanOversight {
		verdict += verdictInvalidStyle.Render("  ⚠ human review required")
	}

	h := res.Evaluation.Hallucination
	metrics := metricStyle.Render(fmt.Sprintf(
		"quality %.2f  hallucination %.0f%% (%d/%d)  severity %s  confidence %s  refinements %d",
		res.Evaluation.Quality, h.Rate*100, len(h.UngroundedTokens), h.TotalTokensChecked,
		v.Severity, v.Confidence, res.Iterations))

	content := renderMessage(res.Message, m.ungrounded) + "\n\n" + verdict + "\n" + metrics
	return panelStyle.Width(width - 2).Render(content)
}

func (m Model) renderTrail(width, height int) string {
	var b strings.Builder
	b.WriteString(trailHeaderStyle.Render(fmt.Sprintf("Agent Trail (%d steps)", m.trailLen())))
	b.WriteByte('\n')

	inner := width - 4
	for i, d := range m.result.Trail.Decisions() {
		entry := renderDecision(i, d, inner)
		if i == m.trailStep {
			entry = trailSelectedStyle.Render(entry)
		}
		b.WriteString(entry)
		b.WriteString("\n\n")
	}

	return panelStyle.Width(width - 2).Height(height - 2).MaxHeight(height).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderDiffView(width, height int) string {
	innerHeight := height - 2
	if len(m.diffSet.Files) == 0 {
		return panelStyle.Width(width - 2).Height(innerHeight).Render("No changes")
	}

	f := m.diffSet.Files[m.fileIndex]
	innerWidth := width - 4

	visibleLines := max(innerHeight-2, 1)

	var b strings.Builder
	b.WriteString(fileHeaderStyle.Render(f.Name()))
	b.WriteByte('\n')

	if m.splitView {
		m.renderSplitDiff(&b, innerWidth, visibleLines)
	} else {
		m.renderUnifiedDiff(&b, innerWidth, visibleLines)
	}

	return panelStyle.Width(width - 2).Height(innerHeight).MaxHeight(height).Render(b.String())
}

func (m Model) renderUnifiedDiff(b *strings.Builder, width, visibleLines int) {
	end := min(m.scrollOffset+visibleLines, len(m.lines))
	for i := m.scrollOffset; i < end; i++ {
		b.WriteString(styleLine(m.lines[i], width))
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
}

func (m Model) renderSplitDiff(b *strings.Builder, width, visibleLines int) {
	halfWidth := (width - 3) / 2
	end := min(m.scrollOffset+visibleLines, len(m.lines))
	for i := m.scrollOffset; i < end; i++ {
		left, right := styleLineSplit(m.lines[i], halfWidth)
		b.WriteString(left)
		b.WriteString(" │ ")
		b.WriteString(right)
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
}

func (m Model) renderStatusBar() string {
	nFiles, added, deleted := m.diffSet.Stats()

	left := fmt.Sprintf(" File %d/%d", min(m.fileIndex+1, nFiles), nFiles)
	if len(m.lines) > 0 {
		left += fmt.Sprintf("  Line %d/%d", m.scrollOffset+1, len(m.lines))
	}

	mode := "unified"
	if m.splitView {
		mode = "split"
	}

	right := fmt.Sprintf("+%d -%d  %s  a accept  x reject  ? help ", added, deleted, mode)
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 0)

	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	var b strings.Builder

	b.WriteString(fileHeaderStyle.Render("smartcommit review: Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, sec := range keys.sections() {
		b.WriteString(trailHeaderStyle.Render(sec.Title))
		b.WriteString("\n")
		for _, k := range sec.Bindings {
			h := k.Help()
			fmt.Fprintf(&b, "  %s  %s\n", helpKeyStyle.Width(12).Render(h.Key), h.Desc)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Words underlined in red are not supported by the diff. ▎ marks changed lines the message mentions."))
	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render("Press ? to close help"))

	return b.String()
}

// Run shows the review screen and returns what the user decided.
func Run(res *agent.Result, ds *diff.DiffSet) (Outcome, error) {
	p := tea.NewProgram(New(res, ds), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return Outcome{}, err
	}
	return final.(Model).Outcome(), nil
}
