package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	colorRed       = lipgloss.Color("#ff5555")
	colorGreen     = lipgloss.Color("#50fa7b")
	colorYellow    = lipgloss.Color("#f1fa8c")
	colorBlue      = lipgloss.Color("#8be9fd")
	colorPurple    = lipgloss.Color("#bd93f9")
	colorDim       = lipgloss.Color("#6272a4")
	colorBgLight   = lipgloss.Color("#343746")
	colorFg        = lipgloss.Color("#f8f8f2")
	colorOrange    = lipgloss.Color("#ffb86c")
	colorBorder    = lipgloss.Color("#44475a")
	colorHighlight = lipgloss.Color("#44475a")
)

// Style definitions.
var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	// Message panel
	messageStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Bold(true)

	ungroundedStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true).
			Underline(true)

	verdictValidStyle = lipgloss.NewStyle().
				Foreground(colorGreen).
				Bold(true)

	verdictInvalidStyle = lipgloss.NewStyle().
				Foreground(colorOrange).
				Bold(true)

	metricStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	// Diff view
	lineNumberStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(4).
			Align(lipgloss.Right)

	addedLineStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	deletedLineStyle = lipgloss.NewStyle().
				Foreground(colorRed)

	contextLineStyle = lipgloss.NewStyle().
				Foreground(colorFg)

	evidenceMarkStyle = lipgloss.NewStyle().
				Foreground(colorOrange).
				Bold(true)

	hunkHeaderStyle = lipgloss.NewStyle().
			Foreground(colorPurple).
			Bold(true)

	fileHeaderStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			Padding(0, 0, 1, 0)

	// Trail panel
	trailHeaderStyle = lipgloss.NewStyle().
				Foreground(colorPurple).
				Bold(true).
				Padding(0, 0, 1, 0)

	trailGeneratorStyle = lipgloss.NewStyle().
				Foreground(colorGreen)

	trailValidatorStyle = lipgloss.NewStyle().
				Foreground(colorBlue)

	trailRefinerStyle = lipgloss.NewStyle().
				Foreground(colorYellow)

	trailReasonStyle = lipgloss.NewStyle().
				Foreground(colorFg)

	trailSelectedStyle = lipgloss.NewStyle().
				Background(colorHighlight)

	// Status bar
	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorFg).
			Background(colorBgLight).
			Padding(0, 1)

	// Help
	helpBarStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)
