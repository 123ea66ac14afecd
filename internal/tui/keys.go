package tui

import "github.com/charmbracelet/bubbles/key"

// reviewKeys groups the review screen bindings by what they move through:
// the diff, the agent trail, or the final decision on the message.
type reviewKeys struct {
	Up, Down           key.Binding
	NextFile, PrevFile key.Binding
	NextHunk, PrevHunk key.Binding
	Toggle             key.Binding

	NextStep, PrevStep key.Binding
	Trail              key.Binding

	Accept, Reject key.Binding
	Help, Quit     key.Binding
}

func bind(desc string, label string, ks ...string) key.Binding {
	return key.NewBinding(key.WithKeys(ks...), key.WithHelp(label, desc))
}

var keys = reviewKeys{
	Up:       bind("scroll up", "↑/k", "up", "k"),
	Down:     bind("scroll down", "↓/j", "down", "j"),
	NextFile: bind("next file", "n/tab", "n", "tab"),
	PrevFile: bind("previous file", "N/S-tab", "N", "shift+tab"),
	NextHunk: bind("next hunk", "]", "]"),
	PrevHunk: bind("previous hunk", "[", "["),
	Toggle:   bind("unified/split diff", "v", "v"),

	NextStep: bind("next agent step", "J", "J"),
	PrevStep: bind("previous agent step", "K", "K"),
	Trail:    bind("show/hide trail", "t", "t"),

	Accept: bind("accept message", "a/enter", "a", "enter"),
	Reject: bind("reject message", "x", "x"),
	Help:   bind("toggle help", "?", "?"),
	Quit:   bind("quit without deciding", "q", "q", "ctrl+c"),
}

type keySection struct {
	Title    string
	Bindings []key.Binding
}

func (k reviewKeys) sections() []keySection {
	return []keySection{
		{"Diff", []key.Binding{k.Up, k.Down, k.NextFile, k.PrevFile, k.NextHunk, k.PrevHunk, k.Toggle}},
		{"Agent trail", []key.Binding{k.NextStep, k.PrevStep, k.Trail}},
		{"Message", []key.Binding{k.Accept, k.Reject, k.Help, k.Quit}},
	}
}
