package diff

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// HighlightedLine is one source line split into colored tokens.
type HighlightedLine struct {
	Tokens []Token
}

// Token is a syntax-highlighted chunk of text.
type Token struct {
	Text  string
	Color string // hex color, empty for the terminal default
}

// Plain returns the concatenated text of all tokens.
func (hl HighlightedLine) Plain() string {
	var b strings.Builder
	for _, t := range hl.Tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// Highlighter colors source lines with one chroma style. Lexers are
// looked up once per file extension. It is safe for concurrent use.
type Highlighter struct {
	style  *chroma.Style
	lexers sync.Map // extension -> chroma.Lexer, nil when unknown
}

// NewHighlighter returns a highlighter for the named chroma style,
// falling back to chroma's default style for unknown names.
func NewHighlighter(style string) *Highlighter {
	s := styles.Get(style)
	if s == nil {
		s = styles.Fallback
	}
	return &Highlighter{style: s}
}

var defaultHighlighter = NewHighlighter("dracula")

// HighlightLines highlights lines of filename with the dracula style.
func HighlightLines(filename string, lines []string) []HighlightedLine {
	return defaultHighlighter.Lines(filename, lines)
}

// Lines returns one HighlightedLine per input line. Files with no known
// lexer come back as single plain tokens.
func (h *Highlighter) Lines(filename string, lines []string) []HighlightedLine {
	lexer := h.lexer(filename)
	if lexer == nil {
		return plainLines(lines)
	}

	iterator, err := lexer.Tokenise(nil, strings.Join(lines, "\n"))
	if err != nil {
		return plainLines(lines)
	}

	result := make([]HighlightedLine, 0, len(lines))
	var current HighlightedLine
	for _, token := range iterator.Tokens() {
		// A token may span several lines.
		for i, part := range strings.Split(token.Value, "\n") {
			if i > 0 {
				result = append(result, current)
				current = HighlightedLine{}
			}
			if part != "" {
				current.Tokens = append(current.Tokens, Token{Text: part, Color: h.color(token.Type)})
			}
		}
	}
	result = append(result, current)

	// Lexers may drop a trailing empty line; keep the result aligned.
	for len(result) < len(lines) {
		result = append(result, HighlightedLine{Tokens: []Token{{Text: ""}}})
	}
	return result[:len(lines)]
}

func (h *Highlighter) lexer(filename string) chroma.Lexer {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		// Makefile, Dockerfile and friends match on the base name.
		ext = filepath.Base(filename)
	}
	if l, ok := h.lexers.Load(ext); ok {
		lexer, _ := l.(chroma.Lexer)
		return lexer
	}

	lexer := lexers.Match(filename)
	if lexer == nil && strings.HasPrefix(ext, ".") {
		lexer = lexers.Match("file" + ext)
	}
	if lexer != nil {
		lexer = chroma.Coalesce(lexer)
	}
	h.lexers.Store(ext, lexer)
	return lexer
}

func (h *Highlighter) color(tt chroma.TokenType) string {
	entry := h.style.Get(tt)
	if entry.Colour.IsSet() {
		return entry.Colour.String()
	}
	return ""
}

func plainLines(lines []string) []HighlightedLine {
	result := make([]HighlightedLine, len(lines))
	for i, line := range lines {
		result[i] = HighlightedLine{Tokens: []Token{{Text: line}}}
	}
	return result
}
