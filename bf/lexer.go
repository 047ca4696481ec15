package bf

import "fmt"

// Position of a character in the source text. Both fields are 1-based.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Symbol is a significant (non-whitespace) character of the source
// together with where it came from.
type Symbol struct {
	Char rune
	Pos  Position
}

// PreLex strips whitespace from the input. Every other character is kept.
func PreLex(input string) string {
	var result []rune
	for _, c := range input {
		if !IsWhitespace(c) {
			result = append(result, c)
		}
	}
	return string(result)
}

type Lexer struct {
	chars string
}

func NewLexer(input string) *Lexer {
	return &Lexer{
		chars: input,
	}
}

// Lex returns the significant characters of the source in order.
func (l *Lexer) Lex() []Symbol {
	symbols := make([]Symbol, 0, len(l.chars))
	pos := Position{Line: 1, Column: 1}
	for _, c := range l.chars {
		if !IsWhitespace(c) {
			symbols = append(symbols, Symbol{Char: c, Pos: pos})
		}
		if c == rune(Newline) {
			pos.Line++
			pos.Column = 1
		} else {
			pos.Column++
		}
	}
	return symbols
}

func Lex(input string) []Symbol {
	lexer := NewLexer(input)
	return lexer.Lex()
}
