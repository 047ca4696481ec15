package bf

import (
	"fmt"
	"strconv"
)

// Parser turns source text into a Program. It only understands loops,
// repetition groups and comments. Any other character is passed through
// as an operation and checked when the interpreter reaches it.
type Parser struct {
	symbols   []Symbol
	next      int
	maxRepeat int
}

// NewParser creates a parser for source. A positive maxRepeat bounds the
// count of a single repetition group.
func NewParser(source string, maxRepeat int) *Parser {
	return &Parser{
		symbols:   Lex(source),
		maxRepeat: maxRepeat,
	}
}

// Parse parses source with no repetition limit.
func Parse(source string) (Program, error) {
	return NewParser(source, 0).Parse()
}

func (p *Parser) done() bool {
	return p.next >= len(p.symbols)
}

func (p *Parser) peek() Symbol {
	return p.symbols[p.next]
}

func (p *Parser) advance() Symbol {
	s := p.symbols[p.next]
	p.next++
	return s
}

func syntaxError(err error, s Symbol) *SyntaxError {
	return &SyntaxError{Err: err, Pos: s.Pos, Found: s.Char}
}

// eofError reports a construct opened at s that the input never closed.
func eofError(err error, s Symbol) *SyntaxError {
	return &SyntaxError{Err: err, Pos: s.Pos}
}

// Parse consumes the whole input. The parser cannot be reused afterwards.
func (p *Parser) Parse() (Program, error) {
	program := Program{}
	emit := func(c rune) {
		program = append(program, Op(c))
	}
	for !p.done() {
		s := p.peek()
		switch Command(s.Char) {
		case LoopStart:
			loop, err := p.parseLoop()
			if err != nil {
				return nil, err
			}
			program = append(program, loop)
		case LoopEnd:
			return nil, syntaxError(ErrUnmatchedLoopClose, s)
		default:
			if err := p.parseShared(emit); err != nil {
				return nil, err
			}
		}
	}
	return program, nil
}

// parseLoop parses from a loop opening bracket up to and including its
// matching closing bracket.
func (p *Parser) parseLoop() (*Loop, error) {
	open := p.advance()
	loop := &Loop{}
	emit := func(c rune) {
		loop.Body = append(loop.Body, BodyOp(c))
	}
	for {
		if p.done() {
			return nil, eofError(ErrUnterminatedLoop, open)
		}
		switch Command(p.peek().Char) {
		case LoopStart:
			nested, err := p.parseLoop()
			if err != nil {
				return nil, err
			}
			loop.Body = append(loop.Body, NestedLoop{Loop: nested})
		case LoopEnd:
			p.advance()
			loop.Body = append(loop.Body, End{})
			return loop, nil
		default:
			if err := p.parseShared(emit); err != nil {
				return nil, err
			}
		}
	}
}

// parseShared handles everything that is parsed the same way at top level
// and inside a loop body. Operations go to emit.
func (p *Parser) parseShared(emit func(rune)) error {
	s := p.peek()
	switch Command(s.Char) {
	case CommentMarker:
		return p.skipComment()
	case RepeatStart:
		op, count, err := p.parseRepetition()
		if err != nil {
			return err
		}
		for range count {
			emit(op)
		}
	case RepeatEnd:
		return syntaxError(ErrMismatchedRepetitionParen, s)
	default:
		p.advance()
		emit(s.Char)
	}
	return nil
}

func (p *Parser) skipComment() error {
	open := p.advance()
	for {
		if p.done() {
			return eofError(ErrUnterminatedComment, open)
		}
		if Command(p.advance().Char) == CommentMarker {
			return nil
		}
	}
}

// parseRepetition parses `(op digits)`. No digits means a count of one.
func (p *Parser) parseRepetition() (rune, int, error) {
	open := p.advance()
	if p.done() {
		return 0, 0, eofError(ErrUnclosedRepetition, open)
	}
	s := p.advance()
	if !IsRepeatable(s.Char) {
		return 0, 0, syntaxError(ErrExpectedOperationSymbol, s)
	}
	op := s.Char

	var digits []rune
	for {
		if p.done() {
			return 0, 0, eofError(ErrUnclosedRepetition, open)
		}
		s := p.advance()
		switch {
		case isDigit(s.Char):
			digits = append(digits, s.Char)
		case Command(s.Char) == RepeatEnd:
			count, err := p.repeatCount(digits)
			if err != nil {
				return 0, 0, &SyntaxError{Err: ErrNumberParse, Pos: open.Pos, Cause: err}
			}
			return op, count, nil
		case Command(s.Char) == CommentMarker:
			return 0, 0, syntaxError(ErrCommentInsideRepetition, s)
		default:
			return 0, 0, syntaxError(ErrDigitsOnlyInsideRepetition, s)
		}
	}
}

func (p *Parser) repeatCount(digits []rune) (int, error) {
	if len(digits) == 0 {
		return 1, nil
	}
	count, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, err
	}
	if p.maxRepeat > 0 && count > p.maxRepeat {
		return 0, fmt.Errorf("count %d exceeds the limit of %d", count, p.maxRepeat)
	}
	return count, nil
}
