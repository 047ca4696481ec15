package bf

// Command is a single character of the language. Operation commands are
// executed by the interpreter, structural ones only steer the parser.
type Command rune

// Operations
const (
	Increment Command = '+'
	Decrement Command = '-'
	Left      Command = '<'
	Right     Command = '>'
	Output    Command = '.'
	Input     Command = ','
)

// Structure
const (
	LoopStart     Command = '['
	LoopEnd       Command = ']'
	RepeatStart   Command = '('
	RepeatEnd     Command = ')'
	CommentMarker Command = '/'
)

// Whitespace is stripped before parsing. Nothing else is, not even '\r'.
const (
	Space   Command = ' '
	Tab     Command = '\t'
	Newline Command = '\n'
)

func IsWhitespace(c rune) bool {
	switch Command(c) {
	case Space, Tab, Newline:
		return true
	default:
		return false
	}
}

// IsOperation reports whether c is bound to a tape operation.
func IsOperation(c rune) bool {
	switch Command(c) {
	case Increment, Decrement, Left, Right, Output, Input:
		return true
	default:
		return false
	}
}

// IsRepeatable reports whether c may appear as the operation of a
// repetition group. Only movement and arithmetic qualify.
func IsRepeatable(c rune) bool {
	switch Command(c) {
	case Increment, Decrement, Left, Right:
		return true
	default:
		return false
	}
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func (c Command) String() string {
	return string(rune(c))
}
