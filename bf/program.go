package bf

import "strings"

// Instruction is a top-level element of a Program: either an Op or a *Loop.
type Instruction interface {
	instruction()
	String() string
}

// LoopItem is an element of a loop body: a BodyOp, a NestedLoop or the
// End sentinel.
type LoopItem interface {
	loopItem()
	String() string
}

// Op is a single operation at top level. Its character is not validated
// until it is executed.
type Op rune

func (Op) instruction() {}

func (o Op) String() string { return string(rune(o)) }

// Loop is a bracketed body. A body built by the parser always ends with
// exactly one End.
type Loop struct {
	Body []LoopItem
}

func (*Loop) instruction() {}

func (l *Loop) String() string {
	var sb strings.Builder
	sb.WriteRune(rune(LoopStart))
	for _, item := range l.Body {
		sb.WriteString(item.String())
	}
	return sb.String()
}

// BodyOp is a single operation inside a loop body.
type BodyOp rune

func (BodyOp) loopItem() {}

func (o BodyOp) String() string { return string(rune(o)) }

// NestedLoop is a loop inside a loop body.
type NestedLoop struct {
	Loop *Loop
}

func (NestedLoop) loopItem() {}

func (n NestedLoop) String() string { return n.Loop.String() }

// End marks the end of a loop body. Reaching it sends the interpreter back
// to the loop condition.
type End struct{}

func (End) loopItem() {}

func (End) String() string { return string(rune(LoopEnd)) }

// Program is the parsed form of a source: an ordered sequence of
// instructions with repetitions expanded and comments removed.
type Program []Instruction

func (p Program) Len() int {
	return len(p)
}

// String renders the program back to source. Parsing the result yields an
// equal program.
func (p Program) String() string {
	var sb strings.Builder
	for _, inst := range p {
		sb.WriteString(inst.String())
	}
	return sb.String()
}

// Depth returns the deepest loop nesting in the program. A program without
// loops has depth 0.
func (p Program) Depth() int {
	depth := 0
	for _, inst := range p {
		if l, ok := inst.(*Loop); ok {
			depth = max(depth, l.depth())
		}
	}
	return depth
}

func (l *Loop) depth() int {
	inner := 0
	for _, item := range l.Body {
		if n, ok := item.(NestedLoop); ok {
			inner = max(inner, n.Loop.depth())
		}
	}
	return inner + 1
}
