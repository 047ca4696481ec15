package bf

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/containerd/log"
)

type Interpreter struct {
	Program Program
	tape    *Tape
	Input   *bufio.Reader
	Output  io.StringWriter
	debug   bool
}

type discard struct{}

func (discard) WriteString(s string) (int, error) { return len(s), nil }

// NewInterpreter prepares program for execution on a fresh tape. A nil
// output discards everything written, a nil input is an exhausted stream.
func NewInterpreter(program Program, input io.Reader, output io.StringWriter, opts Options) *Interpreter {
	if input == nil {
		input = strings.NewReader("")
	}
	br, ok := input.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(input)
	}
	if output == nil {
		output = discard{}
	}
	tape := NewTape()
	tape.crlf = opts.CRLF
	return &Interpreter{
		Program: program,
		tape:    tape,
		Input:   br,
		Output:  output,
		debug:   opts.Debug,
	}
}

func (i *Interpreter) Tape() *Tape {
	return i.tape
}

// At returns the value of tape cell j.
func (i *Interpreter) At(j int) Cell {
	return i.tape.At(j)
}

// Run the program until it finishes or an error occurs
func (i *Interpreter) Run() error {
	return i.RunContext(context.Background())
}

// RunContext runs the program, consuming it front to back. ctx is checked
// before every top-level instruction and every loop iteration.
func (i *Interpreter) RunContext(ctx context.Context) error {
	if i.debug {
		log.G(ctx).WithField("instructions", i.Program.Len()).Debug("run")
	}
	for len(i.Program) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		inst := i.Program[0]
		i.Program = i.Program[1:]

		var err error
		switch inst := inst.(type) {
		case Op:
			err = i.exec(ctx, rune(inst))
		case *Loop:
			err = i.loop(ctx, inst)
		}
		if err != nil {
			return err
		}
	}
	if i.debug {
		log.G(ctx).WithField("cells", i.tape.Len()).Debug("done")
	}
	return nil
}

// loop runs body while the cell under the cursor is non-zero. The cell is
// looked up again at every iteration, wherever the cursor is by then.
func (i *Interpreter) loop(ctx context.Context, l *Loop) error {
	if i.debug {
		log.G(ctx).WithField("cursor", i.tape.Cursor()).Debugf("enter loop %s", l)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := i.tape.Current()
		if err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
	body:
		for _, item := range l.Body {
			switch item := item.(type) {
			case BodyOp:
				err = i.exec(ctx, rune(item))
			case NestedLoop:
				err = i.loop(ctx, item.Loop)
			case End:
				break body
			}
			if err != nil {
				return err
			}
		}
	}
}

func (i *Interpreter) exec(ctx context.Context, c rune) error {
	switch Command(c) {
	case Increment:
		return i.tape.Increment()
	case Decrement:
		return i.tape.Decrement()
	case Right:
		i.move(ctx, i.tape.MoveRight)
	case Left:
		i.move(ctx, i.tape.MoveLeft)
	case Output:
		return i.tape.Output(i.Output)
	case Input:
		return i.tape.Input(i.Input)
	default:
		return &RuntimeError{Err: ErrUnknownToken, Token: c}
	}
	return nil
}

func (i *Interpreter) move(ctx context.Context, move func()) {
	n := i.tape.Len()
	move()
	if i.debug && i.tape.Len() != n {
		log.G(ctx).WithField("cells", i.tape.Len()).Debug("tape grew")
	}
}
