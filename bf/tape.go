package bf

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// TapeCapacity is the maximum number of cells a tape ever holds.
const TapeCapacity = 255

// Cell is a tape cell. Arithmetic on it wraps.
type Cell uint8

// Tape is the interpreter memory. It starts with one cell and grows a cell
// at a time, up to TapeCapacity. Cells are never removed.
type Tape struct {
	cells     []Cell
	cursor    int
	highWater int

	// write '\n' as "\r\n"
	crlf bool
}

func NewTape() *Tape {
	return &Tape{
		cells: []Cell{0},
	}
}

func (t *Tape) Cursor() int {
	return t.cursor
}

func (t *Tape) Len() int {
	return len(t.cells)
}

// At returns the value of cell i, or 0 for cells not allocated yet.
func (t *Tape) At(i int) Cell {
	if i < 0 || i >= len(t.cells) {
		return 0
	}
	return t.cells[i]
}

func (t *Tape) Current() (Cell, error) {
	if t.cursor < 0 || t.cursor >= len(t.cells) {
		return 0, &RuntimeError{Err: ErrOutOfTapeBounds, Index: t.cursor}
	}
	return t.cells[t.cursor], nil
}

func (t *Tape) current() (*Cell, error) {
	if t.cursor < 0 || t.cursor >= len(t.cells) {
		return nil, &RuntimeError{Err: ErrOutOfTapeBounds, Index: t.cursor}
	}
	return &t.cells[t.cursor], nil
}

// grow appends a cell if there is room and moves the cursor to the last
// cell either way.
func (t *Tape) grow() {
	if len(t.cells) < TapeCapacity {
		t.cells = append(t.cells, 0)
		t.highWater = len(t.cells) - 1
	}
	t.cursor = len(t.cells) - 1
}

// MoveRight advances the cursor, allocating a cell when it walks past the
// high-water mark. On a full tape, moving right off the last cell wraps to
// cell 0.
func (t *Tape) MoveRight() {
	switch {
	case t.cursor == t.highWater && len(t.cells) >= TapeCapacity:
		t.cursor = 0
	case t.cursor == t.highWater:
		t.grow()
	default:
		t.cursor++
	}
}

// MoveLeft moves the cursor back one cell. At cell 0 the tape grows instead
// and the cursor jumps to the new last cell.
func (t *Tape) MoveLeft() {
	if t.cursor > 0 {
		t.cursor--
		return
	}
	t.grow()
}

func (t *Tape) Increment() error {
	c, err := t.current()
	if err != nil {
		return err
	}
	*c++
	return nil
}

func (t *Tape) Decrement() error {
	c, err := t.current()
	if err != nil {
		return err
	}
	*c--
	return nil
}

// Output writes the current cell as a single character.
func (t *Tape) Output(w io.StringWriter) error {
	c, err := t.Current()
	if err != nil {
		return err
	}
	s := string(rune(c))
	if t.crlf && rune(c) == rune(Newline) {
		s = "\r\n"
	}
	if _, err := w.WriteString(s); err != nil {
		return &RuntimeError{Err: ErrOutputWrite, Cause: err}
	}
	return nil
}

// Input reads one line, parses it as a non-negative integer and stores its
// low 8 bits in the current cell. Running out of input is not a read error:
// whatever is left of the line, possibly nothing, gets parsed.
func (t *Tape) Input(r *bufio.Reader) error {
	c, err := t.current()
	if err != nil {
		return err
	}
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return &RuntimeError{Err: ErrInputRead, Cause: err}
	}
	v, err := strconv.ParseUint(strings.TrimSpace(line), 10, 32)
	if err != nil {
		return &RuntimeError{Err: ErrInputParse, Cause: err}
	}
	*c = Cell(v)
	return nil
}
