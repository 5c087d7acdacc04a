// Package console implements the interactive console: a VT-100 line
// editor with command history, and the command dispatcher driving the
// storage and tap subsystems.
package console

// Editor configuration parameters.
const (
	// MaxLine is the longest accepted command line. Further input is
	// dropped silently, without echo.
	MaxLine = 80
	// HistoryDepth is how many past commands are kept.
	HistoryDepth = 3
	// Prompt is printed at session start and after every accepted line.
	Prompt = "-> "
)

// The history ring carries two slots beyond the visible depth: the
// line being edited, and a sentinel kept empty so moving forward
// never lands on stale data.
const bufCount = HistoryDepth + 2

// emptyLine marks an unused history slot.
const emptyLine = -1

type line struct {
	buf [MaxLine]byte
	len int
}

type editState int

const (
	stateNormal editState = iota
	stateEsc    // got ESC, expecting '['
	stateEscSeq // got ESC '[', expecting the selector byte
)

// Result is the outcome of feeding one byte to the Editor.
type Result struct {
	// Echo holds bytes to write back to the terminal.
	Echo []byte
	// Submitted is set when CR completed the line. An empty Line is a
	// blank submission: no dispatch, no history slot consumed.
	Submitted bool
	// Line is the completed command line.
	Line string
}

// Editor is the per-session line editor. It is a byte-at-a-time state
// machine private to its session's task; it performs no I/O itself.
type Editor struct {
	lines    [bufCount]line
	idx      int
	cursor   int
	state    editState
	escFirst byte
}

// NewEditor creates an Editor with an empty history.
func NewEditor() *Editor {
	e := &Editor{}
	for i := range e.lines {
		e.lines[i].len = emptyLine
	}
	return e
}

// BeginLine prepares the current slot for editing. The slot after the
// current one is marked empty so history navigation can always tell
// where the ring ends.
func (e *Editor) BeginLine() {
	e.cursor = 0
	e.lines[e.idx].len = 0
	e.lines[e.next(e.idx)].len = emptyLine
}

func (e *Editor) next(i int) int {
	i++
	if i == bufCount {
		i = 0
	}
	return i
}

func (e *Editor) prev(i int) int {
	i--
	if i < 0 {
		i = bufCount - 1
	}
	return i
}

// Feed consumes one byte from the terminal.
func (e *Editor) Feed(b byte) Result {
	switch e.state {
	case stateEsc:
		e.escFirst = b
		e.state = stateEscSeq
		return Result{}
	case stateEscSeq:
		e.state = stateNormal
		return e.escape(e.escFirst, b)
	}
	switch b {
	case '\r':
		return e.enter()
	case '\b':
		return e.backspace()
	case 0x1b:
		e.state = stateEsc
		return Result{}
	default:
		return e.insert(b)
	}
}

func (e *Editor) insert(b byte) Result {
	cur := &e.lines[e.idx]
	if cur.len >= MaxLine-1 {
		// Line is full. Do not echo, do not store.
		return Result{}
	}
	cur.buf[e.cursor] = b
	e.cursor++
	if e.cursor > cur.len {
		cur.len = e.cursor
	}
	return Result{Echo: []byte{b}}
}

func (e *Editor) enter() Result {
	cur := &e.lines[e.idx]
	res := Result{Echo: []byte("\r\n"), Submitted: true}
	if cur.len == 0 {
		// Blank submissions do not consume a history slot.
		cur.len = emptyLine
		return res
	}
	res.Line = string(cur.buf[:cur.len])
	e.idx = e.next(e.idx)
	return res
}

func (e *Editor) backspace() Result {
	cur := &e.lines[e.idx]
	// Only effective at the tail of the line; there is no mid-line
	// delete.
	if e.cursor != cur.len || e.cursor == 0 {
		return Result{}
	}
	e.cursor--
	cur.len--
	return Result{Echo: []byte("\b \b")}
}

func (e *Editor) escape(first, second byte) Result {
	if first != '[' {
		// Not a sequence we understand; hand the bytes back to the
		// terminal untouched.
		return Result{Echo: []byte{first, second}}
	}
	cur := &e.lines[e.idx]
	switch second {
	case 'A': // up
		e.idx = e.prev(e.idx)
		if e.lines[e.idx].len == emptyLine {
			e.idx = e.next(e.idx)
			return Result{}
		}
		return e.recall()
	case 'B': // down
		e.idx = e.next(e.idx)
		if e.lines[e.idx].len == emptyLine {
			e.idx = e.prev(e.idx)
			return Result{}
		}
		return e.recall()
	case 'C': // right
		if e.cursor != cur.len {
			e.cursor++
			return Result{Echo: []byte{0x1b, '[', 'C'}}
		}
	case 'D': // left
		if e.cursor != 0 {
			e.cursor--
			return Result{Echo: []byte{0x1b, '[', 'D'}}
		}
	}
	return Result{}
}

// recall redraws the terminal line with the newly selected history
// entry: clear line, carriage return, prompt, content.
func (e *Editor) recall() Result {
	cur := &e.lines[e.idx]
	e.cursor = cur.len
	echo := make([]byte, 0, 5+len(Prompt)+cur.len)
	echo = append(echo, []byte("\x1b[2K\r")...)
	echo = append(echo, []byte(Prompt)...)
	echo = append(echo, cur.buf[:cur.len]...)
	return Result{Echo: echo}
}
