package tty

import (
	"gopher386/kernel/driver/video/console"
	"gopher386/kernel/sync"
)

const (
	defaultFg = console.LightGrey
	defaultBg = console.Black
	tabWidth  = 4
)

// Vt implements a simple terminal that can process LF, CR, BS and TAB
// characters. The terminal uses a console device for its output and
// scrolls its contents up when the cursor moves past the last line.
type Vt struct {
	lock sync.Spinlock
	cons console.Console

	width  uint16
	height uint16

	curX    uint16
	curY    uint16
	curAttr console.Attr
}

// AttachTo links the terminal with the specified console device and moves
// the cursor to the top left corner.
func (t *Vt) AttachTo(cons console.Console) {
	t.cons = cons
	t.width, t.height = cons.Dimensions()
	t.curX = 0
	t.curY = 0

	// Default to lightgrey on black text.
	t.curAttr = console.MakeAttr(defaultFg, defaultBg)
}

// Dimensions returns the terminal width and height in characters.
func (t *Vt) Dimensions() (uint16, uint16) {
	return t.width, t.height
}

// Clear clears the terminal.
func (t *Vt) Clear() {
	t.lock.Acquire()
	defer t.lock.Release()

	t.cons.Clear(0, 0, t.width, t.height)
}

// Position returns the current cursor position (x, y).
func (t *Vt) Position() (uint16, uint16) {
	t.lock.Acquire()
	defer t.lock.Release()

	return t.curX, t.curY
}

// SetPosition sets the current cursor position to (x,y).
func (t *Vt) SetPosition(x, y uint16) {
	t.lock.Acquire()
	defer t.lock.Release()

	if x >= t.width {
		x = t.width - 1
	}

	if y >= t.height {
		y = t.height - 1
	}

	t.curX, t.curY = x, y
}

// Write implements io.Writer.
func (t *Vt) Write(data []byte) (int, error) {
	t.lock.Acquire()
	defer t.lock.Release()

	for _, b := range data {
		t.putc(b)
	}

	return len(data), nil
}

// Putc writes a single character at the cursor position. It matches the
// put-character callback expected by kfmt.PutcWriter.
func (t *Vt) Putc(ch byte) {
	t.lock.Acquire()
	t.putc(ch)
	t.lock.Release()
}

func (t *Vt) putc(ch byte) {
	switch ch {
	case '\r':
		t.curX = 0
	case '\n':
		t.curX = 0
		t.lf()
	case '\b':
		if t.curX > 0 {
			t.curX--
		}
	case '\t':
		for i := 0; i < tabWidth; i++ {
			t.emit(' ')
		}
	default:
		t.emit(ch)
	}
}

func (t *Vt) emit(ch byte) {
	t.cons.Write(ch, t.curAttr, t.curX, t.curY)
	t.curX++
	if t.curX == t.width {
		t.curX = 0
		t.lf()
	}
}

// lf advances the y coordinate of the terminal cursor by one line scrolling
// the terminal contents if the end of the last terminal line is reached.
func (t *Vt) lf() {
	if t.curY+1 < t.height {
		t.curY++
		return
	}

	t.cons.Scroll(console.Up, 1)
	t.cons.Clear(0, t.height-1, t.width, 1)
}
