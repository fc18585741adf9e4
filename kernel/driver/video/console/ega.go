package console

import "strings"

var (
	clearAttr = MakeAttr(LightGrey, Black)
	clearChar = byte(' ')
)

// Ega implements an EGA-compatible text console. Each cell of the
// framebuffer holds a character in the low byte and its attribute in the
// high byte.
type Ega struct {
	width  uint16
	height uint16

	fb []uint16
}

// NewEga returns a cleared console with its own framebuffer.
func NewEga(width, height uint16) *Ega {
	cons := &Ega{}
	cons.Init(width, height, make([]uint16, int(width)*int(height)))
	cons.Clear(0, 0, width, height)
	return cons
}

// Init sets up the console to render into fb which must hold at least
// width*height cells.
func (cons *Ega) Init(width, height uint16, fb []uint16) {
	cons.width = width
	cons.height = height
	cons.fb = fb[:int(width)*int(height)]
}

// Clear clears the specified rectangular region
func (cons *Ega) Clear(x, y, width, height uint16) {
	var (
		clr                  = uint16(clearAttr)<<8 | uint16(clearChar)
		rowOffset, colOffset int
	)

	// clip rectangle
	if x >= cons.width {
		x = cons.width
	}
	if y >= cons.height {
		y = cons.height
	}

	if x+width > cons.width {
		width = cons.width - x
	}
	if y+height > cons.height {
		height = cons.height - y
	}

	rowOffset = int(y)*int(cons.width) + int(x)
	for ; height > 0; height, rowOffset = height-1, rowOffset+int(cons.width) {
		for colOffset = rowOffset; colOffset < rowOffset+int(width); colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// Dimensions returns the console width and height in characters.
func (cons *Ega) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// Scroll a particular number of lines to the specified direction. The
// lines that scroll into view keep their previous contents; callers clear
// them.
func (cons *Ega) Scroll(dir ScrollDir, lines uint16) {
	if lines == 0 || lines > cons.height {
		return
	}

	offset := int(lines) * int(cons.width)
	switch dir {
	case Up:
		copy(cons.fb, cons.fb[offset:])
	case Down:
		copy(cons.fb[offset:], cons.fb)
	}
}

// Write a char to the specified location.
func (cons *Ega) Write(ch byte, attr Attr, x, y uint16) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.fb[int(y)*int(cons.width)+int(x)] = uint16(attr)<<8 | uint16(ch)
}

// Read returns the char and attribute stored at the specified location.
func (cons *Ega) Read(x, y uint16) (byte, Attr) {
	if x >= cons.width || y >= cons.height {
		return 0, 0
	}

	cell := cons.fb[int(y)*int(cons.width)+int(x)]
	return byte(cell), Attr(cell >> 8)
}

// Lines returns the text of every row with trailing blanks removed.
func (cons *Ega) Lines() []string {
	lines := make([]string, cons.height)
	row := make([]byte, cons.width)
	for y := uint16(0); y < cons.height; y++ {
		for x := uint16(0); x < cons.width; x++ {
			row[x], _ = cons.Read(x, y)
		}
		lines[y] = strings.TrimRight(string(row), " ")
	}
	return lines
}
