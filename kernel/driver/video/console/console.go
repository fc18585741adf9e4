// Package console provides character consoles that render text into a
// framebuffer of character/attribute cells.
package console

// Attr defines a color attribute. The low nibble selects the foreground and
// the high nibble the background color.
type Attr uint16

// The set of attributes that can be passed to Write().
const (
	Black Attr = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	Grey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

// MakeAttr combines a foreground and background color.
func MakeAttr(fg, bg Attr) Attr {
	return (bg << 4) | (fg & 0xf)
}

// ScrollDir defines a scroll direction.
type ScrollDir uint8

// The supported list of scroll directions for the console Scroll() calls.
const (
	Up ScrollDir = iota
	Down
)

const (
	// TextFramebufferAddr is the physical address of the VGA text mode
	// framebuffer. The bring-up identity maps the page that contains it.
	TextFramebufferAddr = 0xb8000

	// TextWidth and TextHeight are the dimensions of the VGA text mode
	// used by the kernel console.
	TextWidth  = 80
	TextHeight = 25
)

// The Console interface is implemented by objects that can function as physical consoles.
type Console interface {
	// Dimensions returns the width and height of the console in characters.
	Dimensions() (uint16, uint16)

	// Clear clears the specified rectangular region
	Clear(x, y, width, height uint16)

	// Scroll a particular number of lines to the specified direction.
	Scroll(dir ScrollDir, lines uint16)

	// Write a char to the specified location.
	Write(ch byte, attr Attr, x, y uint16)
}
