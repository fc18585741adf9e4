package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEgaInit(t *testing.T) {
	cons := NewEga(TextWidth, TextHeight)

	if w, h := cons.Dimensions(); w != TextWidth || h != TextHeight {
		t.Fatalf("expected console dimensions to be (%d, %d); got (%d, %d)", TextWidth, TextHeight, w, h)
	}

	ch, attr := cons.Read(0, 0)
	assert.Equal(t, byte(' '), ch)
	assert.Equal(t, MakeAttr(LightGrey, Black), attr)
	assert.Equal(t, Attr(0x07), attr)
}

func TestEgaClear(t *testing.T) {
	specs := []struct {
		// Input rect
		x, y, w, h uint16

		// Expected area to be cleared
		expX, expY, expW, expH uint16
	}{
		{
			0, 0, 500, 500,
			0, 0, 80, 25,
		},
		{
			10, 10, 11, 50,
			10, 10, 11, 15,
		},
		{
			10, 10, 110, 1,
			10, 10, 70, 1,
		},
		{
			70, 20, 20, 20,
			70, 20, 10, 5,
		},
		{
			90, 25, 20, 20,
			0, 0, 0, 0,
		},
		{
			12, 12, 5, 6,
			12, 12, 5, 6,
		},
	}

	fb := make([]uint16, 80*25)
	var cons Ega
	cons.Init(80, 25, fb)

	testPat := uint16(0xDEAD)
	clearPat := uint16(clearAttr)<<8 | uint16(clearChar)

nextSpec:
	for specIndex, spec := range specs {
		for i := range fb {
			fb[i] = testPat
		}

		cons.Clear(spec.x, spec.y, spec.w, spec.h)

		var x, y uint16
		for y = 0; y < cons.height; y++ {
			for x = 0; x < cons.width; x++ {
				fbVal := fb[int(y)*int(cons.width)+int(x)]

				if x < spec.expX || y < spec.expY || x >= spec.expX+spec.expW || y >= spec.expY+spec.expH {
					if fbVal != testPat {
						t.Errorf("[spec %d] expected char at (%d, %d) not to be cleared", specIndex, x, y)
						continue nextSpec
					}
				} else if fbVal != clearPat {
					t.Errorf("[spec %d] expected char at (%d, %d) to be cleared", specIndex, x, y)
					continue nextSpec
				}
			}
		}
	}
}

func TestEgaScroll(t *testing.T) {
	cons := NewEga(4, 3)
	for y, row := range []string{"aaaa", "bbbb", "cccc"} {
		for x := range row {
			cons.Write(row[x], White, uint16(x), uint16(y))
		}
	}

	cons.Scroll(Up, 1)
	assert.Equal(t, []string{"bbbb", "cccc", "cccc"}, cons.Lines())

	cons.Scroll(Down, 2)
	assert.Equal(t, []string{"bbbb", "cccc", "bbbb"}, cons.Lines())

	// Out of range requests are ignored.
	cons.Scroll(Up, 0)
	cons.Scroll(Up, 4)
	assert.Equal(t, []string{"bbbb", "cccc", "bbbb"}, cons.Lines())
}

func TestEgaWriteAndRead(t *testing.T) {
	cons := NewEga(TextWidth, TextHeight)
	attr := MakeAttr(White, Blue)

	cons.Write('!', attr, 79, 24)
	cons.Write('?', attr, 80, 0)
	cons.Write('?', attr, 0, 25)

	ch, gotAttr := cons.Read(79, 24)
	assert.Equal(t, byte('!'), ch)
	assert.Equal(t, Attr(0x1f), gotAttr)

	ch, gotAttr = cons.Read(80, 0)
	assert.Zero(t, ch)
	assert.Zero(t, gotAttr)

	lines := cons.Lines()
	assert.Len(t, lines, TextHeight)
	assert.Equal(t, "", lines[0])
	assert.Len(t, lines[24], 80)
}
