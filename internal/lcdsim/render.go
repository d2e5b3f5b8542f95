/*
Copyright 2024 Tim St. Pierre
Terminal and image output of the simulated display
*/
package lcdsim

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/maruel/ansi256"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
)

var (
	// Backlight is the bezel and background color.
	Backlight = color.NRGBA{R: 0x1e, G: 0x50, B: 0xe6, A: 0xff}
	// Ink is the color of lit character cells in snapshots.
	Ink = color.NRGBA{R: 0xf0, G: 0xf8, B: 0xff, A: 0xff}
)

// Render writes the visible window to w, framed by a bezel drawn with p. A nil
// palette uses ansi256.Default.
func (b *Bus) Render(w io.Writer, p *ansi256.Palette) error {
	if p == nil {
		p = ansi256.Default
	}
	bezel := p.Block(Backlight)
	lines := b.Lines()

	var buf bytes.Buffer
	edge := strings.Repeat(bezel, Cols+2)
	buf.WriteString("\033[0m")
	buf.WriteString(edge)
	buf.WriteString("\033[0m\n")
	for _, l := range lines {
		buf.WriteString(bezel)
		buf.WriteString("\033[0m")
		buf.WriteString(printable(l))
		buf.WriteString(bezel)
		buf.WriteString("\033[0m\n")
	}
	buf.WriteString(edge)
	buf.WriteString("\033[0m\n")
	_, err := buf.WriteTo(w)
	return err
}

// Image draws the visible window as a bitmap.
func (b *Bus) Image(size float64) (image.Image, error) {
	f, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, err
	}
	face := truetype.NewFace(f, &truetype.Options{Size: size})
	defer face.Close()

	m := face.Metrics()
	cellW := font.MeasureString(face, "M").Ceil()
	cellH := m.Height.Ceil()
	margin := cellH / 2
	dc := gg.NewContext(2*margin+Cols*cellW, 2*margin+Rows*cellH)
	dc.SetColor(Backlight)
	dc.Clear()
	dc.SetFontFace(face)
	dc.SetColor(Ink)
	for r, l := range b.Lines() {
		baseline := margin + r*cellH + m.Ascent.Ceil()
		dc.DrawString(printable(l), float64(margin), float64(baseline))
	}
	return dc.Image(), nil
}

// Snapshot saves the visible window as a PNG file.
func (b *Bus) Snapshot(path string, size float64) error {
	img, err := b.Image(size)
	if err != nil {
		return err
	}
	return gg.SavePNG(path, img)
}

// printable pads an off display to full width and hides characters that only
// exist in the controller's ROM.
func printable(l string) string {
	if l == "" {
		return strings.Repeat(" ", Cols)
	}
	out := []byte(l)
	for i, c := range out {
		if c < 0x20 || c > 0x7e {
			out[i] = '?'
		}
	}
	return string(out)
}
