// Package display implements the CHIP-8 monochrome display surface.
// The surface is a 64x32 grid of on/off pixels which only changes through
// Clear and the XOR based DrawPixel. A NRGBA picture mirrors the grid
// so hosts can present it without knowing the internal layout.
package display

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
)

const (
	Width  = 64
	Height = 32
)

var (
	kOn  = color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF}
	kOff = color.NRGBA{0x00, 0x00, 0x00, 0xFF}
)

// Def defines the optional pieces of a Display.
type Def struct {
	// FrameDone if non-nil is called from Frame() whenever the picture changed
	// since the last call.
	FrameDone func(*image.NRGBA)
	// On and Off override the default white on black colors.
	On  *color.NRGBA
	Off *color.NRGBA
}

// Display holds the pixel grid. Pixel (x, y) is at index y*Width+x.
type Display struct {
	pixels    [Width * Height]bool
	picture   *image.NRGBA
	dirty     bool
	on        color.NRGBA
	off       color.NRGBA
	frameDone func(*image.NRGBA)
}

// Init returns a cleared display.
func Init(def *Def) (*Display, error) {
	if def == nil {
		def = &Def{}
	}
	d := &Display{
		picture:   image.NewNRGBA(image.Rect(0, 0, Width, Height)),
		on:        kOn,
		off:       kOff,
		frameDone: def.FrameDone,
	}
	if def.On != nil {
		d.on = *def.On
	}
	if def.Off != nil {
		d.off = *def.Off
	}
	d.Clear()
	return d, nil
}

// Clear turns every pixel off.
func (d *Display) Clear() {
	for i := range d.pixels {
		d.pixels[i] = false
	}
	draw.Draw(d.picture, d.picture.Bounds(), image.NewUniform(d.off), image.Point{}, draw.Src)
	d.dirty = true
}

// DrawPixel XOR toggles the pixel at (x, y) and returns true if this turned
// a lit pixel off (a collision). Coordinates past the edge wrap around on
// both axes.
func (d *Display) DrawPixel(x, y int) bool {
	x %= Width
	if x < 0 {
		x += Width
	}
	y %= Height
	if y < 0 {
		y += Height
	}
	i := y*Width + x
	was := d.pixels[i]
	d.pixels[i] = !was
	c := d.on
	if was {
		c = d.off
	}
	d.picture.SetNRGBA(x, y, c)
	d.dirty = true
	return was
}

// Pixel returns whether (x, y) is lit. Out of range coordinates are false.
func (d *Display) Pixel(x, y int) bool {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return false
	}
	return d.pixels[y*Width+x]
}

// Pixels returns a copy of the full grid in row major order.
func (d *Display) Pixels() [Width * Height]bool {
	return d.pixels
}

// Picture returns the current rendered picture. Callers must treat it as read-only
// and shouldn't hold onto it across steps.
func (d *Display) Picture() *image.NRGBA {
	return d.picture
}

// Render scales the current picture to fill dst using nearest neighbor so pixels stay square edged.
func (d *Display) Render(dst draw.Image) {
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), d.picture, d.picture.Bounds(), draw.Src, nil)
}

// Frame marks a frame boundary. If anything changed since the previous boundary
// the FrameDone callback (if any) gets the picture. Returns whether it was dirty.
func (d *Display) Frame() bool {
	if !d.dirty {
		return false
	}
	d.dirty = false
	if d.frameDone != nil {
		d.frameDone(d.picture)
	}
	return true
}

// String renders the grid as rows of 0/1 characters.
func (d *Display) String() string {
	var b strings.Builder
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if d.pixels[y*Width+x] {
				b.WriteByte('1')
				continue
			}
			b.WriteByte('0')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
