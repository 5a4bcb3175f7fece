// Package annotate draws detection boxes and labels onto frames and encodes
// the result as JPEG.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/tphakala/fallwatch/internal/inference"
)

// DefaultQuality is the JPEG quality of live frames and snapshots.
const DefaultQuality = 75

const (
	lineWidth   = 2
	labelOffset = 8
)

var (
	// FallColor outlines fall detections.
	FallColor = color.RGBA{R: 255, A: 255}
	// OtherColor outlines every other class.
	OtherColor = color.RGBA{G: 255, A: 255}
)

// ColorFor returns the outline color for a class.
func ColorFor(class string) color.RGBA {
	if inference.IsFall(class) {
		return FallColor
	}
	return OtherColor
}

// Label formats the text drawn above a detection, e.g. "fall 0.87".
func Label(d inference.Detection) string {
	return fmt.Sprintf("%s %.2f", d.Class, d.Confidence)
}

// Draw returns a copy of img with a rectangle and label for each detection.
// img is not modified.
func Draw(img image.Image, dets []inference.Detection) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	for _, d := range dets {
		c := ColorFor(d.Class)
		rect := image.Rect(int(d.BBox[0]), int(d.BBox[1]), int(d.BBox[2]), int(d.BBox[3]))
		drawRect(dst, rect, c, lineWidth)

		// below the top edge when the label would leave the frame
		pt := image.Pt(rect.Min.X, rect.Min.Y-labelOffset)
		if pt.Y < basicfont.Face7x13.Ascent {
			pt.Y = rect.Min.Y + basicfont.Face7x13.Ascent + lineWidth
		}
		drawLabel(dst, Label(d), pt, c)
	}
	return dst
}

// drawRect outlines r with a border of width pixels, clipped to dst.
func drawRect(dst *image.RGBA, r image.Rectangle, c color.Color, width int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawLabel writes text with its baseline starting at pt.
func drawLabel(dst *image.RGBA, text string, pt image.Point, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(pt.X, pt.Y),
	}
	d.DrawString(text)
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}
