package inference

import (
	"image"

	"github.com/disintegration/imaging"
)

// resizeSquare stretches img to size x size.
func resizeSquare(img image.Image, size int) *image.NRGBA {
	return imaging.Resize(img, size, size, imaging.Linear)
}

// fillCHW writes planar RGB scaled to [0, 1] into dst, which must hold
// 3*size*size values.
func fillCHW(dst []float32, img *image.NRGBA, size int) {
	plane := size * size
	for y := range size {
		row := img.Pix[y*img.Stride:]
		for x := range size {
			i := y*size + x
			p := row[x*4:]
			dst[i] = float32(p[0]) / 255
			dst[plane+i] = float32(p[1]) / 255
			dst[2*plane+i] = float32(p[2]) / 255
		}
	}
}

// fillHWC writes interleaved RGB scaled to [0, 1] into dst.
func fillHWC(dst []float32, img *image.NRGBA, size int) {
	for y := range size {
		row := img.Pix[y*img.Stride:]
		for x := range size {
			i := (y*size + x) * 3
			p := row[x*4:]
			dst[i] = float32(p[0]) / 255
			dst[i+1] = float32(p[1]) / 255
			dst[i+2] = float32(p[2]) / 255
		}
	}
}
