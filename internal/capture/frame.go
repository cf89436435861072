package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const jpegQuality = 90

// Downscale shrinks img by factor (0 < factor < 1). Other factors return img unchanged.
func Downscale(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor >= 1 {
		return img
	}
	bounds := img.Bounds()
	w := max(1, int(float64(bounds.Dx())*factor))
	h := max(1, int(float64(bounds.Dy())*factor))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// EncodeJPEG encodes img for the face service.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Label is an annotation drawn on a preview frame.
type Label struct {
	Rect image.Rectangle
	Text string
}

var (
	boxColor  = color.RGBA{0, 255, 0, 255}
	textColor = color.RGBA{255, 0, 0, 255}
)

// Annotate returns a copy of img with a box and caption per label.
func Annotate(img image.Image, labels []Label) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	for _, l := range labels {
		r := l.Rect.Intersect(bounds)
		if r.Empty() {
			continue
		}
		for w := range 2 {
			drawHLine(dst, r.Min.X, r.Max.X-1, r.Min.Y+w, boxColor)
			drawHLine(dst, r.Min.X, r.Max.X-1, r.Max.Y-1-w, boxColor)
			drawVLine(dst, r.Min.Y, r.Max.Y-1, r.Min.X+w, boxColor)
			drawVLine(dst, r.Min.Y, r.Max.Y-1, r.Max.X-1-w, boxColor)
		}
		if l.Text != "" {
			y := max(r.Min.Y-4, basicfont.Face7x13.Ascent)
			d := &font.Drawer{
				Dst:  dst,
				Src:  image.NewUniform(textColor),
				Face: basicfont.Face7x13,
				Dot:  fixed.P(r.Min.X, y),
			}
			d.DrawString(l.Text)
		}
	}
	return dst
}

// drawHLine draws a horizontal line on the image.
func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	b := dst.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := max(x1, b.Min.X); x <= x2 && x < b.Max.X; x++ {
		dst.SetRGBA(x, y, c)
	}
}

// drawVLine draws a vertical line on the image.
func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	b := dst.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := max(y1, b.Min.Y); y <= y2 && y < b.Max.Y; y++ {
		dst.SetRGBA(x, y, c)
	}
}
