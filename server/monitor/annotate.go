package monitor

import (
	"fmt"
	"image"

	"github.com/bmharper/cimg/v2"
	"github.com/fogleman/gg"
	"github.com/poseguard/poseguard/server/classify"
)

// annotate draws the classification verdict onto a copy of the frame:
// "<label>: <confidence%>", red for an unwanted pose, green otherwise.
// The input image is not modified.
func annotate(img *cimg.Image, result classify.Result, unwanted bool) *cimg.Image {
	rgba := rgbToRGBA(img)
	dc := gg.NewContextForRGBA(rgba)

	text := fmt.Sprintf("%v: %.0f%%", result.Label, result.Confidence*100)
	w, h := dc.MeasureString(text)
	pad := 6.0

	// Backing box so the text stays readable on any background
	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawRectangle(0, 0, w+2*pad, h+2*pad)
	dc.Fill()

	if unwanted {
		dc.SetRGB(1, 0.2, 0.2)
	} else {
		dc.SetRGB(0.2, 1, 0.2)
	}
	dc.DrawString(text, pad, pad+h)

	return rgbaToRGB(rgba)
}

func rgbToRGBA(img *cimg.Image) *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride:]
		dst := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < img.Width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 255
		}
	}
	return rgba
}

func rgbaToRGB(rgba *image.RGBA) *cimg.Image {
	width := rgba.Rect.Dx()
	height := rgba.Rect.Dy()
	img := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	for y := 0; y < height; y++ {
		src := rgba.Pix[y*rgba.Stride:]
		dst := img.Pixels[y*img.Stride:]
		for x := 0; x < width; x++ {
			dst[x*3] = src[x*4]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return img
}
