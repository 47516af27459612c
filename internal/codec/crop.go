package codec

import (
	"image"
	"image/draw"
)

// borderThreshold is the per-channel difference (0-255) from the background
// colour above which a pixel counts as content.
const borderThreshold = 100

// CropBorders trims uniform margins whose colour matches the top-left pixel.
// A page that is entirely background is returned unchanged.
func CropBorders(img image.Image) image.Image {
	b := img.Bounds()
	if b.Empty() {
		return img
	}
	br, bg, bb, _ := img.At(b.Min.X, b.Min.Y).RGBA()

	content := func(x, y int) bool {
		r, g, bl, _ := img.At(x, y).RGBA()
		return channelDiff(r, br) > borderThreshold ||
			channelDiff(g, bg) > borderThreshold ||
			channelDiff(bl, bb) > borderThreshold
	}

	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !content(x, y) {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return img
	}

	rect := image.Rect(minX, minY, maxX+1, maxY+1)
	if rect == b {
		return img
	}
	if s, ok := img.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return s.SubImage(rect)
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out
}

// channelDiff compares two 16-bit channels on the 8-bit scale.
func channelDiff(a, b uint32) uint32 {
	a, b = a>>8, b>>8
	if a > b {
		return a - b
	}
	return b - a
}
