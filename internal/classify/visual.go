package classify

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	maxInspectEdge   = 512
	edgeThreshold    = 48
	minLineLength    = 10
	lineLengthFactor = 4
)

// visualReport summarises a decoded thumbnail.
type visualReport struct {
	Width    int
	Height   int
	Lines    int
	Dominant float64
}

// inspectThumbnail decodes data and measures edge lines and histogram dominance.
func inspectThumbnail(data []byte) (visualReport, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return visualReport{}, fmt.Errorf("decode thumbnail: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return visualReport{}, fmt.Errorf("decode thumbnail: empty %s image", format)
	}
	gray := toGray(downscale(img))
	return visualReport{
		Width:    gray.Bounds().Dx(),
		Height:   gray.Bounds().Dy(),
		Lines:    countLines(gray),
		Dominant: dominantShare(gray),
	}, nil
}

func downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxInspectEdge && h <= maxInspectEdge {
		return img
	}
	if w >= h {
		h = max(1, h*maxInspectEdge/w)
		w = maxInspectEdge
	} else {
		w = max(1, w*maxInspectEdge/h)
		h = maxInspectEdge
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

// countLines counts rows and columns holding an uninterrupted run of strong
// gradient at least a quarter of the image long.
func countLines(g *image.Gray) int {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	at := func(x, y int) int { return int(g.Pix[y*g.Stride+x]) }

	lines := 0
	minH := max(minLineLength, w/lineLengthFactor)
	for y := 0; y+1 < h; y++ {
		run := 0
		for x := 0; x < w; x++ {
			if abs(at(x, y)-at(x, y+1)) > edgeThreshold {
				run++
				if run == minH {
					lines++
				}
				continue
			}
			run = 0
		}
	}
	minV := max(minLineLength, h/lineLengthFactor)
	for x := 0; x+1 < w; x++ {
		run := 0
		for y := 0; y < h; y++ {
			if abs(at(x, y)-at(x+1, y)) > edgeThreshold {
				run++
				if run == minV {
					lines++
				}
				continue
			}
			run = 0
		}
	}
	return lines
}

func dominantShare(g *image.Gray) float64 {
	var hist [256]int
	total := 0
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for _, v := range row {
			hist[v]++
		}
		total += w
	}
	if total == 0 {
		return 0
	}
	peak := 0
	for _, c := range hist {
		peak = max(peak, c)
	}
	return float64(peak) / float64(total)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
