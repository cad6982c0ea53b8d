// Package render turns captured frames into lightweight previews.
package render

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

// OverlayLayout is the timestamp drawn on every preview.
const OverlayLayout = "2006-01-02 15:04:05"

// Previewer scales a JPEG frame down, stamps its capture time and re-encodes it.
type Previewer struct {
	width   int
	quality int
}

// NewPreviewer returns a Previewer producing images at most width pixels wide
// (0 keeps the source width) at the given JPEG quality.
func NewPreviewer(width, quality int) *Previewer {
	return &Previewer{width: width, quality: quality}
}

// Preview renders the preview of frame captured at at.
func (p *Previewer) Preview(frame []byte, persons int, at time.Time) ([]byte, error) {
	mat, err := gocv.IMDecode(frame, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded frame is empty")
	}

	out := mat
	if p.width > 0 && mat.Cols() > p.width {
		resized := gocv.NewMat()
		defer resized.Close()

		height := mat.Rows() * p.width / mat.Cols()
		if err := gocv.Resize(mat, &resized, image.Pt(p.width, height), 0, 0, gocv.InterpolationArea); err != nil {
			return nil, fmt.Errorf("failed to resize frame: %w", err)
		}
		out = resized
	}

	label := fmt.Sprintf("%s  persons: %d", at.Format(OverlayLayout), persons)
	origin := image.Pt(10, 30)
	// Outline, then fill.
	if err := gocv.PutText(&out, label, origin, gocv.FontHersheySimplex, 0.7, color.RGBA{0, 0, 0, 255}, 4); err != nil {
		return nil, fmt.Errorf("failed to draw text: %w", err)
	}
	if err := gocv.PutText(&out, label, origin, gocv.FontHersheySimplex, 0.7, color.RGBA{255, 255, 255, 255}, 2); err != nil {
		return nil, fmt.Errorf("failed to draw text: %w", err)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{gocv.IMWriteJpegQuality, p.quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	defer buf.Close()

	preview := make([]byte, len(buf.GetBytes()))
	copy(preview, buf.GetBytes())
	return preview, nil
}
