package pptx

// EMU is an English Metric Unit, the native length unit of the
// presentation format: 914400 per inch, 12700 per point.
type EMU int64

// Unit conversion constants.
const (
	EMUPerInch  EMU = 914400
	EMUPerPoint EMU = 12700
)

// Inches converts inches to EMU.
func Inches(v float64) EMU { return EMU(v * float64(EMUPerInch)) }

// Points converts typographic points to EMU.
func Points(v float64) EMU { return EMU(v * float64(EMUPerPoint)) }

// FromPixels converts a pixel length at the given raster DPI to EMU.
func FromPixels(px, dpi int) EMU {
	if dpi <= 0 {
		dpi = 96
	}
	return EMU(int64(px) * int64(EMUPerInch) / int64(dpi))
}

// Rect is a shape frame: offset plus extent.
type Rect struct {
	X, Y, W, H EMU
}

// FitInto scales a w x h box to fit within bound preserving aspect ratio,
// and centers it inside the bound. The tighter axis is the binding
// constraint; the box is scaled up or down as needed.
func FitInto(w, h EMU, bound Rect) Rect {
	if w <= 0 || h <= 0 || bound.W <= 0 || bound.H <= 0 {
		return Rect{X: bound.X, Y: bound.Y}
	}

	// Compare w/h against bound.W/bound.H without floats.
	var fw, fh EMU
	if w*bound.H >= h*bound.W {
		// Width binds.
		fw = bound.W
		fh = EMU(int64(h) * int64(bound.W) / int64(w))
	} else {
		// Height binds.
		fh = bound.H
		fw = EMU(int64(w) * int64(bound.H) / int64(h))
	}

	return Rect{
		X: bound.X + (bound.W-fw)/2,
		Y: bound.Y + (bound.H-fh)/2,
		W: fw,
		H: fh,
	}
}
