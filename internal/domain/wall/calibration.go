// Package wall maps between the coordinate systems of the study room: the
// body tracker's camera space, the wall's metric space and the display's
// pixel grid. The mappings are linear with fixed calibration coefficients.
package wall

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Range maps [From0, From1] linearly onto [To0, To1].
type Range struct {
	From0, From1 float64
	To0, To1     float64
}

// Map applies the mapping to v.
func (r Range) Map(v float64) float64 {
	return (v-r.From0)*(r.To1-r.To0)/(r.From1-r.From0) + r.To0
}

// Scale is the length ratio of the mapping, ignoring its offset.
func (r Range) Scale() float64 {
	return (r.To1 - r.To0) / (r.From1 - r.From0)
}

// Inverse swaps source and target.
func (r Range) Inverse() Range {
	return Range{From0: r.To0, From1: r.To1, To0: r.From0, To1: r.From1}
}

// Calibration holds the coefficients of one room setup.
type Calibration struct {
	// Camera to wall metres, per axis.
	CameraX, CameraY, CameraZ Range
	// Wall metres to display pixels.
	PixelX, PixelY Range
	// Display height in pixels.
	Height int
}

// DefaultCalibration is the setup of the 4.8 m wide, 8K display wall.
func DefaultCalibration() Calibration {
	return Calibration{
		CameraX: Range{From0: 2.116, From1: -1.709, To0: 0.215, To1: 4.295},
		CameraY: Range{From0: -0.694, From1: 0.073, To0: 1.01, To1: 1.725},
		CameraZ: Range{From0: 3.890, From1: 1.805, To0: 0.885, To1: 3.025},
		PixelX:  Range{From0: 0, From1: 4.8, To0: 0, To1: 7680},
		PixelY:  Range{From0: 1.08, From1: 1.77, To0: 2160, To1: 1080},
		Height:  3240,
	}
}

// CameraToWall converts a tracker position to wall metres.
func (c Calibration) CameraToWall(p r3.Vec) r3.Vec {
	return r3.Vec{X: c.CameraX.Map(p.X), Y: c.CameraY.Map(p.Y), Z: c.CameraZ.Map(p.Z)}
}

// WallToCamera is the inverse of CameraToWall.
func (c Calibration) WallToCamera(p r3.Vec) r3.Vec {
	return r3.Vec{X: c.CameraX.Inverse().Map(p.X), Y: c.CameraY.Inverse().Map(p.Y), Z: c.CameraZ.Inverse().Map(p.Z)}
}

// WallToPixel projects a wall position onto the display.
func (c Calibration) WallToPixel(x, y float64) (float64, float64) {
	return c.PixelX.Map(x), c.PixelY.Map(y)
}

// PixelToWall maps a display pixel to wall metres on the wall plane (z = 0).
func (c Calibration) PixelToWall(px, py float64) r3.Vec {
	return r3.Vec{X: c.PixelX.Inverse().Map(px), Y: c.PixelY.Inverse().Map(py)}
}

// LengthToPixels converts a metric length on the wall to pixel extents.
// The y extent is positive even though the pixel y axis points down.
func (c Calibration) LengthToPixels(m float64) (float64, float64) {
	sx, sy := c.PixelX.Scale(), c.PixelY.Scale()
	if sy < 0 {
		sy = -sy
	}
	return m * sx, m * sy
}
