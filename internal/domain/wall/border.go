package wall

import (
	"github.com/okian/wallsync/internal/domain/model"
)

// Area is an axis aligned pixel rectangle.
type Area struct {
	MinX int `koanf:"min_x"`
	MinY int `koanf:"min_y"`
	MaxX int `koanf:"max_x"`
	MaxY int `koanf:"max_y"`
}

// containsOpen reports whether p lies strictly inside a.
func (a Area) containsOpen(p model.Pixel) bool {
	return a.MinX < p.X && p.X < a.MaxX && a.MinY < p.Y && p.Y < a.MaxY
}

// Borders describes the seams between the display tiles. Touches on a seam
// are artefacts of the touch frame and get ignored.
type Borders struct {
	// Margin widens every seam on both sides.
	Margin int `koanf:"margin"`
	// Vertical seams at these x positions.
	Vertical []int `koanf:"vertical"`
	// Horizontal seams at these y positions.
	Horizontal []int `koanf:"horizontal"`
	// Keep lists areas that stay valid even though they lie on a seam.
	Keep []Area `koanf:"keep"`
}

// DefaultBorders are the seams of the 4x3 tile wall.
func DefaultBorders() Borders {
	const margin = 10
	return Borders{
		Margin:     margin,
		Vertical:   []int{0, 1960, 3840, 5760, 7680},
		Horizontal: []int{0, 1080, 2160, 3240},
		Keep: []Area{
			{MinX: 3840 + margin, MinY: 2160 - margin, MaxX: 5760 - margin, MaxY: 2160 + margin},
		},
	}
}

// Excluded reports whether a touch at p lies on a seam and outside every
// kept area.
func (b Borders) Excluded(p model.Pixel) bool {
	onSeam := false
	for _, x := range b.Vertical {
		if x-b.Margin <= p.X && p.X <= x+b.Margin {
			onSeam = true
			break
		}
	}
	if !onSeam {
		for _, y := range b.Horizontal {
			if y-b.Margin <= p.Y && p.Y <= y+b.Margin {
				onSeam = true
				break
			}
		}
	}
	if !onSeam {
		return false
	}
	for _, a := range b.Keep {
		if a.containsOpen(p) {
			return false
		}
	}
	return true
}
