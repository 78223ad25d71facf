package dial

import (
	"math"

	"framepipe.klederson.com/internal/config"
)

// CellDistance computes the distance from a cell to the dial center,
// accounting for terminal aspect ratio.
func CellDistance(col, row, centerX, centerY int) float64 {
	dx := float64(col - centerX)
	dy := float64(row-centerY) / config.AspectRatio
	return math.Sqrt(dx*dx + dy*dy)
}

// CellAngle computes the angle from center to a cell.
// Returns radians in [0, 2π), where 0=north, increasing clockwise.
func CellAngle(col, row, centerX, centerY int) float64 {
	dx := float64(col - centerX)
	dy := float64(row-centerY) / config.AspectRatio
	angle := math.Atan2(dx, -dy)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	return angle
}

// SlotAngle places slot i of n around the dial, slot 0 at north.
func SlotAngle(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return NormalizeAngle(2 * math.Pi * float64(i) / float64(n))
}

// SlotCell returns the cell of slot i of n on a dial of the given radius.
func SlotCell(i, n, centerX, centerY int, radius float64) (col, row int) {
	a := SlotAngle(i, n)
	col = centerX + int(math.Round(radius*math.Sin(a)))
	row = centerY - int(math.Round(radius*math.Cos(a)*config.AspectRatio))
	return col, row
}

// RingChar returns the character for a ring cell at the given angle.
func RingChar(angle float64) rune {
	switch int(math.Round(NormalizeAngle(angle)/(math.Pi/4))) % 8 {
	case 0, 4:
		return '-'
	case 1, 5:
		return '/'
	case 2, 6:
		return '|'
	default:
		return '\\'
	}
}

// NormalizeAngle wraps an angle to [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// AngleDiff returns the shortest angular distance between two angles.
// Result is in [0, π].
func AngleDiff(a, b float64) float64 {
	d := math.Abs(NormalizeAngle(a) - NormalizeAngle(b))
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}
