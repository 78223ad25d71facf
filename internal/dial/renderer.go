// Package dial renders the capture ring as a circular ASCII dial: one marker
// per slot, a sweep hand on the displayed slot and labels naming each slot's
// current owner.
package dial

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"framepipe.klederson.com/internal/config"
	"framepipe.klederson.com/internal/framebuf"
)

var (
	colorBright  = lipgloss.Color("#00FF41")
	colorMid     = lipgloss.Color("#008F11")
	colorDim     = lipgloss.Color("#004A0A")
	colorDisplay = lipgloss.Color("#00FFAA")
	colorCapture = lipgloss.Color("#FFCC00")

	styleCenter  = lipgloss.NewStyle().Foreground(colorBright).Bold(true)
	styleRing    = lipgloss.NewStyle().Foreground(colorMid)
	styleDot     = lipgloss.NewStyle().Foreground(colorDim)
	styleDisplay = lipgloss.NewStyle().Foreground(colorDisplay).Bold(true)
	styleCapture = lipgloss.NewStyle().Foreground(colorCapture).Bold(true)
	styleFree    = lipgloss.NewStyle().Foreground(colorMid)
	styleHot     = lipgloss.NewStyle().Foreground(colorBright).Bold(true)
)

// Role is what a slot is currently used for.
type Role int

const (
	RoleFree Role = iota
	RoleDisplay
	RoleCapture
)

// RoleOf classifies slot i under s.
func RoleOf(i int, s framebuf.State) Role {
	switch i {
	case s.Display:
		return RoleDisplay
	case s.Capture:
		return RoleCapture
	default:
		return RoleFree
	}
}

func (r Role) symbol() string {
	switch r {
	case RoleDisplay:
		return "D"
	case RoleCapture:
		return "C"
	default:
		return "o"
	}
}

func (r Role) style() lipgloss.Style {
	switch r {
	case RoleDisplay:
		return styleDisplay
	case RoleCapture:
		return styleCapture
	default:
		return styleFree
	}
}

type slotPos struct {
	col, row int
	role     Role
	label    string
	labelCol int
	labelRow int
}

// Render draws an n-slot ring in state s as a width x height block.
func Render(width, height int, s framebuf.State, n int, sweep *Sweep) string {
	if width < 10 || height < 5 || n <= 0 {
		return ""
	}

	centerX := width / 2
	centerY := height / 2
	radius := float64(min(centerX-1, int(float64(centerY-1)/config.AspectRatio)))
	if radius < 3 {
		radius = 3
	}

	ringRadii := make([]float64, config.DialRings)
	for i := range ringRadii {
		ringRadii[i] = radius * float64(i+1) / float64(config.DialRings)
	}

	sps := buildSlotPositions(s, n, centerX, centerY, radius, width)

	type labelCell struct {
		spIdx   int
		charIdx int
	}
	labelMap := make(map[int]labelCell)
	for i, sp := range sps {
		for ci := 0; ci < len(sp.label); ci++ {
			labelMap[sp.labelRow*width+sp.labelCol+ci] = labelCell{spIdx: i, charIdx: ci}
		}
	}

	var sb strings.Builder
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			if lc, ok := labelMap[row*width+col]; ok {
				sp := sps[lc.spIdx]
				sb.WriteString(sp.role.style().Render(string(sp.label[lc.charIdx])))
				continue
			}
			sb.WriteString(renderCell(col, row, centerX, centerY, radius, ringRadii, sweep, sps))
		}
		if row < height-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// buildSlotPositions places one marker per slot on the outer ring and finds
// a free spot for its label.
func buildSlotPositions(s framebuf.State, n, centerX, centerY int, radius float64, width int) []slotPos {
	sps := make([]slotPos, 0, n)

	type segment struct{ start, end int }
	occupied := make(map[int][]segment)
	overlaps := func(row, col, w int) bool {
		for _, seg := range occupied[row] {
			if col < seg.end && col+w > seg.start {
				return true
			}
		}
		return false
	}

	for i := 0; i < n; i++ {
		col, row := SlotCell(i, n, centerX, centerY, radius)
		role := RoleOf(i, s)
		label := slotLabel(i, role)

		lc := col + 2
		if SlotAngle(i, n) > math.Pi {
			lc = col - len(label) - 1
		}
		if lc+len(label) >= width {
			lc = width - len(label) - 1
		}
		if lc < 0 {
			lc = 0
		}

		lr := row
		for _, try := range []int{row, row + 1, row - 1} {
			lr = try
			if !overlaps(lr, lc, len(label)) {
				break
			}
			if try == row-1 {
				label = ""
			}
		}

		sps = append(sps, slotPos{col: col, row: row, role: role, label: label, labelCol: lc, labelRow: lr})
		occupied[row] = append(occupied[row], segment{col, col + 1})
		if label != "" {
			occupied[lr] = append(occupied[lr], segment{lc, lc + len(label)})
		}
	}
	return sps
}

func slotLabel(i int, r Role) string {
	switch r {
	case RoleDisplay:
		return fmt.Sprintf("disp#%d", i)
	case RoleCapture:
		return fmt.Sprintf("cap#%d", i)
	default:
		return fmt.Sprintf("#%d", i)
	}
}

func renderCell(col, row, centerX, centerY int, radius float64, ringRadii []float64, sweep *Sweep, sps []slotPos) string {
	for _, sp := range sps {
		if col == sp.col && row == sp.row {
			return sp.role.style().Render(sp.role.symbol())
		}
	}

	dist := CellDistance(col, row, centerX, centerY)
	angle := CellAngle(col, row, centerX, centerY)

	if dist > radius+0.5 {
		return " "
	}
	if col == centerX && row == centerY {
		return styleCenter.Render("+")
	}

	// hand toward the displayed slot
	if dist <= radius && AngleDiff(angle, sweep.Angle) < 0.5/math.Max(dist, 1) {
		return styleHot.Render("*")
	}

	for _, ringR := range ringRadii {
		if math.Abs(dist-ringR) < 0.8 {
			return renderSweepChar(RingChar(angle), sweep, angle)
		}
	}

	if dist <= radius {
		return renderInteriorCell(sweep, angle)
	}
	return " "
}

func renderSweepChar(ch rune, sweep *Sweep, angle float64) string {
	color := sweepColor(sweep.Intensity(angle))
	if color == "" {
		return styleRing.Render(string(ch))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(string(ch))
}

func renderInteriorCell(sweep *Sweep, angle float64) string {
	color := sweepColor(sweep.Intensity(angle))
	if color == "" {
		return styleDot.Render(".")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(".")
}

func sweepColor(intensity float64) string {
	switch {
	case intensity <= 0:
		return ""
	case intensity > 0.8:
		return "#00FF41"
	case intensity > 0.5:
		return "#00CC33"
	case intensity > 0.3:
		return "#00AA22"
	default:
		return "#005511"
	}
}

// RenderLegend produces the dial legend line.
func RenderLegend(width int) string {
	legend := styleDisplay.Render("D display") + "  " +
		styleCapture.Render("C capture") + "  " +
		styleFree.Render("o in flight")

	pad := (width - lipgloss.Width(legend)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + legend
}
