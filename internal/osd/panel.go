// Package osd draws the on-screen diagnostic panel into the UI overlay.
package osd

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"framepipe.klederson.com/internal/cpuload"
)

// Panel geometry, top-left of the UI layer.
const (
	PanelWidth  = 160
	PanelHeight = 240

	marginX     = 8
	marginY     = 8
	fontHeight  = 13
	lineSpacing = 7
	lineHeight  = fontHeight + lineSpacing
	barHeight   = 12
)

var (
	colorText   = color.NRGBA{0x00, 0xFF, 0x00, 0xFF}
	colorLabel  = color.NRGBA{0x80, 0x80, 0x80, 0xFF}
	colorValue  = color.NRGBA{0xFF, 0xFF, 0xFF, 0xFF}
	colorBarBg  = color.NRGBA{0x20, 0x20, 0x20, 0xFF}
	colorBarFg  = color.NRGBA{0x00, 0xCC, 0x00, 0xFF}
	transparent = color.NRGBA{}
)

// Line rows. Row 5 is left blank between the bar and the runtime block.
func lineY(row int) int { return marginY + row*lineHeight }

// Frame is what one panel redraw shows.
type Frame struct {
	Load   cpuload.Loads
	Uptime time.Duration
}

// Draw clears the panel area of dst to transparent and renders f into it.
// Pixels outside the panel are left untouched.
func Draw(dst draw.Image, f Frame) {
	panel := image.Rect(0, 0, PanelWidth, PanelHeight).Intersect(dst.Bounds())
	draw.Draw(dst, panel, image.NewUniform(transparent), image.Point{}, draw.Src)

	text(dst, lineY(0), colorText, "DIAGNOSTICS")
	hline(dst, marginX, lineY(1)+fontHeight/2, PanelWidth-2*marginX, colorText)

	text(dst, lineY(2), colorLabel, "CPU Load")
	text(dst, lineY(3), colorValue, FormatPercent(f.Load.Instant))
	ProgressBar(dst, image.Rect(marginX, lineY(4), PanelWidth-marginX, lineY(4)+barHeight), f.Load.Instant)

	text(dst, lineY(6), colorLabel, "Runtime")
	text(dst, lineY(7), colorValue, FormatRuntime(f.Uptime))

	text(dst, lineY(8), colorLabel, "Avg 1s / 5s")
	text(dst, lineY(9), colorValue, FormatPercent(f.Load.OneSecond)+" / "+FormatPercent(f.Load.FiveSecond))
}

func text(dst draw.Image, y int, c color.Color, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(marginX, y+basicfont.Face7x13.Ascent),
	}
	d.DrawString(s)
}

func hline(dst draw.Image, x, y, w int, c color.Color) {
	draw.Draw(dst, image.Rect(x, y, x+w, y+1), image.NewUniform(c), image.Point{}, draw.Src)
}

// ProgressBar draws a bordered bar in r filled to pct percent.
func ProgressBar(dst draw.Image, r image.Rectangle, pct float64) {
	pct = clampPercent(pct)
	draw.Draw(dst, r, image.NewUniform(colorBarBg), image.Point{}, draw.Src)

	fill := int(float64(r.Dx()-2) * pct / 100)
	if fill > 0 {
		fr := image.Rect(r.Min.X+1, r.Min.Y+1, r.Min.X+1+fill, r.Max.Y-1)
		draw.Draw(dst, fr, image.NewUniform(colorBarFg), image.Point{}, draw.Src)
	}

	border := image.NewUniform(colorText)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), border, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), border, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), border, image.Point{}, draw.Src)
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(100, v))
}

// FormatPercent renders v clamped to [0,100] with one decimal, e.g. "42.5%".
func FormatPercent(v float64) string {
	v = clampPercent(v)
	whole := int(v)
	tenth := int((v-float64(whole))*10 + 0.5)
	if tenth >= 10 {
		whole++
		tenth = 0
	}
	return fmt.Sprintf("%d.%d%%", whole, tenth)
}

// FormatRuntime renders d as minutes:seconds, e.g. "12:05".
func FormatRuntime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}
