package hal

import (
	"fmt"
	"image"
)

// scaleFracBits is the fixed-point precision of the pipe downscaler.
const scaleFracBits = 10

// CropROI returns the largest sensor window with out's aspect ratio, centred
// on the sensor, such that downscaling it to out needs a ratio of at least
// 1.0. The ratio is computed in the downscaler's 10-bit fixed point.
func CropROI(sensor, out Dims) (image.Rectangle, error) {
	if sensor.W <= 0 || sensor.H <= 0 || out.W <= 0 || out.H <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: sensor %dx%d, output %dx%d", ErrScale, sensor.W, sensor.H, out.W, out.H)
	}

	one := 1 << scaleFracBits
	ratioW := (sensor.W << scaleFracBits) / out.W
	ratioH := (sensor.H << scaleFracBits) / out.H
	ratio := min(ratioW, ratioH)
	if ratio < one {
		return image.Rectangle{}, fmt.Errorf("%w: sensor %dx%d, output %dx%d", ErrScale, sensor.W, sensor.H, out.W, out.H)
	}

	w := min((out.W*ratio)>>scaleFracBits, sensor.W)
	h := min((out.H*ratio)>>scaleFracBits, sensor.H)
	x0 := (sensor.W - w) / 2
	y0 := (sensor.H - h) / 2
	return image.Rect(x0, y0, x0+w, y0+h), nil
}
