package midicc

import "math"

// ExponentialFilter is a one-pole low-pass. Lambda is the per-step time
// constant; larger values converge faster.
type ExponentialFilter struct {
	Lambda float64
	Out    float64
}

// Process advances the filter one step toward in and returns the new output.
func (f *ExponentialFilter) Process(in float64) float64 {
	f.Out += (in - f.Out) * (1 - math.Exp(-f.Lambda))
	return f.Out
}

// Jump sets the output without smoothing.
func (f *ExponentialFilter) Jump(in float64) {
	f.Out = in
}

// Rescale maps x linearly from [xMin, xMax] to [yMin, yMax] without clamping.
func Rescale(x, xMin, xMax, yMin, yMax float64) float64 {
	return yMin + (x-xMin)/(xMax-xMin)*(yMax-yMin)
}
