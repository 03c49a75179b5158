package camera

// ShutterCurve describes how the shutter opens and closes over the frame
type ShutterCurve struct {
	Open   float32
	Close  float32
	Points [8]float32
}

// Fixed shutter curves. Interactive renders open the shutter instantly;
// batch renders use a curve that opens and closes gradually.
var (
	InteractiveShutterCurve = ShutterCurve{
		Open:   0,
		Close:  1,
		Points: [8]float32{0, 0, 0, 0, 1, 0, 1, 0},
	}
	BatchShutterCurve = ShutterCurve{
		Open:   0,
		Close:  0,
		Points: [8]float32{0, 0, 0, 0, 0, 1, 0.3, 0},
	}
)

// ShutterCurveFor returns the fixed curve for the render mode
func ShutterCurveFor(interactive bool) ShutterCurve {
	if interactive {
		return InteractiveShutterCurve
	}
	return BatchShutterCurve
}
