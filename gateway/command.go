package gateway

// Motion is a normalized motion tag.
type Motion string

// Motion tags understood by the motor controller. Anything else
// normalizes to MotionUnknown and is still accepted.
const (
	MotionForward  Motion = "Forward"
	MotionBackward Motion = "Backward"
	MotionLeft     Motion = "Left"
	MotionRight    Motion = "Right"
	MotionStop     Motion = "Stop"
	MotionUnknown  Motion = "Unknown"
)

// MaxSpeed is the top of the speed range the controller accepts.
const MaxSpeed = 255

// NormalizeMotion maps a raw motion tag onto the controller's
// vocabulary. "stop_it" is a legacy alias for Stop; unrecognized tags
// become MotionUnknown rather than an error.
func NormalizeMotion(raw string) Motion {
	switch raw {
	case "Forward":
		return MotionForward
	case "Backward":
		return MotionBackward
	case "Left":
		return MotionLeft
	case "Right":
		return MotionRight
	case "Stop", "stop_it":
		return MotionStop
	default:
		return MotionUnknown
	}
}

// ClampSpeed forces a raw speed into [0,MaxSpeed]. Missing speeds are
// passed in as negative values and come out as 0.
func ClampSpeed(raw int) int {
	if raw < 0 {
		return 0
	}
	if raw > MaxSpeed {
		return MaxSpeed
	}
	return raw
}

// Command is one normalized motion command.
type Command struct {
	Motion Motion
	Speed  int
}
