package camera

// WindowPolicy selects how a camera window is conformed to a different aspect ratio
type WindowPolicy int

// Window policies
const (
	MatchVertically WindowPolicy = iota
	MatchHorizontally
	Fit
	Crop
	DontConform
)

func (p WindowPolicy) String() string {
	switch p {
	case MatchVertically:
		return "matchVertically"
	case MatchHorizontally:
		return "matchHorizontally"
	case Fit:
		return "fit"
	case Crop:
		return "crop"
	case DontConform:
		return "dontConform"
	default:
		return "unknown"
	}
}

// ConformWindow resizes window around its centre so that it has the target
// aspect ratio, following policy.
func ConformWindow(window Range2f, policy WindowPolicy, targetAspect float64) Range2f {
	if policy == DontConform || targetAspect <= 0 || window.IsEmpty() {
		return window
	}

	aspect := window.Aspect()
	switch policy {
	case Fit:
		if aspect > targetAspect {
			policy = MatchHorizontally
		} else {
			policy = MatchVertically
		}
	case Crop:
		if aspect > targetAspect {
			policy = MatchVertically
		} else {
			policy = MatchHorizontally
		}
	}

	center := window.Min.Add(window.Max).Mul(0.5)
	size := window.Size()
	if policy == MatchVertically {
		size[0] = size[1] * targetAspect
	} else {
		size[1] = size[0] / targetAspect
	}
	half := size.Mul(0.5)
	return Range2f{Min: center.Sub(half), Max: center.Add(half)}
}
