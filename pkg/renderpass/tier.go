package renderpass

// tierState is the quality tier the render was last started with
type tierState int

const (
	tierIdle    tierState = iota // no render started yet
	tierInterim                  // running the quick integrator
	tierTarget                   // running the target integrator
)

func (s tierState) String() string {
	switch s {
	case tierInterim:
		return "interim"
	case tierTarget:
		return "target"
	}
	return "idle"
}

// tierEvent is what a render pass observed before deciding on a restart
type tierEvent struct {
	sceneChanged   bool // scene version moved since the last restart
	eligible       bool // the quick integrator may be used
	timeoutElapsed bool // the interim timeout passed since the last restart
}

// tierTransitions is indexed by state, then by the column picked in next:
// sceneChanged+eligible, sceneChanged, settled+elapsed, settled.
var tierTransitions = [...][4]tierState{
	tierIdle:    {tierInterim, tierTarget, tierIdle, tierIdle},
	tierInterim: {tierInterim, tierTarget, tierTarget, tierInterim},
	tierTarget:  {tierInterim, tierTarget, tierTarget, tierTarget},
}

// next returns the state after ev. A settled interim render whose timeout
// elapsed is promoted to the target tier; nothing but a scene change leaves
// the target tier.
func (s tierState) next(ev tierEvent) tierState {
	column := 3
	switch {
	case ev.sceneChanged && ev.eligible:
		column = 0
	case ev.sceneChanged:
		column = 1
	case ev.timeoutElapsed:
		column = 2
	}
	return tierTransitions[s][column]
}
