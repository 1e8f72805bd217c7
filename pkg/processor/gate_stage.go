package processor

import (
	"github.com/xaionaro-go/earmonitor/pkg/noisegate"
)

// GateStage is either GateStageActive or GateStageBypassed.
type GateStage interface {
	isGateStage()
}

// GateStageActive means the controller is ticking and driving the gate gain.
type GateStageActive struct {
	Controller *noisegate.Controller
}

// GateStageBypassed means the gate gain is held at 1.
type GateStageBypassed struct{}

func (GateStageActive) isGateStage()   {}
func (GateStageBypassed) isGateStage() {}
