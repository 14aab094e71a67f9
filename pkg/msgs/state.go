package msgs

import "time"

// StateJoint is the local structured record of joint-space state. It is
// the read-command side of the bridge's (StateJoint, JointState) type
// pair.
type StateJoint struct {
	Name      []string
	Position  []float64
	Velocity  []float64
	Effort    []float64
	Timestamp time.Time
	Valid     bool
}

// StateJointFromJointState converts the remote wire representation into
// the local record. Slices are copied so later wire buffers cannot alias
// stored state.
func StateJointFromJointState(js JointState) StateJoint {
	return StateJoint{
		Name:      append([]string(nil), js.Name...),
		Position:  append([]float64(nil), js.Position...),
		Velocity:  append([]float64(nil), js.Velocity...),
		Effort:    append([]float64(nil), js.Effort...),
		Timestamp: time.Now(),
		Valid:     true,
	}
}

// JointStateFromStateJoint converts a local record back to the wire
// representation.
func JointStateFromStateJoint(s StateJoint) JointState {
	return JointState{
		Name:     append([]string(nil), s.Name...),
		Position: append([]float64(nil), s.Position...),
		Velocity: append([]float64(nil), s.Velocity...),
		Effort:   append([]float64(nil), s.Effort...),
	}
}
