// Package msgs defines the payload types carried on the bus.
//
// Wire types mirror the remote middleware's JSON message layouts
// (sensor_msgs / geometry_msgs / std_msgs shapes). Local types are the
// structured records components work with; converters translate between
// the two representations at the bridge boundary.
package msgs

// JointState is the remote wire representation of joint-space state.
type JointState struct {
	Name     []string  `json:"name"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
	Effort   []float64 `json:"effort"`
}

// Vector3 is a 3D vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is an orientation in quaternion form.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is a cartesian position and orientation.
type Pose struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// Wrench is a force and torque pair.
type Wrench struct {
	Force  Vector3 `json:"force"`
	Torque Vector3 `json:"torque"`
}

// String is the remote wire representation of a plain string message.
type String struct {
	Data string `json:"data"`
}

// Bool is the remote wire representation of a plain boolean message.
type Bool struct {
	Data bool `json:"data"`
}

// Identity returns the identity orientation.
func Identity() Quaternion {
	return Quaternion{W: 1}
}
