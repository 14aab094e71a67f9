// Package arm provides the da Vinci Research Kit arm components: the
// FromRemote bridge that mirrors a remote arm's state locally, and the
// Client API that drives an arm through the bus.
package arm

import (
	"time"

	"github.com/samparadis/dvrk-ros/pkg/bridge"
	"github.com/samparadis/dvrk-ros/pkg/bus"
	"github.com/samparadis/dvrk-ros/pkg/core"
	"github.com/samparadis/dvrk-ros/pkg/msgs"
)

// RemoteNamespacePrefix is prepended to an arm name to address topics
// published by the corresponding remote entity.
const RemoteNamespacePrefix = "/remote/"

// ReadStateJointDesired is the read command exposing the remote arm's
// desired joint state.
const ReadStateJointDesired = "GetStateJointDesired"

const stateJointDesiredSuffix = "/state_joint_desired"

// TaskType is the factory registry name for FromRemote.
const TaskType = "dvrk_arm_from_remote"

// FromRemote mirrors the state published by a remote arm. At construction
// it binds the remote desired-joint-state topic to the GetStateJointDesired
// read command under a provided interface named after the arm.
type FromRemote struct {
	*bridge.Bridge
	remoteNamespace string
}

// NewFromRemote creates the component for the named arm. The remote
// namespace is derived once from the name and never recomputed.
func NewFromRemote(b bus.Bus, name string, period time.Duration) (*FromRemote, error) {
	br, err := bridge.New(b, name, period)
	if err != nil {
		return nil, err
	}
	f := &FromRemote{
		Bridge:          br,
		remoteNamespace: RemoteNamespacePrefix + name,
	}
	if err := f.init(); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFromRemoteFromArgs is the bundled-argument construction form. It
// produces the same post-construction state as NewFromRemote for equal
// inputs.
func NewFromRemoteFromArgs(b bus.Bus, args core.TaskArgs) (*FromRemote, error) {
	return NewFromRemote(b, args.Name, args.Period)
}

func (f *FromRemote) init() error {
	return f.AddSubscriberToCommandRead(
		f.Name(),
		ReadStateJointDesired,
		f.remoteNamespace+stateJointDesiredSuffix,
		func(data []byte) (interface{}, error) {
			var js msgs.JointState
			if err := msgs.DefaultBinder.Bind(data, &js); err != nil {
				return nil, err
			}
			return msgs.StateJointFromJointState(js), nil
		},
	)
}

// RemoteNamespace returns the derived remote namespace.
func (f *FromRemote) RemoteNamespace() string {
	return f.remoteNamespace
}

// StateJointDesired reads the most recent remote desired joint state.
func (f *FromRemote) StateJointDesired() (msgs.StateJoint, bool) {
	read, err := f.ProvidedInterface(f.Name()).ReadCommand(ReadStateJointDesired)
	if err != nil {
		return msgs.StateJoint{}, false
	}
	v, ok := read()
	if !ok {
		return msgs.StateJoint{}, false
	}
	return v.(msgs.StateJoint), true
}

// Configure is the configuration entry point. The base component has
// nothing to configure; variants embed FromRemote and override this with
// real configuration-file parsing.
func (f *FromRemote) Configure(path string) error {
	return nil
}

var _ core.Configurable = (*FromRemote)(nil)
