package arm

import (
	"context"
	"fmt"
	"sync"

	"github.com/samparadis/dvrk-ros/pkg/bus"
	"github.com/samparadis/dvrk-ros/pkg/core"
	"github.com/samparadis/dvrk-ros/pkg/msgs"
)

// DefaultNamespace is the topic namespace arms publish under.
const DefaultNamespace = "/dvrk/"

// Robot states reported and accepted by the arm controller.
const (
	StateUninitialized         = "DVRK_UNINITIALIZED"
	StateReady                 = "DVRK_READY"
	StatePositionJoint         = "DVRK_POSITION_JOINT"
	StatePositionGoalJoint     = "DVRK_POSITION_GOAL_JOINT"
	StatePositionCartesian     = "DVRK_POSITION_CARTESIAN"
	StatePositionGoalCartesian = "DVRK_POSITION_GOAL_CARTESIAN"
	StateEffortCartesian       = "DVRK_EFFORT_CARTESIAN"
	stateHomeCommand           = "Home"
)

// Client drives one arm through the bus: it publishes motion and state
// commands under the arm's namespace and tracks the state the controller
// publishes back.
type Client struct {
	bus    bus.Bus
	name   string
	prefix string
	logger core.Logger

	mu      sync.Mutex
	changed chan struct{}
	goalCh  chan bool

	robotState               string
	stateJointDesired        msgs.StateJoint
	stateJointCurrent        msgs.StateJoint
	positionCartesianDesired msgs.Pose
	positionCartesianCurrent msgs.Pose

	subs []bus.Subscription
}

// ClientOption adjusts client construction.
type ClientOption func(*Client)

// WithNamespace overrides the default /dvrk/ topic namespace.
func WithNamespace(ns string) ClientOption {
	return func(c *Client) { c.prefix = ns }
}

// NewClient creates a client for the named arm and subscribes to its
// feedback topics.
func NewClient(b bus.Bus, name string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		bus:        b,
		name:       name,
		prefix:     DefaultNamespace,
		logger:     core.NewDefaultLogger().WithFields(map[string]interface{}{"arm": name}),
		changed:    make(chan struct{}),
		robotState: "uninitialized",
	}
	for _, opt := range opts {
		opt(c)
	}

	type feed struct {
		suffix  string
		handler bus.Handler
	}
	feeds := []feed{
		{"robot_state", c.onRobotState},
		{"goal_reached", c.onGoalReached},
		{"state_joint_desired", c.onStateJointDesired},
		{"state_joint_current", c.onStateJointCurrent},
		{"position_cartesian_desired", c.onPositionCartesianDesired},
		{"position_cartesian_current", c.onPositionCartesianCurrent},
	}
	for _, f := range feeds {
		sub, err := b.Subscribe(c.topic(f.suffix), f.handler)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.subs = append(c.subs, sub)
	}
	return c, nil
}

// Close removes all feedback subscriptions.
func (c *Client) Close() error {
	var firstErr error
	for _, sub := range c.subs {
		if err := sub.Unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.subs = nil
	return firstErr
}

// Name returns the arm name.
func (c *Client) Name() string {
	return c.name
}

func (c *Client) topic(suffix string) string {
	return c.prefix + c.name + "/" + suffix
}

// broadcast wakes every waiter blocked on a state change. Callers hold mu.
func (c *Client) broadcast() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Client) onRobotState(msg bus.Message) {
	var s msgs.String
	if err := msg.Decode(&s); err != nil {
		c.logger.Error("bad robot_state payload: ", err)
		return
	}
	c.logger.Info("current state is ", s.Data)
	c.mu.Lock()
	c.robotState = s.Data
	c.broadcast()
	c.mu.Unlock()
}

func (c *Client) onGoalReached(msg bus.Message) {
	var b msgs.Bool
	if err := msg.Decode(&b); err != nil {
		c.logger.Error("bad goal_reached payload: ", err)
		return
	}
	c.mu.Lock()
	if c.goalCh != nil {
		c.goalCh <- b.Data
		c.goalCh = nil
	}
	c.mu.Unlock()
}

func (c *Client) onStateJointDesired(msg bus.Message) {
	var js msgs.JointState
	if err := msg.Decode(&js); err != nil {
		c.logger.Error("bad state_joint_desired payload: ", err)
		return
	}
	c.mu.Lock()
	c.stateJointDesired = msgs.StateJointFromJointState(js)
	c.mu.Unlock()
}

func (c *Client) onStateJointCurrent(msg bus.Message) {
	var js msgs.JointState
	if err := msg.Decode(&js); err != nil {
		c.logger.Error("bad state_joint_current payload: ", err)
		return
	}
	c.mu.Lock()
	c.stateJointCurrent = msgs.StateJointFromJointState(js)
	c.mu.Unlock()
}

func (c *Client) onPositionCartesianDesired(msg bus.Message) {
	var p msgs.Pose
	if err := msg.Decode(&p); err != nil {
		c.logger.Error("bad position_cartesian_desired payload: ", err)
		return
	}
	c.mu.Lock()
	c.positionCartesianDesired = p
	c.mu.Unlock()
}

func (c *Client) onPositionCartesianCurrent(msg bus.Message) {
	var p msgs.Pose
	if err := msg.Decode(&p); err != nil {
		c.logger.Error("bad position_cartesian_current payload: ", err)
		return
	}
	c.mu.Lock()
	c.positionCartesianCurrent = p
	c.mu.Unlock()
}

// RobotState returns the last reported controller state.
func (c *Client) RobotState() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.robotState
}

// StateJointDesired returns the last desired joint state.
func (c *Client) StateJointDesired() msgs.StateJoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateJointDesired
}

// StateJointCurrent returns the last measured joint state.
func (c *Client) StateJointCurrent() msgs.StateJoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateJointCurrent
}

// PositionCartesianDesired returns the last desired cartesian pose.
func (c *Client) PositionCartesianDesired() msgs.Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionCartesianDesired
}

// PositionCartesianCurrent returns the last measured cartesian pose.
func (c *Client) PositionCartesianCurrent() msgs.Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionCartesianCurrent
}

// JointCount returns the number of joints seen on the desired state feed.
func (c *Client) JointCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stateJointDesired.Position)
}

func (c *Client) publish(suffix string, v interface{}) error {
	topic := c.topic(suffix)
	msg, err := bus.NewMessage(topic, v)
	if err != nil {
		return err
	}
	return c.bus.Publish(topic, msg)
}

// SetState asks the controller to enter the given state and waits until
// the controller reports it, or ctx expires.
func (c *Client) SetState(ctx context.Context, state string) error {
	c.mu.Lock()
	if c.robotState == state {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.publish("set_robot_state", msgs.String{Data: state}); err != nil {
		return err
	}
	return c.waitForState(ctx, state)
}

func (c *Client) waitForState(ctx context.Context, state string) error {
	for {
		c.mu.Lock()
		current := c.robotState
		changed := c.changed
		c.mu.Unlock()

		if current == state {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("waiting for state %s (still %s): %w", state, current, ctx.Err())
		}
	}
}

// Home powers and homes the arm, blocking until the controller reports
// ready or ctx expires.
func (c *Client) Home(ctx context.Context) error {
	c.logger.Info("start homing")
	if err := c.publish("set_robot_state", msgs.String{Data: stateHomeCommand}); err != nil {
		return err
	}
	if err := c.waitForState(ctx, StateReady); err != nil {
		return err
	}
	c.logger.Info("homing complete")
	return nil
}

// Shutdown stops providing power to the arm.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.SetState(ctx, StateUninitialized)
}

// armGoal arms the goal-reached event before a goal publish.
func (c *Client) armGoal() chan bool {
	ch := make(chan bool, 1)
	c.mu.Lock()
	c.goalCh = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) waitGoal(ctx context.Context, ch chan bool) error {
	select {
	case reached := <-ch:
		if !reached {
			return &core.Error{Code: "GOAL_NOT_REACHED", Message: "controller reported goal not reached"}
		}
		return nil
	case <-ctx.Done():
		c.mu.Lock()
		if c.goalCh == ch {
			c.goalCh = nil
		}
		c.mu.Unlock()
		return fmt.Errorf("waiting for goal: %w", ctx.Err())
	}
}

// MoveJointDirect commands an absolute joint move that bypasses the
// trajectory generator.
func (c *Client) MoveJointDirect(ctx context.Context, positions []float64) error {
	if err := c.SetState(ctx, StatePositionJoint); err != nil {
		return err
	}
	return c.publish("set_position_joint", msgs.JointState{Position: positions})
}

// MoveJoint commands an absolute joint move through the trajectory
// generator and waits for the goal to be reached.
func (c *Client) MoveJoint(ctx context.Context, positions []float64) error {
	if err := c.SetState(ctx, StatePositionGoalJoint); err != nil {
		return err
	}
	ch := c.armGoal()
	if err := c.publish("set_position_goal_joint", msgs.JointState{Position: positions}); err != nil {
		return err
	}
	return c.waitGoal(ctx, ch)
}

// DMoveJoint commands an incremental joint move relative to the last
// desired position.
func (c *Client) DMoveJoint(ctx context.Context, delta []float64) error {
	c.mu.Lock()
	desired := append([]float64(nil), c.stateJointDesired.Position...)
	c.mu.Unlock()

	if len(delta) != len(desired) {
		return &core.Error{Code: "INVALID_DELTA", Message: fmt.Sprintf("delta has %d joints, arm has %d", len(delta), len(desired))}
	}
	for i := range desired {
		desired[i] += delta[i]
	}
	return c.MoveJoint(ctx, desired)
}

// MoveCartesianDirect commands an absolute cartesian move that bypasses
// the trajectory generator.
func (c *Client) MoveCartesianDirect(ctx context.Context, pose msgs.Pose) error {
	if err := c.SetState(ctx, StatePositionCartesian); err != nil {
		return err
	}
	return c.publish("set_position_cartesian", pose)
}

// MoveCartesian commands an absolute cartesian move through the
// trajectory generator and waits for the goal to be reached.
func (c *Client) MoveCartesian(ctx context.Context, pose msgs.Pose) error {
	if err := c.SetState(ctx, StatePositionGoalCartesian); err != nil {
		return err
	}
	ch := c.armGoal()
	if err := c.publish("set_position_goal_cartesian", pose); err != nil {
		return err
	}
	return c.waitGoal(ctx, ch)
}

// SetWrenchBodyForce applies a body wrench with force only, torque null.
func (c *Client) SetWrenchBodyForce(ctx context.Context, force msgs.Vector3) error {
	if err := c.SetState(ctx, StateEffortCartesian); err != nil {
		return err
	}
	return c.publish("set_wrench_body", msgs.Wrench{Force: force})
}

// SetWrenchSpatialForce applies a spatial wrench with force only, torque
// null.
func (c *Client) SetWrenchSpatialForce(ctx context.Context, force msgs.Vector3) error {
	if err := c.SetState(ctx, StateEffortCartesian); err != nil {
		return err
	}
	return c.publish("set_wrench_spatial", msgs.Wrench{Force: force})
}

// SetWrenchBodyOrientationAbsolute selects whether body wrenches use the
// body orientation (false) or the reference frame (true).
func (c *Client) SetWrenchBodyOrientationAbsolute(absolute bool) error {
	return c.publish("set_wrench_body_orientation_absolute", msgs.Bool{Data: absolute})
}
