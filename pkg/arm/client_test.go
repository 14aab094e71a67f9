package arm_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/samparadis/dvrk-ros/pkg/arm"
	"github.com/samparadis/dvrk-ros/pkg/bus"
	"github.com/samparadis/dvrk-ros/pkg/msgs"
)

// fakeController emulates the arm controller side of the bus: it acks
// state changes and reports goals reached immediately.
type fakeController struct {
	bus  bus.Bus
	name string
}

func startFakeController(t *testing.T, b bus.Bus, name string) *fakeController {
	t.Helper()
	fc := &fakeController{bus: b, name: name}
	ns := arm.DefaultNamespace + name + "/"

	mustSubscribe(t, b, ns+"set_robot_state", func(msg bus.Message) {
		var s msgs.String
		if err := msg.Decode(&s); err != nil {
			t.Errorf("controller: bad set_robot_state: %v", err)
			return
		}
		state := s.Data
		if state == "Home" {
			state = arm.StateReady
		}
		fc.publish(t, ns+"robot_state", msgs.String{Data: state})
	})
	mustSubscribe(t, b, ns+"set_position_goal_joint", func(msg bus.Message) {
		var js msgs.JointState
		if err := msg.Decode(&js); err != nil {
			t.Errorf("controller: bad set_position_goal_joint: %v", err)
			return
		}
		fc.publish(t, ns+"state_joint_desired", js)
		fc.publish(t, ns+"goal_reached", msgs.Bool{Data: true})
	})
	mustSubscribe(t, b, ns+"set_position_joint", func(msg bus.Message) {
		var js msgs.JointState
		if err := msg.Decode(&js); err != nil {
			return
		}
		fc.publish(t, ns+"state_joint_desired", js)
	})
	return fc
}

func (fc *fakeController) publish(t *testing.T, topic string, v interface{}) {
	msg, err := bus.NewMessage(topic, v)
	if err != nil {
		t.Errorf("controller: encode for %s: %v", topic, err)
		return
	}
	if err := fc.bus.Publish(topic, msg); err != nil {
		t.Errorf("controller: publish to %s: %v", topic, err)
	}
}

func mustSubscribe(t *testing.T, b bus.Bus, topic string, h bus.Handler) {
	t.Helper()
	if _, err := b.Subscribe(topic, h); err != nil {
		t.Fatalf("subscribe %s failed: %v", topic, err)
	}
}

func TestClient_Home(t *testing.T) {
	b := bus.NewLocalBus()
	defer b.Close()
	startFakeController(t, b, "PSM1")

	c, err := arm.NewClient(b, "PSM1")
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Home(ctx); err != nil {
		t.Fatalf("home failed: %v", err)
	}
	if c.RobotState() != arm.StateReady {
		t.Errorf("expected state %s, got %s", arm.StateReady, c.RobotState())
	}
}

func TestClient_SetStateTimesOutWithoutController(t *testing.T) {
	b := bus.NewLocalBus()
	defer b.Close()

	c, err := arm.NewClient(b, "PSM1")
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.SetState(ctx, arm.StatePositionJoint); err == nil {
		t.Error("expected timeout with no controller present")
	}
}

func TestClient_MoveJoint(t *testing.T) {
	b := bus.NewLocalBus()
	defer b.Close()
	startFakeController(t, b, "PSM1")

	c, err := arm.NewClient(b, "PSM1")
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	goal := []float64{0.1, -0.2, 0.05}
	if err := c.MoveJoint(ctx, goal); err != nil {
		t.Fatalf("move joint failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if reflect.DeepEqual(c.StateJointDesired().Position, goal) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !reflect.DeepEqual(c.StateJointDesired().Position, goal) {
		t.Errorf("desired state never reflected goal: %+v", c.StateJointDesired())
	}
	if c.JointCount() != 3 {
		t.Errorf("expected 3 joints, got %d", c.JointCount())
	}
}

func TestClient_DMoveJoint(t *testing.T) {
	b := bus.NewLocalBus()
	defer b.Close()
	startFakeController(t, b, "PSM1")

	c, err := arm.NewClient(b, "PSM1")
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.MoveJoint(ctx, []float64{0.5, 1.0}); err != nil {
		t.Fatalf("initial move failed: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for c.JointCount() != 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := c.DMoveJoint(ctx, []float64{0.25, -0.5}); err != nil {
		t.Fatalf("delta move failed: %v", err)
	}

	want := []float64{0.75, 0.5}
	deadline = time.Now().Add(time.Second)
	for !reflect.DeepEqual(c.StateJointDesired().Position, want) && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := c.StateJointDesired().Position; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected desired position after delta move: %v", got)
	}

	if err := c.DMoveJoint(ctx, []float64{1}); err == nil {
		t.Error("expected error for mismatched delta size")
	}
}

func TestClient_WrenchPublishes(t *testing.T) {
	b := bus.NewLocalBus()
	defer b.Close()
	startFakeController(t, b, "MTML")

	got := make(chan msgs.Wrench, 1)
	mustSubscribe(t, b, arm.DefaultNamespace+"MTML/set_wrench_body", func(msg bus.Message) {
		var w msgs.Wrench
		if err := msg.Decode(&w); err != nil {
			t.Errorf("bad wrench payload: %v", err)
			return
		}
		got <- w
	})

	c, err := arm.NewClient(b, "MTML")
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.SetWrenchBodyForce(ctx, msgs.Vector3{X: 1, Y: 2, Z: 3}); err != nil {
		t.Fatalf("set wrench failed: %v", err)
	}

	select {
	case w := <-got:
		if w.Force != (msgs.Vector3{X: 1, Y: 2, Z: 3}) {
			t.Errorf("unexpected force: %+v", w.Force)
		}
		if w.Torque != (msgs.Vector3{}) {
			t.Errorf("torque should be null, got %+v", w.Torque)
		}
	case <-time.After(time.Second):
		t.Error("wrench never published")
	}
}
