package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPeriodicTask_RejectsNonPositivePeriod(t *testing.T) {
	if _, err := NewPeriodicTask("PSM1", 0); err != ErrInvalidPeriod {
		t.Errorf("expected ErrInvalidPeriod for zero period, got %v", err)
	}
	if _, err := NewPeriodicTask("PSM1", -time.Second); err != ErrInvalidPeriod {
		t.Errorf("expected ErrInvalidPeriod for negative period, got %v", err)
	}
}

func TestNewPeriodicTask_AcceptsEmptyName(t *testing.T) {
	task, err := NewPeriodicTask("", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("construction with empty name failed: %v", err)
	}
	if task.Name() != "" {
		t.Errorf("expected empty name, got %q", task.Name())
	}
}

func TestConstructorForms_Equivalent(t *testing.T) {
	direct, err := NewPeriodicTask("PSM1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("direct construction failed: %v", err)
	}
	bundled, err := NewPeriodicTaskFromArgs(TaskArgs{Name: "PSM1", Period: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("bundled construction failed: %v", err)
	}

	if direct.Name() != bundled.Name() {
		t.Errorf("names differ: %q vs %q", direct.Name(), bundled.Name())
	}
	if direct.Period() != bundled.Period() {
		t.Errorf("periods differ: %v vs %v", direct.Period(), bundled.Period())
	}
}

func TestPeriodicTask_RunsCallback(t *testing.T) {
	task, err := NewPeriodicTask("loop", time.Millisecond)
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}

	var count int32
	task.SetRun(func(ctx context.Context) {
		atomic.AddInt32(&count, 1)
	})

	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := task.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted on second start, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&count) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&count) < 3 {
		t.Errorf("expected at least 3 run callbacks, got %d", atomic.LoadInt32(&count))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := task.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestProvidedInterface_DuplicateCommand(t *testing.T) {
	task, err := NewPeriodicTask("PSM1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}

	itf := task.ProvidedInterface("PSM1")
	read := func() (interface{}, bool) { return nil, false }

	if err := itf.AddReadCommand("GetStateJointDesired", read); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := itf.AddReadCommand("GetStateJointDesired", read); err != ErrDuplicateCommand {
		t.Errorf("expected ErrDuplicateCommand, got %v", err)
	}

	if _, err := itf.ReadCommand("GetStateJointDesired"); err != nil {
		t.Errorf("lookup of registered command failed: %v", err)
	}
	if _, err := itf.ReadCommand("NoSuchCommand"); err != ErrUnknownCommand {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestProvidedInterface_SameInstanceByName(t *testing.T) {
	task, err := NewPeriodicTask("PSM1", 10*time.Millisecond)
	if err != nil {
		t.Fatalf("construction failed: %v", err)
	}
	if task.ProvidedInterface("a") != task.ProvidedInterface("a") {
		t.Error("expected same interface instance for same name")
	}
}

func TestTaskRegistry(t *testing.T) {
	RegisterTaskType("test_periodic", func(args TaskArgs) (Task, error) {
		return NewPeriodicTask(args.Name, args.Period)
	})

	task, err := CreateTask("test_periodic", TaskArgs{Name: "ECM", Period: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if task.Name() != "ECM" {
		t.Errorf("expected name ECM, got %q", task.Name())
	}

	if _, err := CreateTask("unregistered", TaskArgs{Name: "x", Period: time.Second}); err != ErrUnknownTaskType {
		t.Errorf("expected ErrUnknownTaskType, got %v", err)
	}
}
