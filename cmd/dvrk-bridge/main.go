// Command dvrk-bridge runs arm bridge components that mirror remote
// dVRK arm state onto the local bus, with optional state recording and
// a monitor API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samparadis/dvrk-ros/pkg/arm"
	"github.com/samparadis/dvrk-ros/pkg/bus"
	"github.com/samparadis/dvrk-ros/pkg/config"
	"github.com/samparadis/dvrk-ros/pkg/core"
	"github.com/samparadis/dvrk-ros/pkg/msgs"
	"github.com/samparadis/dvrk-ros/pkg/observability/otel"
	promexp "github.com/samparadis/dvrk-ros/pkg/observability/prometheus"
	"github.com/samparadis/dvrk-ros/pkg/recorder"
	"github.com/samparadis/dvrk-ros/pkg/web"
)

func main() {
	configPath := flag.String("config", "bridge.yaml", "configuration file (YAML or JSON)")
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for the monitor password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := web.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	logger := core.NewLogger(core.LoggerConfig{JSONOutput: true, Level: "INFO"})

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := loadConfig(*configPath, explicit)
	if err != nil {
		logger.Error("failed to load configuration: ", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration: ", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("bridge failed: ", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file over the defaults. A missing
// file is only an error when the path was given explicitly; the default
// path falls back to DefaultConfig so the bridge runs out of the box.
func loadConfig(path string, explicit bool) (config.Config, error) {
	cfg := config.DefaultConfig()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, err
	}
	if err := config.Load(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func run(cfg config.Config, logger core.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Exporter != "" && cfg.Tracing.Exporter != "none" {
		tcfg := cfg.Tracing
		if tcfg.ServiceName == "" {
			tcfg.ServiceName = "dvrk-bridge"
		}
		if err := otel.Initialize(ctx, tcfg); err != nil {
			return fmt.Errorf("initialize tracing: %w", err)
		}
		defer otel.Shutdown(context.Background()) //nolint:errcheck
	}

	var b bus.Bus
	if cfg.Bus.URL == "" {
		logger.Info("no bus URL configured, running on the in-memory bus")
		b = bus.NewLocalBus()
	} else {
		nb, err := bus.NewNATSBus(cfg.Bus)
		if err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{"url": cfg.Bus.URL, "prefix": cfg.Bus.Prefix}).Info("connected to NATS")
		b = nb
	}
	defer b.Close()
	b = otel.WrapBus(b)

	core.RegisterTaskType(arm.TaskType, func(args core.TaskArgs) (core.Task, error) {
		return arm.NewFromRemoteFromArgs(b, args)
	})

	fleet := newFleet()
	for _, ac := range cfg.Arms {
		task, err := core.CreateTask(ac.Type, core.TaskArgs{Name: ac.Name, Period: ac.Period.Std()})
		if err != nil {
			return fmt.Errorf("create arm %s: %w", ac.Name, err)
		}
		if ac.Configure != "" {
			c, ok := task.(core.Configurable)
			if !ok {
				return fmt.Errorf("arm %s (%s) does not accept a configuration file", ac.Name, ac.Type)
			}
			if err := c.Configure(ac.Configure); err != nil {
				return fmt.Errorf("configure arm %s: %w", ac.Name, err)
			}
		}
		if err := task.Start(ctx); err != nil {
			return fmt.Errorf("start arm %s: %w", ac.Name, err)
		}
		defer task.Stop(context.Background()) //nolint:errcheck
		fleet.add(task)
		logger.WithFields(map[string]interface{}{
			"arm":    ac.Name,
			"type":   ac.Type,
			"period": ac.Period.Std().String(),
		}).Info("arm bridge started")
	}

	if cfg.Recorder.Path != "" {
		rec, err := recorder.Open(cfg.Recorder.Path, logger)
		if err != nil {
			return err
		}
		defer rec.Close()
		for name, f := range fleet.arms {
			for _, binding := range f.Bindings() {
				if err := rec.Record(b, name, binding.Topic); err != nil {
					return fmt.Errorf("record %s: %w", binding.Topic, err)
				}
			}
		}
		logger.WithFields(map[string]interface{}{"path": cfg.Recorder.Path}).Info("recorder enabled")
	}

	if cfg.Monitor.MetricsAddr != "" {
		ms := promexp.NewServer(cfg.Monitor.MetricsAddr)
		if err := ms.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer ms.Shutdown(context.Background()) //nolint:errcheck
		logger.WithFields(map[string]interface{}{"addr": ms.Addr()}).Info("metrics server listening")
	}

	if cfg.Monitor.Addr != "" {
		ws, err := web.NewServer(web.Config{
			Addr:         cfg.Monitor.Addr,
			Username:     cfg.Monitor.Username,
			PasswordHash: cfg.Monitor.PasswordHash,
			JWTSecret:    cfg.Monitor.JWTSecret,
		}, fleet, logger)
		if err != nil {
			return err
		}
		if err := ws.Start(); err != nil {
			return fmt.Errorf("start monitor server: %w", err)
		}
		defer ws.Shutdown(context.Background()) //nolint:errcheck
	}

	logger.Info("dvrk bridge running")
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// fleet indexes running arm components by name and backs the monitor's
// state reads.
type fleet struct {
	arms map[string]*arm.FromRemote
}

func newFleet() *fleet {
	return &fleet{arms: make(map[string]*arm.FromRemote)}
}

func (f *fleet) add(task core.Task) {
	if fr, ok := task.(*arm.FromRemote); ok {
		f.arms[fr.Name()] = fr
	}
}

func (f *fleet) Arms() []string {
	names := make([]string, 0, len(f.arms))
	for name := range f.arms {
		names = append(names, name)
	}
	return names
}

func (f *fleet) StateJointDesired(name string) (msgs.StateJoint, bool) {
	fr, ok := f.arms[name]
	if !ok {
		return msgs.StateJoint{}, false
	}
	return fr.StateJointDesired()
}
