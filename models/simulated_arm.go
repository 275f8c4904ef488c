package models

import (
	"armservo/kinematics"
	"armservo/sim"
	"armservo/utils"
	"context"
	"fmt"
	"sync"
	"time"

	"go.viam.com/rdk/components/generic"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	rdk_utils "go.viam.com/utils"
)

var (
	SimulatedArm = resource.NewModel("viam", "arm-visual-servo", "simulated-arm")
)

func init() {
	resource.RegisterComponent(generic.API, SimulatedArm,
		resource.Registration[resource.Resource, *SimulatedArmConfig]{
			Constructor: newSimulatedArm,
		},
	)
}

type SimulatedArmConfig struct {
	resource.TriviallyValidateConfig
	InitialPositionsRad []float64 `json:"initial_positions_rad,omitempty" yaml:"initial_positions_rad,omitempty"`
	SweepRateHz         float64   `json:"sweep_rate_hz,omitempty" yaml:"sweep_rate_hz,omitempty"`
	SweepOnStart        bool      `json:"sweep_on_start,omitempty" yaml:"sweep_on_start,omitempty"`
}

// simulatedArm holds commanded joint positions and applies them immediately.
// In sweep mode it follows the demo trajectory and ignores commands.
type simulatedArm struct {
	resource.AlwaysRebuild
	name   resource.Name
	logger logging.Logger
	cfg    *SimulatedArmConfig

	positions utils.Latest[kinematics.JointAngles]

	sweepMu     sync.Mutex
	sweepWorker *rdk_utils.StoppableWorkers
}

func newSimulatedArm(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*SimulatedArmConfig](rawConf)
	if err != nil {
		return nil, err
	}
	return NewSimulatedArm(rawConf.ResourceName(), conf, logger)
}

func NewSimulatedArm(name resource.Name, conf *SimulatedArmConfig, logger logging.Logger) (resource.Resource, error) {
	var initial kinematics.JointAngles
	if conf.InitialPositionsRad != nil {
		var err error
		initial, err = parseJointAngles(conf.InitialPositionsRad)
		if err != nil {
			return nil, fmt.Errorf("initial_positions_rad: %w", err)
		}
	}
	if conf.SweepRateHz == 0 {
		conf.SweepRateHz = 30
	}
	if err := utils.ValidateRate("sweep_rate_hz", conf.SweepRateHz, 0); err != nil {
		return nil, err
	}

	a := &simulatedArm{
		name:   name,
		logger: logger,
		cfg:    conf,
	}
	a.positions.Store(initial)
	if conf.SweepOnStart {
		a.setSweep(true)
	}
	return a, nil
}

func (a *simulatedArm) Name() resource.Name {
	return a.name
}

func (a *simulatedArm) Close(ctx context.Context) error {
	a.setSweep(false)
	return nil
}

func (a *simulatedArm) sweeping() bool {
	a.sweepMu.Lock()
	defer a.sweepMu.Unlock()
	return a.sweepWorker != nil
}

func (a *simulatedArm) setSweep(enabled bool) {
	a.sweepMu.Lock()
	defer a.sweepMu.Unlock()
	if enabled == (a.sweepWorker != nil) {
		return
	}
	if !enabled {
		a.sweepWorker.Stop()
		a.sweepWorker = nil
		a.logger.Info("Sweep stopped")
		return
	}
	current, _ := a.positions.Load()
	base := current[kinematics.BaseJoint]
	a.sweepWorker = rdk_utils.NewBackgroundStoppableWorkers(func(ctx context.Context) {
		start := time.Now()
		ticker := time.NewTicker(utils.RateToInterval(a.cfg.SweepRateHz))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				a.positions.Store(sim.Sweep(base, now.Sub(start)))
			}
		}
	})
	a.logger.Info("Sweep started")
}

func (a *simulatedArm) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	switch cmd["command"] {
	case cmdSetJointPositions:
		if a.sweeping() {
			return nil, fmt.Errorf("cannot set joint positions while sweeping")
		}
		q, err := parseJointAngles(cmd[keyPositionsRad])
		if err != nil {
			return nil, err
		}
		a.positions.Store(q)
		return map[string]interface{}{keyPositionsRad: q.Slice()}, nil

	case cmdGetJointPositions:
		q, _ := a.positions.Load()
		return map[string]interface{}{
			keyPositionsRad: q.Slice(),
			"end_effector":  utils.VectorToMap(kinematics.Forward(q)),
		}, nil

	case "sweep":
		enabled, ok := cmd["enabled"].(bool)
		if !ok {
			return nil, fmt.Errorf("enabled must be a bool")
		}
		a.setSweep(enabled)
		return map[string]interface{}{"sweeping": enabled}, nil

	default:
		return nil, fmt.Errorf("invalid command: %v", cmd["command"])
	}
}

// jointPositionsFrom asks any resource that speaks the simulated arm's
// DoCommand protocol for its joint positions.
func jointPositionsFrom(ctx context.Context, arm resource.Resource) (kinematics.JointAngles, error) {
	resp, err := arm.DoCommand(ctx, map[string]interface{}{"command": cmdGetJointPositions})
	if err != nil {
		return kinematics.JointAngles{}, err
	}
	return parseJointAngles(resp[keyPositionsRad])
}
