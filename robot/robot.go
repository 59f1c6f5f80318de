// Package robot builds the rover's units from a config and runs each one as an independent worker.
package robot

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/rover/autopilot"
	"go.viam.com/rover/components/board"
	fakeboard "go.viam.com/rover/components/board/fake"
	"go.viam.com/rover/components/board/periph"
	"go.viam.com/rover/components/camera"
	fakecamera "go.viam.com/rover/components/camera/fake"
	"go.viam.com/rover/components/camera/imagefile"
	"go.viam.com/rover/components/sensor/ultrasonic"
	"go.viam.com/rover/config"
	"go.viam.com/rover/logging"
	"go.viam.com/rover/navigation"
	"go.viam.com/rover/queue"
	"go.viam.com/rover/utils"
	"go.viam.com/rover/vision/odometry"
)

// Dependencies replace the collaborators New would otherwise build from the config. Collaborators
// passed in are not closed by the robot.
type Dependencies struct {
	Board     board.DigitalIO
	Camera    camera.FrameSource
	Link      navigation.Link
	Threshold navigation.ThresholdProvider
	Clock     clock.Clock
}

// Status is a snapshot of the robot's counters.
type Status struct {
	Navigation      navigation.Stats `json:"navigation"`
	Odometry        *odometry.Stats  `json:"odometry,omitempty"`
	RangingDropped  uint64           `json:"ranging_dropped"`
	OdometryDropped uint64           `json:"odometry_dropped"`
}

// A Robot owns the ranging array, the odometry engine, the fusion loop and their collaborators.
type Robot struct {
	array    *ultrasonic.Array
	engine   *odometry.Engine
	fusion   *navigation.Fusion
	readings *queue.Bounded[ultrasonic.RangeReading]
	deltas   *queue.Bounded[odometry.MotionDelta]
	camera   camera.FrameSource

	workers utils.StoppableWorkers
	closers []func(ctx context.Context) error
	clk     clock.Clock
	loggers *logging.Registry
	logger  logging.Logger

	closeOnce sync.Once
	closeErr  error
}

// New builds every collaborator from conf and starts the robot.
func New(ctx context.Context, conf *config.Config, logger logging.Logger) (*Robot, error) {
	return NewWithDependencies(ctx, conf, Dependencies{}, logger)
}

// NewWithDependencies is like New but uses any collaborators given in deps. A camera that cannot
// be opened is not fatal; the robot then runs without odometry. If ctx is in debug mode, see
// logging.EnableDebugMode, every unit logs at debug level for the robot's whole life, whatever
// levels the config file sets later.
func NewWithDependencies(ctx context.Context, conf *config.Config, deps Dependencies, logger logging.Logger) (_ *Robot, err error) {
	if conf == nil {
		return nil, errors.New("robot needs a config")
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	r := &Robot{clk: clk, loggers: logging.NewRegistry(), logger: logger}
	sub := func(name string) logging.Logger {
		return r.loggers.Sublogger(logger, name)
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, r.closeCollaborators(ctx))
		}
	}()

	io := deps.Board
	if io == nil {
		if io, err = newBoard(ctx, conf, sub("board")); err != nil {
			return nil, err
		}
		r.closers = append(r.closers, io.Close)
	}

	r.camera = deps.Camera
	if r.camera == nil && conf.Camera.Model != "" {
		cam, camErr := newCamera(conf, clk, sub("camera"))
		if camErr != nil {
			logger.CWarnw(ctx, "camera unavailable, running without odometry", "model", conf.Camera.Model, "error", camErr)
		} else {
			r.camera = cam
			r.closers = append(r.closers, cam.Close)
		}
	}

	link := deps.Link
	if link == nil {
		owned, err := autopilot.NewLink(&conf.Autopilot, sub("autopilot"))
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func(context.Context) error { return owned.Close() })
		link = owned
	}

	threshold := deps.Threshold
	if threshold == nil {
		threshold, err = r.newThreshold(conf, sub("config"))
		if err != nil {
			return nil, err
		}
	}

	queueLogger := sub("queue")
	if r.readings, err = queue.NewBounded[ultrasonic.RangeReading]("ranging", conf.Queues.Ranging(), clk, queueLogger); err != nil {
		return nil, err
	}
	if r.array, err = ultrasonic.NewArray(&conf.Ranging, io, clk, sub("ranging")); err != nil {
		return nil, err
	}
	if r.camera != nil {
		if r.deltas, err = queue.NewBounded[odometry.MotionDelta]("odometry", conf.Queues.Odometry(), clk, queueLogger); err != nil {
			return nil, err
		}
		if r.engine, err = odometry.NewEngine(&conf.Odometry, clk, sub("odometry")); err != nil {
			return nil, err
		}
	}
	r.fusion, err = navigation.NewFusion(&conf.Navigation, navigation.Dependencies{
		Readings:  r.readings,
		Deltas:    r.deltas,
		Link:      link,
		Threshold: threshold,
		Clock:     clk,
	}, sub("navigation"))
	if err != nil {
		return nil, err
	}

	// Workers outlive ctx, but keep its debug mode.
	workersCtx := context.Background()
	if key := logging.DebugKey(ctx); key != "" {
		workersCtx = logging.EnableDebugMode(workersCtx, key)
		logger.CInfow(ctx, "debug logging forced for every unit", "debug_key", key)
	}
	r.workers = utils.NewStoppableWorkersWithContext(workersCtx,
		func(ctx context.Context) { r.array.Run(ctx, r.readings) },
		r.fusion.Run,
	)
	if r.engine != nil {
		r.workers.AddWorkers(func(ctx context.Context) { r.engine.Run(ctx, r.camera, r.deltas) })
	}
	logger.CInfow(ctx, "rover started", "sensors", len(r.array.Sensors()), "odometry", r.engine != nil,
		"avoidance_threshold_cm", threshold.AvoidanceThresholdCm())
	return r, nil
}

func newBoard(ctx context.Context, conf *config.Config, logger logging.Logger) (board.DigitalIO, error) {
	switch conf.Board.Model {
	case board.ModelFake:
		return fakeboard.NewBoardFromConfig(&conf.Board, conf.Ranging.TriggerToEcho()), nil
	case board.ModelPeriph:
		return periph.NewBoard(ctx, &conf.Board, logger)
	default:
		return nil, utils.NewUnknownModelError("board", conf.Board.Model)
	}
}

func newCamera(conf *config.Config, clk clock.Clock, logger logging.Logger) (camera.FrameSource, error) {
	switch conf.Camera.Model {
	case camera.ModelFake:
		return fakecamera.NewDriftingCamera(&conf.Camera, clk), nil
	case camera.ModelImageFile:
		return imagefile.NewSource(&conf.Camera, clk, logger)
	default:
		return nil, utils.NewUnknownModelError("camera", conf.Camera.Model)
	}
}

// newThreshold follows the config file when there is one, so the threshold and the debug flag can
// be changed without a restart.
func (r *Robot) newThreshold(conf *config.Config, logger logging.Logger) (navigation.ThresholdProvider, error) {
	if conf.ConfigFilePath == "" {
		return navigation.StaticThreshold(conf.AvoidanceThresholdCm), nil
	}
	watcher, err := config.NewWatcher(conf.ConfigFilePath, conf, logger)
	if err != nil {
		return nil, err
	}
	watcher.OnReload(func(newConf *config.Config) {
		level := logging.INFO
		if newConf.Debug {
			level = logging.DEBUG
		}
		r.loggers.SetLevel(level)
	})
	r.closers = append(r.closers, func(context.Context) error { return watcher.Close() })
	return watcher, nil
}

// Loggers returns the loggers of the robot's units, by unit name.
func (r *Robot) Loggers() *logging.Registry {
	return r.loggers
}

// State returns a snapshot of the fused navigation state.
func (r *Robot) State() navigation.State {
	return r.fusion.State()
}

// Status returns a snapshot of the robot's counters.
func (r *Robot) Status() Status {
	status := Status{
		Navigation:     r.fusion.Diagnostics().Stats(),
		RangingDropped: r.readings.Dropped(),
	}
	if r.engine != nil {
		stats := r.engine.Stats()
		status.Odometry = &stats
		status.OdometryDropped = r.deltas.Dropped()
	}
	return status
}

// Close stops every worker, then closes the collaborators the robot built.
func (r *Robot) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		slowWatcher := utils.SlowLogger(ctx, r.clk, "waiting for workers to stop", "robot", "rover", r.logger)
		r.workers.Stop()
		slowWatcher()
		r.closeErr = r.closeCollaborators(ctx)
		r.logger.CInfo(ctx, "rover stopped")
	})
	return r.closeErr
}

// closeCollaborators closes in reverse order of creation.
func (r *Robot) closeCollaborators(ctx context.Context) error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Combine(err, r.closers[i](ctx))
	}
	r.closers = nil
	return err
}
