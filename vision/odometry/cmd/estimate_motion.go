// Package main estimates the camera motion between two image files.
package main

import (
	"context"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/rover/logging"
	"go.viam.com/rover/rimage"
	"go.viam.com/rover/vision/odometry"
)

var logger = logging.NewLogger("estimate_motion")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	Previous string `flag:"0,required,usage=previous frame image file"`
	Current  string `flag:"1,required,usage=current frame image file"`
	Config   string `flag:"config,usage=odometry config json file"`
	Debug    bool   `flag:"debug,usage=log matching details"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}
	if argsParsed.Debug {
		logger.SetLevel(logging.DEBUG)
	}

	conf := &odometry.Config{}
	if argsParsed.Config != "" {
		var err error
		if conf, err = odometry.LoadConfig(argsParsed.Config); err != nil {
			return err
		}
	}
	engine, err := odometry.NewEngine(conf, nil, logger)
	if err != nil {
		return err
	}

	delta, err := RunMotionEstimation(engine, argsParsed.Previous, argsParsed.Current)
	if err != nil {
		return err
	}
	logger.CInfow(ctx, "estimated motion",
		"dx", delta.DX, "dy", delta.DY, "yaw", delta.Yaw, "zero", delta.IsZero())
	return nil
}

// RunMotionEstimation feeds the two image files through the engine and returns the delta of the
// second relative to the first.
func RunMotionEstimation(engine *odometry.Engine, previousPath, currentPath string) (odometry.MotionDelta, error) {
	for i, path := range []string{previousPath, currentPath} {
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			return odometry.MotionDelta{}, errors.Wrapf(err, "cannot open %q", path)
		}
		delta, emit, err := engine.Process(rimage.MakeGray(img), uint32(i))
		if err != nil {
			return odometry.MotionDelta{}, errors.Wrapf(err, "cannot process %q", path)
		}
		if emit {
			return delta, nil
		}
	}
	return odometry.MotionDelta{}, errors.New("no motion estimate produced")
}
