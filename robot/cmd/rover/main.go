// Package main runs the rover.
package main

import (
	"context"

	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/rover/config"
	"go.viam.com/rover/logging"
	"go.viam.com/rover/robot"
)

var logger = logging.NewLogger("rover")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"config,required,usage=rover config file"`
	Debug      bool   `flag:"debug,usage=enable debug logging"`
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	conf, err := config.Read(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	if argsParsed.Debug || conf.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	if argsParsed.Debug {
		// Survives config reloads that turn debug off.
		ctx = logging.EnableDebugMode(ctx, "cli")
	}
	if conf.LogFile != "" {
		fileCloser, appender := logging.NewFileAppender(conf.LogFile)
		logger.AddAppender(appender)
		defer func() {
			err = multierr.Combine(err, logger.Sync(), fileCloser.Close())
		}()
	}

	myRobot, err := robot.New(ctx, conf, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, myRobot.Close(context.Background()))
	}()

	<-ctx.Done()
	return nil
}
