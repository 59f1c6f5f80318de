package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl writes every enabled statement to each of its appenders. Subloggers share the appenders
// but own their level.
type impl struct {
	name  string
	level AtomicLevel
	inUTC bool

	appenders []Appender
}

// Statements that are not context aware never force debug output.
var noDebugCtx = context.Background()

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Level() zapcore.Level {
	return imp.GetLevel().AsZap()
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{
		name:      name,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
	}
}

func (imp *impl) Sync() error {
	var err error
	for _, appender := range imp.appenders {
		err = multierr.Combine(err, appender.Sync())
	}
	return err
}

// AsZap builds a zap logger over the appenders that are themselves zap cores, such as the test
// observer. It follows GlobalLogLevel rather than this logger's level.
func (imp *impl) AsZap() *zap.SugaredLogger {
	config := NewZapLoggerConfig()
	config.Level = GlobalLogLevel
	ret := zap.Must(config.Build()).Sugar().Named(imp.name)
	for _, appender := range imp.appenders {
		core, ok := appender.(zapcore.Core)
		if !ok {
			continue
		}
		ret = ret.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, core)
		}))
	}
	return ret
}

func (imp *impl) Desugar() *zap.Logger {
	return imp.AsZap().Desugar()
}

func (imp *impl) Named(name string) *zap.SugaredLogger {
	return imp.AsZap().Named(name)
}

func (imp *impl) With(args ...interface{}) *zap.SugaredLogger {
	return imp.AsZap().With(args...)
}

func (imp *impl) WithOptions(opts ...zap.Option) *zap.SugaredLogger {
	return imp.AsZap().WithOptions(opts...)
}

func (imp *impl) enabled(ctx context.Context, level Level) bool {
	if GlobalLogLevel.Level() == zapcore.DebugLevel || IsDebugMode(ctx) {
		return true
	}
	return level >= imp.level.Get()
}

// write is the only path to the appenders. The message is rendered only for enabled statements.
// Every exported logging method must call write directly so the caller lookup lands on user code.
func (imp *impl) write(ctx context.Context, level Level, render func() string, keysAndValues []interface{}) {
	if !imp.enabled(ctx, level) {
		return
	}
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: imp.name,
		Message:    render(),
		Caller:     getCaller(),
	}
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}
	fields := toFields(keysAndValues)
	for _, appender := range imp.appenders {
		if err := appender.Write(entry, fields); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

// toFields pairs up keys and values. Values are json serialized, so only public struct fields
// show. A trailing key without a value is kept with an error in its place.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	if len(keysAndValues) == 0 {
		return nil
	}
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.Any(key, errors.New("unpaired log key")))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

func sprint(args []interface{}) func() string {
	return func() string { return fmt.Sprint(args...) }
}

func sprintf(template string, args []interface{}) func() string {
	return func() string { return fmt.Sprintf(template, args...) }
}

func literal(msg string) func() string {
	return func() string { return msg }
}

func (imp *impl) Debug(args ...interface{}) {
	imp.write(noDebugCtx, DEBUG, sprint(args), nil)
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	imp.write(noDebugCtx, DEBUG, sprintf(template, args), nil)
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	imp.write(noDebugCtx, DEBUG, literal(msg), keysAndValues)
}

func (imp *impl) CDebugw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.write(ctx, DEBUG, literal(msg), keysAndValues)
}

func (imp *impl) Info(args ...interface{}) {
	imp.write(noDebugCtx, INFO, sprint(args), nil)
}

func (imp *impl) Infof(template string, args ...interface{}) {
	imp.write(noDebugCtx, INFO, sprintf(template, args), nil)
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	imp.write(noDebugCtx, INFO, literal(msg), keysAndValues)
}

func (imp *impl) CInfo(ctx context.Context, args ...interface{}) {
	imp.write(ctx, INFO, sprint(args), nil)
}

func (imp *impl) CInfow(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.write(ctx, INFO, literal(msg), keysAndValues)
}

func (imp *impl) Warn(args ...interface{}) {
	imp.write(noDebugCtx, WARN, sprint(args), nil)
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	imp.write(noDebugCtx, WARN, sprintf(template, args), nil)
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	imp.write(noDebugCtx, WARN, literal(msg), keysAndValues)
}

func (imp *impl) CWarnw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.write(ctx, WARN, literal(msg), keysAndValues)
}

func (imp *impl) Error(args ...interface{}) {
	imp.write(noDebugCtx, ERROR, sprint(args), nil)
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	imp.write(noDebugCtx, ERROR, sprintf(template, args), nil)
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	imp.write(noDebugCtx, ERROR, literal(msg), keysAndValues)
}

func (imp *impl) CErrorw(ctx context.Context, msg string, keysAndValues ...interface{}) {
	imp.write(ctx, ERROR, literal(msg), keysAndValues)
}

// The Fatal methods log at error level and exit.
func (imp *impl) Fatal(args ...interface{}) {
	imp.write(noDebugCtx, ERROR, sprint(args), nil)
	os.Exit(1)
}

func (imp *impl) Fatalf(template string, args ...interface{}) {
	imp.write(noDebugCtx, ERROR, sprintf(template, args), nil)
	os.Exit(1)
}

func (imp *impl) Fatalw(msg string, keysAndValues ...interface{}) {
	imp.write(noDebugCtx, ERROR, literal(msg), keysAndValues)
	os.Exit(1)
}

// getCaller resolves the code that called an exported logging method: getCaller, write, the
// exported method, then the caller.
func getCaller() zapcore.EntryCaller {
	const skipToLogCaller = 3
	pc, file, line, ok := runtime.Caller(skipToLogCaller)
	if !ok {
		return zapcore.EntryCaller{}
	}
	caller := zapcore.EntryCaller{Defined: true, PC: pc, File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		caller.Function = fn.Name()
	}
	return caller
}
