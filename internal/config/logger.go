package config

import (
    "strings"

    "github.com/rotisserie/eris"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// InitLogger builds the process-wide zap logger and installs it as the
// global logger.  format "console" selects the development encoder; anything
// else logs JSON.
func InitLogger(level, format string) (*zap.Logger, error) {
    var lvl zapcore.Level
    if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
        return nil, eris.Wrapf(err, "config: invalid log level %q", level)
    }

    var zc zap.Config
    if strings.EqualFold(format, "console") {
        zc = zap.NewDevelopmentConfig()
    } else {
        zc = zap.NewProductionConfig()
    }
    zc.Level = zap.NewAtomicLevelAt(lvl)

    logger, err := zc.Build()
    if err != nil {
        return nil, eris.Wrap(err, "config: build logger")
    }
    zap.ReplaceGlobals(logger)
    return logger, nil
}
