/*
Package log is a small configurable logger built on zerolog
(https://github.com/rs/zerolog).

It reads an optional TOML file next to the binary (pixelog.toml), or at the
path given by the PIXELBOARD_LOGCONFIG environment variable:

 # one of debug/info/warn/error/fatal/panic
 level = "info"

 # one of console, console_no_color, json
 formatter = "console"

 # print source file and line
 caller = false

 # per-module level overrides
 [board]
 level = "debug"
*/
package log

import (
	"os"
	"strings"
	"sync"

	colorable "github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	confEnvPrefix   = "PIXELBOARD"
	confFilePathKey = "LOGCONFIG"
	confFileName    = "pixelog"
)

var (
	baseLogger = zerolog.New(os.Stderr)
	baseLevel  = zerolog.InfoLevel
	conf       = viper.New()
	initLock   sync.Mutex
	initDone   bool
)

// Logger is a module-tagged zerolog logger.
type Logger struct {
	*zerolog.Logger
	name  string
	level zerolog.Level
}

func loadConfig() {
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.SetEnvPrefix(confEnvPrefix)
	conf.AutomaticEnv()

	conf.SetConfigType("toml")
	conf.SetConfigName(confFileName)
	conf.AddConfigPath(".")

	if path := conf.GetString(confFilePathKey); path != "" {
		conf.SetConfigFile(path)
	}

	if err := conf.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			baseLogger.Error().Err(err).Msg("Failed to read log config file")
		}
	}
}

func initBase() {
	if format := conf.GetString("timefieldformat"); format != "" {
		zerolog.TimeFieldFormat = format
	}

	switch strings.ToLower(conf.GetString("formatter")) {
	case "", "json":
	case "console":
		baseLogger = baseLogger.Output(zerolog.ConsoleWriter{
			Out:        colorable.NewColorable(os.Stderr),
			TimeFormat: zerolog.TimeFieldFormat,
		})
	case "console_no_color":
		baseLogger = baseLogger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			NoColor:    true,
			TimeFormat: zerolog.TimeFieldFormat,
		})
	default:
		baseLogger.Warn().Str("formatter", conf.GetString("formatter")).
			Msg("Unknown formatter, allowed: console/console_no_color/json")
	}

	if conf.GetBool("caller") {
		baseLogger = baseLogger.With().Caller().Logger()
	}

	level := zerolog.InfoLevel
	if name := conf.GetString("level"); name != "" {
		parsed, err := zerolog.ParseLevel(name)
		if err != nil {
			baseLogger.Warn().Err(err).Msg("Failed to parse log level, using info")
		} else {
			level = parsed
		}
	}

	baseLogger = baseLogger.With().Timestamp().Logger().Level(level)
	baseLevel = level
}

func ensureInit(readFile bool) {
	if initDone {
		return
	}
	if readFile {
		loadConfig()
	}
	initBase()
	initDone = true
}

// NewLogger returns a logger tagged with moduleName. A [moduleName] section
// in the config file may override the base level for that module.
func NewLogger(moduleName string) *Logger {
	initLock.Lock()
	defer initLock.Unlock()
	ensureInit(true)

	sub := baseLogger.With().Str("module", moduleName).Logger()
	level := baseLevel
	if modConf := conf.Sub(moduleName); modConf != nil {
		if name := modConf.GetString("level"); name != "" {
			parsed, err := zerolog.ParseLevel(name)
			if err != nil {
				parsed = zerolog.InfoLevel
			}
			level = parsed
			sub = sub.Level(level)
		}
	}

	return &Logger{Logger: &sub, name: moduleName, level: level}
}

// Default returns the logger without a module tag.
func Default() *Logger {
	initLock.Lock()
	defer initLock.Unlock()
	ensureInit(false)

	return &Logger{Logger: &baseLogger, name: "", level: baseLevel}
}

// IsDebugEnabled reports whether debug statements would be emitted. Use it to
// skip expensive log argument construction.
func (logger *Logger) IsDebugEnabled() bool {
	return logger.level <= zerolog.DebugLevel
}

// Level returns the logger's level name.
func (logger *Logger) Level() string {
	return logger.level.String()
}
