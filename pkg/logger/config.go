package logger

import "log/slog"

type Backend string

const (
	BackendStd Backend = "std" // slog: text в dev, JSON в stage/prod
	BackendZap Backend = "zap" // slog-zap, JSON
)

type Config struct {
	Service    string
	Version    string
	InstanceID string // пусто: см. ensureInstanceID

	Level   slog.Level
	Env     Env
	Backend Backend // пусто: std в dev, zap в stage/prod
	Debug   bool    // Debug-уровень, если Level не задан

	// Zap sampling; SampleTick в секундах
	SampleInitial    int
	SampleThereafter int
	SampleTick       int

	AddSource bool
}
