package logger

import (
	"os"
	"strings"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// ParseEnv приводит строку из конфига к Env. Неизвестное значение: "",
// тогда Init возьмёт окружение из APP_ENV.
func ParseEnv(raw string) Env {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod", "pre-production":
		return EnvStage
	case "dev", "development", "local":
		return EnvDev
	default:
		return ""
	}
}

func DetectEnv() Env {
	if env := ParseEnv(os.Getenv("APP_ENV")); env != "" {
		return env
	}
	return EnvDev
}
