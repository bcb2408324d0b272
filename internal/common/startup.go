package common

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

const logLevelEnvVar = "FAREOPS_LOG_LEVEL"

// ConfigureCommandLineLogging sets up logrus for pipeline stages: plain text on stdout, so
// the orchestrator captures progress alongside command output.
func ConfigureCommandLineLogging() {
	commandLineFormatter := new(log.TextFormatter)
	commandLineFormatter.ForceColors = false
	commandLineFormatter.FullTimestamp = true
	commandLineFormatter.DisableLevelTruncation = true
	log.SetFormatter(commandLineFormatter)
	log.SetOutput(os.Stdout)
	log.SetLevel(levelFromEnv(os.Getenv(logLevelEnvVar)))
}

func levelFromEnv(value string) log.Level {
	if level, err := log.ParseLevel(strings.TrimSpace(value)); err == nil {
		return level
	}
	return log.InfoLevel
}
