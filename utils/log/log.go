package log

import (
	"os"
	"time"

	ddhook "github.com/bin3377/logrus-datadog-hook"
	"github.com/sirupsen/logrus"

	"github.com/Luismorlan/zsxqintel/utils/dotenv"
)

const (
	datadogUSHost    = "http-intake.logs.datadoghq.com"
	syncFrequencySec = 30
	syncRetry        = 3

	defaultServiceName = "zsxqintel"
)

// global accessible logger
var (
	logger *logrus.Logger
	Log    *logrus.Entry
)

// This init function is only for testing cases, where the entry point is not
// main function. Unit test will fail with nil pointer dereference if we don't
// init here.
func init() {
	InitLogger(defaultServiceName)
}

// InitLogger rebuilds the global logger tagged with the given service name.
// Binaries call it once after parsing flags.
func InitLogger(serviceName string) {
	logger = logrus.New()

	isProd := os.Getenv(dotenv.EnvKey) == dotenv.ProdEnv
	if apiKey := os.Getenv("DD_API_KEY"); isProd && apiKey != "" {
		hook := ddhook.NewHook(
			datadogUSHost,
			apiKey,
			syncFrequencySec*time.Second,
			syncRetry,
			logrus.InfoLevel,
			&logrus.JSONFormatter{},
			ddhook.Options{},
		)
		logger.Hooks.Add(hook)
	}

	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	// Also send log to stderr, without json formatter for better readability
	logger.SetOutput(os.Stderr)

	Log = logger.WithFields(
		logrus.Fields{"service": serviceName, "is_development": !isProd},
	)
}
