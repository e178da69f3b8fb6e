package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  *logrus.Logger
	ErrorLogger *logrus.Logger
)

func InitLogger() {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()

	// Set output untuk InfoLogger ke stdout
	InfoLogger.SetOutput(os.Stdout)

	// Set output untuk ErrorLogger ke stderr
	ErrorLogger.SetOutput(os.Stderr)

	// LOG_FORMAT=json untuk perangkat yang log-nya dikumpulkan terpusat
	if os.Getenv("LOG_FORMAT") == "json" {
		InfoLogger.SetFormatter(&logrus.JSONFormatter{})
		ErrorLogger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		InfoLogger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		ErrorLogger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	InfoLogger.SetLevel(logrus.InfoLevel)
	ErrorLogger.SetLevel(logrus.ErrorLevel)
}
