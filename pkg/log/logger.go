package log

import "github.com/sirupsen/logrus"

var logger = logrus.New()

func WithField(key string, value interface{}) *logrus.Entry {
	return logger.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// SetLevel adjusts the shared logger level, unknown values are ignored.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("unknown log level %q", level)
		return
	}
	logger.SetLevel(parsed)
}
