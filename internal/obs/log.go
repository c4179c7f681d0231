package obs

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a text-formatted logrus.Logger writing to stderr at the
// given level. Passing an empty level defaults to "info".
func NewLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)
	return log, nil
}
