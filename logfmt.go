package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type Formatter struct{}

func (f *Formatter) Format(entry *logrus.Entry) ([]byte, error) {
	var prefix string
	switch entry.Level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		prefix = "error: "
	case logrus.WarnLevel:
		prefix = "warning: "
	case logrus.DebugLevel, logrus.TraceLevel:
		prefix = "debug: "
	}
	return []byte(fmt.Sprintf("archrun: %s%s\n", prefix, entry.Message)), nil
}
