package container

import (
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "container")
