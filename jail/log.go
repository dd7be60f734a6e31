package jail

import "github.com/sirupsen/logrus"

// logger receives debug-level traces of every lifecycle operation.  The
// default goes to the standard logrus logger; embedders can redirect it.
var logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger redirects the package's operation traces.
func SetLogger(l logrus.FieldLogger) {
	if l != nil {
		logger = l
	}
}
