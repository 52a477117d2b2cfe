// Package log centralises Thorium's logging setup around klog, the way
// the teacher's common/pkg/log positions a thin wrapper rather than
// scattering klog.InitFlags calls across binaries.
package log

import (
	"k8s.io/klog/v2"
)

// Init wires klog flags (-v, -logtostderr, ...) into the standard flag
// set. Call once from each cmd/ main before flag.Parse.
func Init() {
	klog.InitFlags(nil)
}

// Sync flushes buffered log lines; call via defer in main.
func Sync() {
	klog.Flush()
}

// Component returns a logger tagged with a component name, mirroring
// klog.InfoS's structured key-value convention used throughout the
// teacher's handlers package.
func Component(name string) *ComponentLogger {
	return &ComponentLogger{name: name}
}

// ComponentLogger adds a "component" key to every structured log line.
type ComponentLogger struct {
	name string
}

func (c *ComponentLogger) Info(msg string, kv ...interface{}) {
	klog.InfoS(msg, append([]interface{}{"component", c.name}, kv...)...)
}

func (c *ComponentLogger) Error(err error, msg string, kv ...interface{}) {
	klog.ErrorS(err, msg, append([]interface{}{"component", c.name}, kv...)...)
}

func (c *ComponentLogger) Warning(msg string, kv ...interface{}) {
	klog.InfoS("WARNING: "+msg, append([]interface{}{"component", c.name}, kv...)...)
}
