// Package lifecycle holds small shared runtime types that several layers
// (app, plugin manager, services) need without importing each other.
package lifecycle

// StopReason says why a component is being stopped. It is attached to stop
// logs and events so operators can tell a config-driven disable from a
// shutdown signal.
type StopReason string

const (
	StopUnknown          StopReason = "unknown"
	StopSIGINT           StopReason = "sigint"
	StopSIGTERM          StopReason = "sigterm"
	StopFatalError       StopReason = "fatal_error"
	StopAppStop          StopReason = "app_stop"
	StopPluginDisable    StopReason = "plugin_disable"
	StopPluginQuarantine StopReason = "plugin_quarantine"
	StopConfigReload     StopReason = "config_reload"
)
