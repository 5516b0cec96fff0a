package router

import (
	"claudebot/internal/config"
	"claudebot/internal/plugin/ops"
	"claudebot/internal/runtime/supervisor"
	"claudebot/internal/scheduler"
)

// ---- Config ----

type Config = config.Config

type ConfigManager = config.Manager

// ---- Runtime ----

type Supervisor = supervisor.Supervisor

var NewSupervisor = supervisor.New

var WithLogger = supervisor.WithLogger

var WithCancelOnError = supervisor.WithCancelOnError

// ---- Restart helpers (for resilient worker loops) ----

type RestartOption = supervisor.RestartOption

var WithRestartBackoff = supervisor.WithRestartBackoff

var WithMaxRestarts = supervisor.WithMaxRestarts

// ---- Scheduler operational types ----

type TaskOptions = scheduler.TaskOptions

type Snapshot = scheduler.Snapshot

// ---- Plugin operational types (no import cycle) ----

type PluginsSnapshot = ops.PluginsSnapshot

type PluginStatus = ops.PluginStatus

type PluginHealthResult = ops.PluginHealthResult

// ---- Schedule parsing (shared between router & plugins) ----

type ScheduleKind = scheduler.SpecKind

type ParsedSchedule = scheduler.ParsedSpec

const (
	ScheduleCron     = scheduler.SpecCron
	ScheduleInterval = scheduler.SpecInterval
)

func ParseSchedule(raw string) (ParsedSchedule, error) {
	return scheduler.ParseSchedule(raw)
}
