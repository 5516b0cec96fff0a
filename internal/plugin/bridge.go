package plugin

import (
	"claudebot/internal/config"
	"claudebot/internal/runtime/lifecycle"
	"claudebot/internal/runtime/supervisor"
	"claudebot/internal/transport/telegram/router"
)

// ---- Config ----

type Config = config.Config

type ConfigManager = config.Manager

// PluginConfigRaw is the raw per-plugin config blob inside config.Config.
// It lives in the config package to keep the schema centralized.
type PluginConfigRaw = config.PluginConfigRaw

// ---- Runtime ----

type Supervisor = supervisor.Supervisor

var NewSupervisor = supervisor.New

var WithLogger = supervisor.WithLogger

var WithCancelOnError = supervisor.WithCancelOnError

type StopReason = lifecycle.StopReason

const (
	StopAppStop          = lifecycle.StopAppStop
	StopPluginDisable    = lifecycle.StopPluginDisable
	StopPluginQuarantine = lifecycle.StopPluginQuarantine
	StopConfigReload     = lifecycle.StopConfigReload
)

// ---- Router API (commands / callbacks) ----

type Access = router.Access

const (
	AccessEveryone  = router.AccessEveryone
	AccessOwnerOnly = router.AccessOwnerOnly
)

type Command = router.Command

type Request = router.Request

type HandlerFunc = router.HandlerFunc

type CallbackHandlerFunc = router.CallbackHandlerFunc

type CallbackRoute = router.CallbackRoute

type CallbackAccess = router.CallbackAccess

const (
	CallbackAccessOwnerOnly = router.CallbackAccessOwnerOnly
	CallbackAccessEveryone  = router.CallbackAccessEveryone
)

type Services = router.Services

type CommandManager = router.CommandManager

// ---- Service ports (scheduler/notifier/plugins) ----

type SchedulerPort = router.SchedulerPort

type NotifierPort = router.NotifierPort

type PluginsPort = router.PluginsPort

// ---- Scheduler option types ----

type TaskOptions = router.TaskOptions

type Snapshot = router.Snapshot
