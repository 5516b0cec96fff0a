package plugin

import "claudebot/internal/transport/telegram/router"

// Schedule parsing helpers.
// These are used by plugins to validate schedule strings in their config.

type ScheduleKind = router.ScheduleKind

type ParsedSchedule = router.ParsedSchedule

const (
	ScheduleCron     = router.ScheduleCron
	ScheduleInterval = router.ScheduleInterval
)

func ParseSchedule(raw string) (ParsedSchedule, error) {
	return router.ParseSchedule(raw)
}
