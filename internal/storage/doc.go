package storage

// Package storage provides a minimal persistence layer used by the bot.
//
// It currently supports:
//   - Audit log appends (proxied CLI requests)
//   - Notifier dedup state (to survive restarts)
