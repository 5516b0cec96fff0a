// Package notifier provides the async notification pipeline.
//
// Notifications are small, high-signal messages intended for operators:
// alerts, status updates, action confirmations. A notification carries a
// priority, a target chat (optionally with a thread/topic), and send options.
//
// Delivery is delegated to a kit.Adapter implementation (the Telegram
// adapter), so plugins can emit notifications without depending on a
// specific messaging platform. Failures wrapped in kit.ErrPermanent are not
// retried; everything else backs off exponentially up to the configured
// attempt cap.
//
// A small in-memory history of recent sends is kept for operator visibility.
package notifier
