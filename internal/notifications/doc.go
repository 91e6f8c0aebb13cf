// Package notifications sends optional ntfy push notifications for monitor
// lifecycle and recording events.
package notifications
