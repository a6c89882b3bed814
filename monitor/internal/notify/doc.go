// Package notify turns banner changes in successive health reports into
// webhook notifications. A Notifier remembers the last banner seen per
// source and delivers a Notification to Slack, Microsoft Teams, DingTalk or
// a generic HTTP endpoint whenever it changes, with a per-banner cooldown
// that suppresses flapping.
package notify
