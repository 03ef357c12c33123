// Package alert persists detection events to an audit log and signals them
// audibly. The two outputs are independent and best-effort: a failed sound
// never blocks the audit write, and a failed write never mutes the sound.
// Detection itself does not depend on this package succeeding.
package alert
