// Package staffapply implements a Discord bot that runs a staff
// application workflow for the guilds it serves.
//
// Operators configure the workflow per guild through a setup wizard
// (/setup), which collects the review channel, the role IDs allowed to
// manage the system, the role IDs granted on acceptance, and an audit
// log channel, then posts a public button that opens the application
// form. Submissions are stored, rate-limited by a per-user cooldown,
// and posted to the review channel for an accept/reject decision.
//
// Key components of the package include:
//
//   - StaffApply: The main struct that encapsulates the bot's core functionality.
//   - Discord: Handles the gateway session and slash command registration.
//   - API: A small liveness HTTP server for uptime monitoring.
//   - Store: Handles data persistence and retrieval.
//
// The bot supports various commands:
//
//   - /setup: Starts the per-guild configuration wizard.
//   - /block, /remove-block: Manage the per-guild application blocklist.
//   - /stats: Shows per-guild application counters.
//   - /check-user: Shows a user's application history and block status.
//   - /clear-cooldown: Resets a user's submission cooldown.
//
// All interactions are routed through a single dispatch table keyed by
// interaction kind and symbolic ID, and recorded for troubleshooting.
package staffapply
