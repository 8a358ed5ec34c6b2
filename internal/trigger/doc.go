// Package trigger decides when the schedule is regenerated.
//
// Regenerations come from a cron or interval refresh schedule, from a
// periodic timezone check and from explicit requests (config or protocol
// changes). All of them funnel through one worker so at most one
// regeneration runs at a time, and a token bucket caps how often they run.
// Requests that arrive while one is already pending are coalesced.
package trigger
