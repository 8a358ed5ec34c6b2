// Package protocol holds the passive data that describes an assessment and how
// it recurs. Nothing here computes a schedule; see internal/schedule.
package protocol
