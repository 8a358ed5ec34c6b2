// Package schedule turns assessment protocols into an ordered task list.
//
// The pipeline is:
//   - Expander: one assessment + reference time -> occurrence timestamps
//   - Builder: occurrence -> Task
//   - Reconcile: overlay previously completed tasks, tolerating a timezone shift
//   - Generator: fan out over all assessments, reconcile, sort
//
// Everything except Generator.Generate is synchronous and pure; Generate only
// adds the boundary fetches of assessments and completion records.
package schedule
