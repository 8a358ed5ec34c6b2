package schedule

import "slices"

// CompareTasks orders tasks by due time.
func CompareTasks(a, b Task) int {
	return a.Timestamp.Compare(b.Timestamp)
}

// SortTasks sorts by due time. Tasks due at the same instant keep their
// generation order, which is also index order.
func SortTasks(tasks []Task) {
	slices.SortStableFunc(tasks, CompareTasks)
}
