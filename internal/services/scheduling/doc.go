// Package scheduling is the stateful side of schedule generation. It reads
// the generator's inputs from storage, runs it and persists the outputs,
// records completions and answers "what is due" queries.
//
// All mutating operations are serialized per Service so two generations
// never interleave their writes.
package scheduling
