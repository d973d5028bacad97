// Package dag models the producer/consumer dependency structure of a
// pipeline as a directed acyclic graph. It provides the graph construction
// and cycle-detection primitives used at validation time, and the map
// inversion used by the memory manager to decide when a produced variable
// has no remaining readers.
package dag
