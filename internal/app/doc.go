// Package app wires the application together: it configures logging, loads
// definition files through the format-specific loaders, registers recipe
// modules, and drives a pipeline run end to end.
package app
