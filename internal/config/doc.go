// Package config defines the format-agnostic model of a declarative
// pipeline definition, plus the Loader interface that format-specific
// loaders (HCL, YAML) implement. The builder turns a model into runnable
// pipeline values; nothing here executes.
package config
