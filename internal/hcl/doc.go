// Package hcl loads pipeline definitions written in HCL and translates them
// into the format-agnostic config model. Stage and loop blocks are read in
// source order, because declaration order is execution order.
package hcl
