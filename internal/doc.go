// Package internal holds identifier generation shared by the root package
// and its flows. Nothing here performs I/O.
package internal
