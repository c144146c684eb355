// Package catalog parses the tab-separated record source into an ordered
// index.
//
// Each source row is
//
//	id <TAB> comma-separated categories <TAB> text
//
// The order in which derived ids first appear is the canonical order of a
// run. Split assignment, shard planning and assembly all iterate it, so the
// Index exposes it as a materialized slice rather than map iteration.
package catalog
