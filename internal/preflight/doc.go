// Package preflight provides readiness checks for the tools and paths a
// conversion run depends on.
//
// The run command calls RunAll before touching any file and refuses to
// start when a required check fails, so a missing encoder or a full backup
// disk is reported up front instead of as a string of per-file failures.
// The preflight command prints the same results as a table.
package preflight
