// Package filter parses the WHERE-style selection expressions accepted by the
// CLI into a typed predicate tree and evaluates them against ledger records.
//
// The grammar is the subset of SQLite conditions used against the inventory:
// AND/OR/NOT with parentheses, comparisons, LIKE, IN lists, IS [NOT] NULL,
// CONTAINS, and instr(column, 'text'). Column names are validated against a
// Schema supplied by the caller; nothing is ever concatenated into a query
// language.
package filter
