// Package procrun spawns external tools (archival copy, encoder, sync,
// power commands) and streams their merged output line by line.
//
// Start returns a Process whose Lines iterator yields stdout and stderr
// interleaved, split on both newlines and carriage returns so encoder
// progress updates arrive as separate lines. A reader goroutine drains the
// pipe continuously, so a slow consumer never stalls the child. Wait reports
// the exit status: spawn failures carry services.ErrSpawn and non-zero exits
// return an *ExitError carrying services.ErrProcess. The runner applies no
// step policy of its own.
package procrun
