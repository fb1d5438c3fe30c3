// Package workspace lays out the working root and owns the lifetime of each
// task's working directory.
//
// Under the working root, task directories live at build/<identity> and are
// destroyed and recreated at fetch time, then reclaimed when the run ends.
// Templates are read from templates/<owner>+<name> and are never written.
//
// Reclaim runs on every exit path. With keep-on-failure enabled, the
// directory of a failed run is left in place for inspection.
package workspace
