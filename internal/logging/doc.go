// Package logging provides file-based logging with rotation for annlsh.
// Setup writes JSON logs at the configured level to a rotating file under
// ~/.annlsh/logs/, and also to stderr when Config.WriteToStderr is set.
//
// The demo CLI's --debug flag lowers the level to debug.
package logging
