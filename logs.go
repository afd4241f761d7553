package purfectgfx

import "log"

// Verbose enables informational logging (eviction, texture reallocation,
// deferred uploads). Errors are always logged.
var Verbose bool

// logV prints a formatted log message only when verbose logging is enabled.
func logV(format string, args ...interface{}) {
	if Verbose {
		log.Printf("purfectgfx: "+format, args...)
	}
}

// logError prints a formatted error message unconditionally.
func logError(format string, args ...interface{}) {
	log.Printf("purfectgfx: error: "+format, args...)
}
