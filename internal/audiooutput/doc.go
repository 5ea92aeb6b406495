// Package audiooutput buffers converted audio chunks for a pull-style sink.
//
// A decode goroutine submits chunks in playback order and the sink's callback
// reads exact byte counts. Reads block until data arrives and are padded with
// silence once the device is stopped, so a sink is never handed a short read.
package audiooutput
