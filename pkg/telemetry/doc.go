// Package telemetry provides the power readings the heartbeat uses as a tie-breaker.
//
// A Buffer keeps only the latest reading per device and answers role lookups without
// I/O. A Poller fills the buffer from Meters on its own clock; the Modbus meter reads a
// smart plug or energy meter register over Modbus TCP.
package telemetry
