// Package heartbeat infers host liveness from HTTP health probes and power draw.
//
// A Monitor runs one background loop. Each cycle probes the host, reads the latest
// power sample for the host device and applies the detection policy: a success
// brings the host ONLINE, three consecutive failures are interpreted through the
// power reading (off, standby, crashed service) before any failover happens.
package heartbeat
