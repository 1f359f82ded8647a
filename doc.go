/*
Package balupi is the companion node that keeps a home NAS reachable.

The companion watches the host (HTTP health plus the power draw of its smart plug or
meter), tracks its lifecycle in a persisted state machine and points a local DNS alias
at whichever machine should answer: the host while it is up, the companion itself
while it is down. The host cooperates through signed handshake messages sent right
before shutdown and right after boot.

# Lifecycle

	UNKNOWN -> ONLINE | OFFLINE
	OFFLINE -> BOOTING | ONLINE
	BOOTING -> ONLINE | OFFLINE
	ONLINE -> SHUTTING_DOWN | OFFLINE
	SHUTTING_DOWN -> OFFLINE | ONLINE

# Usage

A Companion is assembled from a loaded configuration and run until its context ends:

	cfg, err := config.Load("balupi.yaml")
	if err != nil {
		log.Fatal(err)
	}
	c, err := balupi.New(ctx, cfg, balupi.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()
	log.Fatal(c.Run(ctx))
*/
package balupi
