// Package websocket pushes dataset refresh events to connected viewers.
//
// The Hub owns the client set and fans out JSON event envelopes from
// pkg/contracts/events; Client runs the read/write pumps for one gorilla
// connection. Clients are passive listeners: the read pump only services
// heartbeats and pong frames, and a client whose send buffer fills up is
// evicted so one stalled browser cannot block a broadcast.
//
// Wiring:
//
//	hub := websocket.NewHub(logger)
//	hub.SetMetrics(businessMetrics)
//	hub.SetKeepalive(keepalive)
//	hub.Start()
//	defer hub.Stop()
//
//	// from the HTTP layer, after the upgrade:
//	websocket.ServeWS(hub, conn, traceID)
//
//	// from the data service:
//	hub.PublishRefreshStarted(runID)
package websocket
