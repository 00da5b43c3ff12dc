// Package realtime maintains the chat socket: a single websocket to the
// hub's /ws endpoint that carries JSON event frames in both directions.
//
// The socket reconnects on its own with exponential backoff (1s doubling,
// capped at 30s) and gives up after ten consecutive failed dials. A
// successful connection resets the failure count.
//
// Frames have the shape:
//
//	{"event": "message", "data": {...}}
//
// Inbound frames that do not parse, or that carry no event name, are
// dropped.
package realtime
