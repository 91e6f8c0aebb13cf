// Package tiktok defines the boundary to the platform's real-time protocol:
// typed interaction events, the Client/Conn interfaces the monitor depends
// on, and a websocket bridge implementation. The wire protocol itself lives
// behind the bridge and is out of scope here.
package tiktok
