// Package chat contains the Mixer chat connection and the !clip command parser.
//
// The connection is a single websocket per process:
//   - Dial opens it and starts one read goroutine. Nothing is written until the
//     server's WelcomeEvent arrives; the session then sends exactly one auth
//     method call with [channelId, userId, authKey].
//   - Every inbound event is decoded and handed to the Handler on the read
//     goroutine, so events are processed one at a time in arrival order.
//   - Send wraps text in a msg method call. It fails with ErrNotConnected once
//     the connection is gone; nothing is queued.
//
// The session never reconnects by itself. Reconnect policy, when enabled,
// belongs to the caller because a new connection needs a fresh auth key.
package chat
