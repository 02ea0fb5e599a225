// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used by the session channel.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected without the director or stage subprotocol.
	InvalidAuthTokenError = 3001 // Director channel opened without a valid token.
	NotOwnerError         = 3002 // Director channel opened by someone other than the session owner.
	InvalidSessionIDError = 3003 // Target session does not exist.
	SlowConsumerError     = 3004 // Viewer fell too far behind the snapshot stream.
)
