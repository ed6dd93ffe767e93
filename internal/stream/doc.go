// Package stream is the live progress channel of a chat session.
//
// A Client holds one WebSocket at {wsBase}/ws/chat/{sessionId}/. Inbound
// frames are decoded into typed events at the boundary; malformed frames are
// logged and dropped without touching the connection. Unexpected closes are
// followed by linear-backoff reconnects up to a fixed ceiling.
//
// Example Usage:
//
//	client, err := stream.NewClient(stream.Config{
//		BaseURL:   "ws://localhost:8000",
//		SessionID: id,
//	}, logger)
//	unsubscribe := client.OnMessage(func(ev stream.Event) { ... })
//	defer unsubscribe()
//	if err := client.Connect(ctx); err != nil { ... }
package stream
