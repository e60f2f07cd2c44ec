// Package msgstore defines the optional message persistence collaborator
// named in spec §6.3: a write-only, append-style record of every message
// exchanged, keyed by session. Like session.Store, this is a fire-and-forget
// collaborator: a host wires it in, and failures never block stream
// emission (spec §5).
package msgstore

import "context"

// Entity is one persisted message record, matching spec §6.3's
// MessageEntity{id, session_id, message_json, timestamp_ms_epoch,
// message_type}.
type Entity struct {
	ID               string
	SessionID        string
	MessageJSON      string
	TimestampMsEpoch int64
	MessageType      string
}

// Store persists message entities. Implementations must be safe for
// concurrent use.
type Store interface {
	Create(ctx context.Context, entity Entity) error
}
