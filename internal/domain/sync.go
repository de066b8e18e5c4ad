package domain

// EntityKind names one logical table shared by both stores
type EntityKind string

const (
	KindUsers        EntityKind = "users"
	KindSessions     EntityKind = "sessions"
	KindVerification EntityKind = "verification"
	KindResetTokens  EntityKind = "reset_tokens"
)

// Kinds lists every entity kind in reconciliation order
var Kinds = []EntityKind{KindUsers, KindSessions, KindVerification, KindResetTokens}

// Syncable is implemented by every record the secondary store can hold
type Syncable interface {
	// SyncKey is the record key inside its kind
	SyncKey() string
	// SyncRevision grows with every local write of the key
	SyncRevision() int64
	// SyncExpiry is the unix time after which the record is worthless, zero if never
	SyncExpiry() int64
}
