package types

// IBC client events
const (
	EventTypeCreateClient = "create_client"
	EventTypeUpdateClient = "update_client"
	EventTypeClientFrozen = "client_frozen"

	AttributeKeyClientID        = "client_id"
	AttributeKeyClientType      = "client_type"
	AttributeKeyConsensusHeight = "consensus_height"
)
