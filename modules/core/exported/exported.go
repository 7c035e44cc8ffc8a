package exported

// Tendermint is the client type for a tendermint-consensus light client.
const Tendermint string = "07-tendermint"

// Status represents the status of a light client.
type Status string

const (
	// Active is a status type of a client. An active client is allowed to be used.
	Active Status = "Active"

	// Frozen is a status type of a client. A frozen client is not allowed to be used.
	Frozen Status = "Frozen"

	// Expired is a status type of a client. An expired client is not allowed to be used.
	Expired Status = "Expired"

	// Unknown indicates there was an error in determining the status of a client.
	Unknown Status = "Unknown"
)

func (s Status) String() string {
	return string(s)
}
