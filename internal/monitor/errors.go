package monitor

import "errors"

var (
	// ErrAlreadyExists is returned by Register* when a record with the same
	// identity tuple is already registered. The existing record is left
	// untouched.
	ErrAlreadyExists = errors.New("monitor: already registered")

	// ErrInvalidPort is returned when a port below 1024 is supplied for a
	// peer or supporter address.
	ErrInvalidPort = errors.New("monitor: port must be >= 1024")

	// ErrInvalidRole is returned when a peer role is outside {Seeder, Leecher}.
	ErrInvalidRole = errors.New("monitor: invalid peer role")

	// ErrInvalidBounds is returned when a supporter's min_peer/max_peer bounds
	// are not 1 <= min_peer <= max_peer.
	ErrInvalidBounds = errors.New("monitor: invalid supporter capacity bounds")

	// ErrUnknownPeer names the case of a message that targets a peer ID that
	// is not registered. No function in this package returns it:
	// ReceivePeerMessage logs and drops such messages instead.
	ErrUnknownPeer = errors.New("monitor: unknown peer id")
)
