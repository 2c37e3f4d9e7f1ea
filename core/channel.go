package core

import (
	"errors"
	"fmt"
)

// SingleChannelPrefix namespaces channels that belong to one recipient
const SingleChannelPrefix = "single/"

// SingleChannel returns the channel a recipient listens on
func SingleChannel(recipientID string) string {
	return SingleChannelPrefix + recipientID
}

// Delivery summarizes one broadcast
type Delivery struct {
	Channel   string
	Delivered int
	Faults    []error // one per evicted subscriber, each wraps ErrConnectionFault
}

// Empty reports whether the channel had no subscribers when broadcast
func (d Delivery) Empty() bool {
	return d.Delivered == 0 && len(d.Faults) == 0
}

// Evicted is the number of subscribers removed because their send failed
func (d Delivery) Evicted() int {
	return len(d.Faults)
}

// Err returns ErrChannelEmpty for an empty delivery and a joined fault
// error when any subscriber was evicted. Broadcast itself never fails;
// this lets a caller decide whether either case matters.
func (d Delivery) Err() error {
	if d.Empty() {
		return fmt.Errorf("%s: %w", d.Channel, ErrChannelEmpty)
	}
	return errors.Join(d.Faults...)
}

// ConnectionFault wraps a send failure of a single subscriber
func ConnectionFault(err error) error {
	return fmt.Errorf("%w: %w", ErrConnectionFault, err)
}
