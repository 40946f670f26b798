// Package domain contains core concepts of the realtime messaging system.
// No runtime, network, or UI logic should be added here.
package domain

// User is the identity attached to a connection once its credential has been
// verified. The core never stores credentials, only the verified identity.
type User struct {
	ID          string
	Username    string
	DisplayName string
}
