// Package domain contains the core entities and error taxonomy of mirage.
//
// The domain layer has no dependencies on infrastructure. It defines the
// opaque async [Message] and the sentinel errors returned by the public API.
package domain
