// Package driven defines the port interfaces implemented by driven adapters.
package driven

import "errors"

// ErrEncryptionKeyNotSet is returned by credential store operations when no
// encryption key was configured at startup.
var ErrEncryptionKeyNotSet = errors.New("credential encryption key not set")

// ErrAssetNotFound is returned by the firmware source when the configured
// asset name is not attached to the latest release.
var ErrAssetNotFound = errors.New("firmware asset not found in release")

// ErrResponseIncomplete is returned by the controller link when the response
// timeout expires before a completion marker ("<<OK" or "<<ERROR") arrives.
var ErrResponseIncomplete = errors.New("controller response incomplete")

// ErrControllerFault is returned by the controller link when the controller
// answers a command with an "<<ERROR" line.
var ErrControllerFault = errors.New("controller reported error")
