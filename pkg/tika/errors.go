package tika

import "errors"

var (
	// ErrInvalidInteraction indicates that an interaction does not satisfy contract invariants.
	ErrInvalidInteraction = errors.New("tika: invalid interaction")
	// ErrCorruptDocument indicates that a stored document could not be decoded.
	ErrCorruptDocument = errors.New("tika: corrupt document")
	// ErrUnknownFeature indicates a feature name outside the declared catalog.
	ErrUnknownFeature = errors.New("tika: unknown feature")
	// ErrServiceAlreadyRegistered indicates duplicate service registration.
	ErrServiceAlreadyRegistered = errors.New("tika: service already registered")
	// ErrServiceNotFound indicates a service lookup miss.
	ErrServiceNotFound = errors.New("tika: service not found")
	// ErrModuleAlreadyRegistered indicates duplicate module registration.
	ErrModuleAlreadyRegistered = errors.New("tika: module already registered")
	// ErrCommandAlreadyRegistered indicates two modules claiming one command name.
	ErrCommandAlreadyRegistered = errors.New("tika: command already registered")
	// ErrNotAdmin indicates an interaction rejected by the delegated-admin gate.
	ErrNotAdmin = errors.New("tika: not a bot admin")
)
