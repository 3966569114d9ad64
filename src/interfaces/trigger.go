package interfaces

// -----------------------------------------------------------------------------
// ITrigger asks an external system to produce more simulated events.
// -----------------------------------------------------------------------------

type ITrigger interface {

	// -----------------------------------------------------------------------------

	// Fire sends the request in the background. Failures are not reported
	// to the caller.
	Fire()
}
