package memutils

// Validatable is anything DebugValidate can check in debug builds.
type Validatable interface {
	Validate() error
}
