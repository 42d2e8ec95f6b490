package orchestrator

// variantNotFoundError signals a variant missing from the model table.
type variantNotFoundError struct{ variant string }

func (e variantNotFoundError) Error() string { return "unknown model variant: " + e.variant }

// ErrVariantNotFound constructs an error for a variant absent from the table.
func ErrVariantNotFound(variant string) error { return variantNotFoundError{variant: variant} }

// IsVariantNotFound reports whether err indicates an unknown variant.
func IsVariantNotFound(err error) bool {
	_, ok := err.(variantNotFoundError)
	return ok
}

// notReadyError signals selecting a model that is not in the ready state.
type notReadyError struct{ variant string }

func (e notReadyError) Error() string { return "model not ready: " + e.variant }

// ErrModelNotReady constructs an error for selecting a non-ready model.
func ErrModelNotReady(variant string) error { return notReadyError{variant: variant} }

// IsModelNotReady reports whether err indicates a non-ready selection target.
func IsModelNotReady(err error) bool {
	_, ok := err.(notReadyError)
	return ok
}
