package apperr

type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidation(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func NewValidationWrap(msg string, err error) *ValidationError {
	return &ValidationError{Message: msg, Err: err}
}

// NotFoundError marks a missing entity (query, task, pair, final list).
// It aborts the current operation only.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " " + e.Key + " not found"
}

func NewNotFound(entity, key string) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

// ConfigurationError marks an experiment-state precondition failure, such as
// no active policy or fewer than two systems. The triggering admin action
// aborts without corrupting existing state.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

func NewConfiguration(msg string) *ConfigurationError {
	return &ConfigurationError{Message: msg}
}

// ConflictError marks a write rejected by a store uniqueness constraint,
// e.g. two concurrent claims of the same (rater, task) assignment.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflict(msg string) *ConflictError {
	return &ConflictError{Message: msg}
}
