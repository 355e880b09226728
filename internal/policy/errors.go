package policy

import "errors"

// Error taxonomy for the permission engine. Handlers map these onto HTTP
// statuses; any lookup failure resolves to the most restrictive outcome,
// never to allow.
var (
	ErrUnauthenticated        = errors.New("policy: unauthenticated")
	ErrForbidden              = errors.New("policy: forbidden")
	ErrConflict               = errors.New("policy: conflicting concurrent update")
	ErrInvalidOverridePayload = errors.New("policy: invalid override payload")
	ErrPolicyStoreUnavailable = errors.New("policy: policy store unavailable")
)
