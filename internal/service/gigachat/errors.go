package gigachat

import "fmt"

// CredentialError reports a failed token exchange with the identity
// provider. The cached credential state is left untouched so a later call
// can retry.
type CredentialError struct {
	Status int
	Err    error
}

func (e *CredentialError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gigachat oauth failed: status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("gigachat oauth failed: %v", e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// UpstreamError reports a non-success response from the completion provider.
// The turn fails; retrying is the caller's decision.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gigachat completion failed: status %d: %s", e.Status, e.Body)
}
