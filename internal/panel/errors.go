package panel

import (
	"errors"
	"fmt"
)

// ErrAuthentication means the panel rejected the configured credentials.
var ErrAuthentication = errors.New("panel: authentication rejected")

// ErrClientNotFound means the referenced client email is absent from the inbound.
var ErrClientNotFound = errors.New("panel: client not found in inbound")

// ProvisioningError means the panel rejected a mutation payload.
type ProvisioningError struct {
	Op  string
	Msg string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("panel: %s rejected: %s", e.Op, e.Msg)
}

// ProtocolError means the panel answered with an unexpected shape or
// content type. Excerpt carries a truncated response body for diagnostics.
type ProtocolError struct {
	Op      string
	Excerpt string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("panel: %s: unexpected response: %s", e.Op, e.Excerpt)
}

const excerptLimit = 300

func excerpt(body string) string {
	if len(body) > excerptLimit {
		return body[:excerptLimit] + "..."
	}
	return body
}
