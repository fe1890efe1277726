package dispatcher

import (
	"errors"

	"github.com/oidc-agent/agentd/internal/errkind"
)

// responseFor converts any error a handler returns into a response. A
// *errkind.Error carries its kind straight through; anything else is
// reported as a bare flow failure so a programming mistake never panics
// the dispatcher.
func responseFor(err error) response {
	var ke *errkind.Error
	if errors.As(err, &ke) {
		status := "failure"
		switch ke.Kind {
		case errkind.NotLoaded:
			status = "notfound"
		case errkind.BadRequest:
			status = "badrequest"
		}
		return response{Status: status, Kind: string(ke.Kind), Error: ke.Error()}
	}
	return failure(string(errkind.FlowFailed), err.Error())
}
