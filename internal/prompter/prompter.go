// Package prompter implements the daemon's side of the bidirectional
// request/response channel to an out-of-process helper that handles user
// interaction (confirmations, autoload config lookup). Each exchange is
// strictly synchronous and serialized per daemon, matching the request-line/response-line JSON envelope
// the control socket uses.
package prompter

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/oidc-agent/agentd/internal/errkind"
)

// AccountConfig is the full account configuration an autoload request can
// return. It carries the "add"/"gen" account fields except username,
// password, confirm and the device endpoint, and its "scope" is a JSON
// array of strings rather than add/gen's space-separated string.
type AccountConfig struct {
	Shortname    string   `json:"shortname"`
	Issuer       string   `json:"issuer"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	RedirectURIs []string `json:"redirect_uris,omitempty"`
	Scopes       []string `json:"scope,omitempty"`
}

type request struct {
	Request         string `json:"request"`
	ShortName       string `json:"short_name,omitempty"`
	ApplicationHint string `json:"application_hint,omitempty"`
}

type response struct {
	Status string          `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
	Config *AccountConfig  `json:"config,omitempty"`
	Raw    json.RawMessage `json:"-"`
}

// cancelledSentinel is the error string the prompter returns for autoload
// when the user declines to supply credentials interactively.
const cancelledSentinel = "cancelled"

// Channel is the daemon-side handle to the prompter helper process. The
// peer is a process-wide singleton: it must remain alive for the life of
// the daemon.
type Channel struct {
	mu sync.Mutex
	rw io.ReadWriter
	r  *bufio.Reader
}

// New wraps an already-connected stream to the prompter helper (typically
// the helper's stdin/stdout pipes, but any io.ReadWriter works — including
// a Unix socket connection).
func New(rw io.ReadWriter) *Channel {
	return &Channel{rw: rw, r: bufio.NewReader(rw)}
}

func (c *Channel) roundTrip(req request) (*response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, err := json.Marshal(req)
	if err != nil {
		return nil, errkind.Wrap(errkind.PrompterFailed, "failed to encode prompter request", err)
	}
	if _, err := c.rw.Write(append(line, '\n')); err != nil {
		return nil, errkind.Wrap(errkind.PrompterFailed, "failed to write to prompter", err)
	}

	respLine, err := c.r.ReadBytes('\n')
	if err != nil && len(respLine) == 0 {
		return nil, errkind.Wrap(errkind.PrompterFailed, "prompter disconnected", err)
	}

	var resp response
	if err := json.Unmarshal(respLine, &resp); err != nil {
		return nil, errkind.Wrap(errkind.PrompterFailed, "prompter returned malformed response", err)
	}
	resp.Raw = respLine
	return &resp, nil
}

// Autoload asks the prompter to resolve an unloaded shortname into a full
// account configuration, or to report that the user cancelled. It
// implements the "autoload" request.
func (c *Channel) Autoload(shortname, applicationHint string) (*AccountConfig, error) {
	resp, err := c.roundTrip(request{
		Request:         "autoload",
		ShortName:       shortname,
		ApplicationHint: applicationHint,
	})
	if err != nil {
		return nil, err
	}

	if resp.Error == cancelledSentinel {
		return nil, nil
	}
	if resp.Error != "" {
		return nil, errkind.Wrap(errkind.PrompterFailed, resp.Error, errors.New(resp.Error))
	}
	if resp.Config == nil {
		return nil, errkind.New(errkind.PrompterFailed, "prompter returned neither config nor cancellation")
	}
	return resp.Config, nil
}

// Confirm asks the prompter to obtain the user's confirmation before an
// access token is handed out for shortname. It implements the "confirm"
// request.
func (c *Channel) Confirm(shortname, applicationHint string) error {
	resp, err := c.roundTrip(request{
		Request:         "confirm",
		ShortName:       shortname,
		ApplicationHint: applicationHint,
	})
	if err != nil {
		return err
	}
	if resp.Status != "success" && resp.Status != "accepted" {
		msg := resp.Error
		if msg == "" {
			msg = "confirmation denied"
		}
		return errkind.New(errkind.PrompterFailed, msg)
	}
	return nil
}
