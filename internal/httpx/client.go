// Package httpx builds the process-wide *http.Client used for every
// outbound call the flow engine makes to an issuer: discovery, token,
// revocation, and dynamic client registration. It is constructed the way
// pkg/httpclient.NewHTTPClient builds dex's client, so a daemon operator
// can point the agent at issuers behind a private CA the same way dex's
// operators can.
package httpx

import (
	"net/http"

	"github.com/oidc-agent/agentd/pkg/httpclient"
)

// New returns a process-wide HTTP client. rootCAs are additional PEM CAs
// (file path, base64, or raw PEM text, per pkg/httpclient.NewHTTPClient);
// insecureSkipVerify should only ever be set for local testing.
func New(rootCAs []string, insecureSkipVerify bool) (*http.Client, error) {
	return httpclient.NewHTTPClient(rootCAs, insecureSkipVerify)
}
