package oidcflow

import (
	"context"
	"net/http"

	coreoidc "github.com/coreos/go-oidc/v3/oidc"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/errkind"
)

// additionalEndpoints holds the discovery-document fields go-oidc's
// Provider does not parse into its own struct, fetched the same way
// pinniped's oidcupstreamwatcher fetches a provider's revocation endpoint:
// via Provider.Claims into a caller-defined struct.
type additionalEndpoints struct {
	RegistrationEndpoint        string `json:"registration_endpoint"`
	RevocationEndpoint          string `json:"revocation_endpoint"`
	DeviceAuthorizationEndpoint string `json:"device_authorization_endpoint"`
}

// Discover populates rec.Endpoints from the issuer's
// .well-known/openid-configuration document if it has not already been
// discovered. A user-supplied device-authorization endpoint (DeviceAuthorizationIsSet)
// is never overwritten. Discovery failure is a hard failure of the current
// operation.
func Discover(ctx context.Context, httpClient *http.Client, rec *account.Record) error {
	if rec.Endpoints.Discovered() {
		return nil
	}
	if rec.Issuer == "" {
		return errkind.New(errkind.BadRequest, "account has no issuer configured")
	}

	ctx = coreoidc.ClientContext(ctx, httpClient)
	provider, err := coreoidc.NewProvider(ctx, rec.Issuer)
	if err != nil {
		return errkind.Wrap(errkind.UpstreamHTTP, "failed to discover issuer configuration", err)
	}

	var extra additionalEndpoints
	if err := provider.Claims(&extra); err != nil {
		return errkind.Wrap(errkind.UpstreamHTTP, "failed to parse discovery document", err)
	}

	endpoint := provider.Endpoint()
	rec.Endpoints.Token = endpoint.TokenURL
	rec.Endpoints.Authorization = endpoint.AuthURL
	rec.Endpoints.Registration = extra.RegistrationEndpoint
	rec.Endpoints.Revocation = extra.RevocationEndpoint
	if !rec.Endpoints.DeviceAuthorizationIsSet {
		rec.Endpoints.DeviceAuthorization = extra.DeviceAuthorizationEndpoint
	}
	return nil
}
