package oidcflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/errkind"
)

// deviceAuthResponse is RFC 8628 §3.2's device authorization response,
// decoded the same way examples/example-app/handlers_device.go decodes the
// device-authorization endpoint's JSON body.
type deviceAuthResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int64  `json:"expires_in"`
	Interval                int64  `json:"interval"`
}

// AcceptedDevice is the information the client needs to direct the user to
// complete the device flow out of band.
type AcceptedDevice struct {
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	Interval                time.Duration
}

// StartDevice requests a device/user code pair from rec's issuer and
// returns what the client needs to show the user. The daemon must be
// polled afterward via CompleteDevice (device_lookup) to learn the
// outcome.
func StartDevice(ctx context.Context, client *http.Client, rec *account.Record) (*AcceptedDevice, error) {
	if rec.Endpoints.DeviceAuthorization == "" {
		return nil, errkind.New(errkind.BadRequest, "account has no device authorization endpoint configured")
	}

	data := url.Values{}
	data.Set("client_id", rec.ClientID)
	if len(rec.Scopes) > 0 {
		data.Set("scope", strings.Join(rec.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rec.Endpoints.DeviceAuthorization, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, errkind.Wrap(errkind.UpstreamHTTP, "failed to build device authorization request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errkind.Wrap(errkind.UpstreamHTTP, "device authorization request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errkind.New(errkind.UpstreamHTTP, "device authorization endpoint returned an unexpected status")
	}

	var dr deviceAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, errkind.Wrap(errkind.UpstreamHTTP, "failed to decode device authorization response", err)
	}

	interval := time.Duration(dr.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	rec.DeviceCode = dr.DeviceCode
	rec.DevicePollInterval = interval

	return &AcceptedDevice{
		UserCode:                dr.UserCode,
		VerificationURI:         dr.VerificationURI,
		VerificationURIComplete: dr.VerificationURIComplete,
		Interval:                interval,
	}, nil
}

// DevicePollOutcome is the result of one device_lookup poll.
type DevicePollOutcome int

const (
	DevicePollPending DevicePollOutcome = iota
	DevicePollComplete
	DevicePollDenied
	DevicePollExpired
)

// CompleteDevice performs a single poll of the token endpoint for rec's
// outstanding device flow, per RFC 8628 §3.4/§3.5. The caller (the
// device_lookup handler) is expected to call this once per client request
// and propagate DevicePollPending back to the client rather than blocking
// the dispatcher.
func CompleteDevice(ctx context.Context, client *http.Client, rec *account.Record) (DevicePollOutcome, error) {
	if rec.DeviceCode == "" {
		return DevicePollExpired, errkind.New(errkind.FlowFailed, "account has no outstanding device flow")
	}

	data := url.Values{}
	data.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")
	data.Set("device_code", rec.DeviceCode)
	data.Set("client_id", rec.ClientID)

	tr, expiry, oerr, err := postToken(ctx, client, rec.Endpoints.Token, data, time.Now())
	if err != nil {
		return DevicePollPending, err
	}
	if oerr != nil {
		switch oerr.Error {
		case "authorization_pending":
			return DevicePollPending, nil
		case "slow_down":
			rec.DevicePollInterval += 5 * time.Second
			return DevicePollPending, nil
		case "access_denied":
			rec.DeviceCode = ""
			rec.DevicePollInterval = 0
			return DevicePollDenied, errkind.New(errkind.FlowFailed, "user denied the device authorization request")
		case "expired_token":
			rec.DeviceCode = ""
			rec.DevicePollInterval = 0
			return DevicePollExpired, errkind.New(errkind.FlowFailed, "device code expired before authorization completed")
		default:
			rec.DeviceCode = ""
			rec.DevicePollInterval = 0
			return DevicePollDenied, errkind.New(errkind.UpstreamHTTP, "token endpoint rejected the device poll: "+oerr.Error)
		}
	}

	rec.DeviceCode = ""
	rec.DevicePollInterval = 0
	applyTokenResponse(rec, tr, expiry)
	return DevicePollComplete, nil
}
