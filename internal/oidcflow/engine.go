// Package oidcflow implements the token-acquisition flows the daemon can
// run against an account: refresh, resource-owner password, authorization
// code with PKCE, and device authorization. It also implements their
// composition: a client may ask for the first one of several flows that
// succeeds.
package oidcflow

import (
	"context"
	"net/http"

	"github.com/oidc-agent/agentd/internal/account"
	"github.com/oidc-agent/agentd/internal/errkind"
)

// FlowName identifies one of the four supported flows.
type FlowName string

const (
	FlowRefresh  FlowName = "refresh"
	FlowPassword FlowName = "password"
	FlowAuthCode FlowName = "code"
	FlowDevice   FlowName = "device"
)

// Suspended is returned by Run when the requested flow cannot complete
// synchronously (authcode and device both redirect the user out of band).
// The caller must respond to the client with whatever Suspended carries
// and let a later request (code_exchange or device_lookup) drive the flow
// to completion.
type Suspended struct {
	Flow           FlowName
	AuthCodeURL    string
	AcceptedDevice *AcceptedDevice
}

// Run tries each flow in order against rec, returning as soon as one
// succeeds or suspends. If every attempted flow fails outright, Run
// returns the last failure's specific error only when exactly one flow was
// attempted; with two or more, the specific cause of any single flow is
// not a faithful explanation of the overall failure, so Run reports the
// generic "no flow was successful" instead. An empty order defaults to
// refresh-only, matching the single-credential-type common case.
func Run(ctx context.Context, client *http.Client, rec *account.Record, reg *account.Registry, order []FlowName, scopeOverride string) (*Suspended, error) {
	if err := Discover(ctx, client, rec); err != nil {
		return nil, err
	}

	if len(order) == 0 {
		order = []FlowName{FlowRefresh}
	}

	var lastErr error
	attempted := 0
	for _, name := range order {
		switch name {
		case FlowRefresh:
			attempted++
			if err := runRefresh(ctx, client, rec, scopeOverride); err != nil {
				lastErr = err
				continue
			}
			return nil, nil
		case FlowPassword:
			attempted++
			if err := runPassword(ctx, client, rec, scopeOverride); err != nil {
				lastErr = err
				continue
			}
			return nil, nil
		case FlowAuthCode:
			attempted++
			authURL, err := StartAuthCode(rec, reg)
			if err != nil {
				lastErr = err
				continue
			}
			return &Suspended{Flow: FlowAuthCode, AuthCodeURL: authURL}, nil
		case FlowDevice:
			attempted++
			accepted, err := StartDevice(ctx, client, rec)
			if err != nil {
				lastErr = err
				continue
			}
			return &Suspended{Flow: FlowDevice, AcceptedDevice: accepted}, nil
		default:
			return nil, errkind.New(errkind.UnknownFlow, "unknown flow: "+string(name))
		}
	}

	if lastErr != nil && attempted == 1 {
		return nil, lastErr
	}
	return nil, errkind.New(errkind.FlowFailed, "no flow was successful")
}
