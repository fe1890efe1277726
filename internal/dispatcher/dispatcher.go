package dispatcher

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"sync/atomic"

	"github.com/oidc-agent/agentd/internal/agent"
	"github.com/oidc-agent/agentd/internal/errkind"
)

// connIDKey is the context key under which each connection's sequence
// number is stashed; handleConn reads it back via ConnID to tag its
// dispatch debug line with the connection number.
type connIDKey struct{}

// ConnID extracts the connection sequence number ctx carries, if any.
func ConnID(ctx context.Context) (uint64, bool) {
	v, ok := ctx.Value(connIDKey{}).(uint64)
	return v, ok
}

var connCounter atomic.Uint64

// Dispatcher owns the agent-wide state and serves one client connection at
// a time. It never spawns a goroutine per connection: spec requires
// strictly sequential handling so handlers can mutate the registry without
// locking.
type Dispatcher struct {
	agent *agent.Context
}

// New returns a Dispatcher bound to agentCtx.
func New(agentCtx *agent.Context) *Dispatcher {
	return &Dispatcher{agent: agentCtx}
}

// Serve accepts and fully handles one connection after another from
// listener until ctx is cancelled or Accept fails. Each connection carries
// exactly one request and one response.
func (d *Dispatcher) Serve(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		connCtx := context.WithValue(ctx, connIDKey{}, connCounter.Add(1))
		d.handleConn(connCtx, conn)
	}
}

func (d *Dispatcher) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		if err != io.EOF {
			d.agent.Logger.Debugf("dispatcher: failed to read request: %v", err)
		}
		return
	}

	var req request
	if jsonErr := json.Unmarshal(line, &req); jsonErr != nil {
		d.writeResponse(conn, badRequest("malformed JSON request"))
		return
	}

	if id, ok := ConnID(ctx); ok {
		d.agent.Logger.Debugf("conn %d: dispatching %s", id, req.Request)
	}

	resp := d.dispatch(ctx, req)
	d.writeResponse(conn, resp)
}

func (d *Dispatcher) writeResponse(conn net.Conn, resp response) {
	body, err := json.Marshal(resp)
	if err != nil {
		d.agent.Logger.Errorf("dispatcher: failed to encode response: %v", err)
		return
	}
	body = append(body, '\n')
	if _, err := conn.Write(body); err != nil {
		d.agent.Logger.Debugf("dispatcher: failed to write response: %v", err)
	}
}

// dispatch routes req to its handler. While locked, every request other
// than unlock is rejected before it reaches a handler.
func (d *Dispatcher) dispatch(ctx context.Context, req request) response {
	if d.agent.Lock.Locked() && req.Request != "unlock" {
		return failure(string(errkind.Locked), "agent is locked")
	}

	switch req.Request {
	case "gen":
		return d.handleGen(ctx, req)
	case "add":
		return d.handleAdd(ctx, req)
	case "remove":
		return d.handleRemove(req)
	case "delete":
		return d.handleDelete(ctx, req)
	case "remove_all":
		return d.handleRemoveAll()
	case "access_token":
		return d.handleAccessToken(ctx, req)
	case "register":
		return d.handleRegister(ctx, req)
	case "code_exchange":
		return d.handleCodeExchange(ctx, req)
	case "device_lookup":
		return d.handleDeviceLookup(ctx, req)
	case "state_lookup":
		return d.handleStateLookup(req)
	case "term_http":
		return d.handleTermHTTP(req)
	case "lock":
		return d.handleLock(req)
	case "unlock":
		return d.handleUnlock(req)
	default:
		return badRequest("unknown request: " + req.Request)
	}
}
