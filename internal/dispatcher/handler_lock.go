package dispatcher

// handleLock implements "lock": transition to locked, hiding every
// record's secret buffers.
func (d *Dispatcher) handleLock(req request) response {
	if req.Password == "" {
		return badRequest("missing password")
	}
	if err := d.agent.Lock.Lock(d.agent.Registry, req.Password); err != nil {
		return responseFor(err)
	}
	return success()
}

// handleUnlock implements "unlock": the sole request honored while locked.
func (d *Dispatcher) handleUnlock(req request) response {
	if req.Password == "" {
		return badRequest("missing password")
	}
	if err := d.agent.Lock.Unlock(d.agent.Registry, req.Password); err != nil {
		return responseFor(err)
	}
	return success()
}
