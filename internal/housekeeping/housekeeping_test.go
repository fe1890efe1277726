package housekeeping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidc-agent/agentd/internal/account"
)

func TestRunEvictsExpiredRecordOnTick(t *testing.T) {
	reg := account.New()
	rec := &account.Record{Shortname: "acme", Death: time.Now().Add(-time.Minute)}
	require.NoError(t, reg.Add(rec))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = Run(ctx, reg, 20*time.Millisecond, noopLogger{})
		close(done)
	}()

	<-done
	assert.Nil(t, reg.FindByShortname("acme"))
}

type noopLogger struct{}

func (noopLogger) Debug(args ...interface{})          {}
func (noopLogger) Info(args ...interface{})           {}
func (noopLogger) Warn(args ...interface{})           {}
func (noopLogger) Error(args ...interface{})          {}
func (noopLogger) Debugf(f string, a ...interface{})  {}
func (noopLogger) Infof(f string, a ...interface{})   {}
func (noopLogger) Warnf(f string, a ...interface{})   {}
func (noopLogger) Errorf(f string, a ...interface{})  {}
