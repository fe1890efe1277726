package log

import "testing"

func TestSlogLoggerImplementsLoggerInterface(t *testing.T) {
	var i interface{} = new(SlogLogger)
	if _, ok := i.(Logger); !ok {
		t.Errorf("expected %T to implement Logger interface", i)
	}
}
