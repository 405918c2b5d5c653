package app

import (
	"bytes"
	"sync"
	"testing"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates an app instance with captured output and logs for
// system tests.
func SetupAppTest(t *testing.T, cfg Config) (*App, *SafeBuffer, *SafeBuffer) {
	t.Helper()

	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"
	appConfig, err := NewConfig(cfg)
	if err != nil {
		t.Fatalf("invalid test app config: %v", err)
	}

	outBuf := &SafeBuffer{}
	logBuf := &SafeBuffer{}
	testApp := NewApp(outBuf, logBuf, appConfig)

	t.Cleanup(func() {
		if t.Failed() {
			t.Logf("--- Log output for %s ---\n%s", t.Name(), logBuf.String())
		}
	})

	return testApp, outBuf, logBuf
}
