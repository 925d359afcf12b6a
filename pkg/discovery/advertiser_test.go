package discovery

import (
	"strings"
	"testing"
	"time"

	"github.com/tablewire/tablewire-go/pkg/wire"
)

func TestInstanceNameDefaultsToHostname(t *testing.T) {
	name := instanceName("")
	if name == "" {
		t.Fatal("empty instance name")
	}
	if len(name) > MaxInstanceNameLen {
		t.Errorf("instance name %q exceeds label limit", name)
	}
}

func TestInstanceNameTruncated(t *testing.T) {
	long := strings.Repeat("x", 100)
	name := instanceName(long)
	if len(name) != MaxInstanceNameLen {
		t.Errorf("got %d characters, want %d", len(name), MaxInstanceNameLen)
	}
}

func TestTXTRecordsCarryProtocolVersion(t *testing.T) {
	records := txtRecords()
	want := "version=" + wire.ProtocolVersion
	for _, r := range records {
		if r == want {
			return
		}
	}
	t.Errorf("TXT records %v missing %q", records, want)
}

func TestNewAdvertiserFillsTTL(t *testing.T) {
	a := NewAdvertiser(Config{})
	if a.cfg.TTL != DefaultTTL {
		t.Errorf("TTL: got %v, want %v", a.cfg.TTL, DefaultTTL)
	}
	a = NewAdvertiser(Config{TTL: 30 * time.Second})
	if a.cfg.TTL != 30*time.Second {
		t.Errorf("TTL override lost: got %v", a.cfg.TTL)
	}
}

func TestStopWithoutStart(t *testing.T) {
	a := NewAdvertiser(Config{})
	// Must not panic.
	a.Stop()
	a.Stop()
}
