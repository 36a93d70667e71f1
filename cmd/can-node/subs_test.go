package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/uavcan-go/canard/can"
	"github.com/uavcan-go/canard/transport"
)

func writeSubs(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "subs.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSubscriptions(t *testing.T) {
	path := writeSubs(t, `
[[subscription]]
kind        = "message"
port        = 7509
timeout     = "500ms"
max-payload = 7

[[subscription]]
kind = "request"
port = 42
`)
	f, err := loadSubscriptions(path)
	if err != nil {
		t.Fatalf("loadSubscriptions: %v", err)
	}
	p := f.Accept(7509, can.KindMessage, 3)
	if p.TransferIDTimeout != 500_000 || p.MaxPayload != 7 {
		t.Fatalf("message params = %+v", p)
	}
	p = f.Accept(42, can.KindRequest, 3)
	if p.TransferIDTimeout != transport.DefaultTransferIDTimeout || p.MaxPayload != defaultSubMaxPayload {
		t.Fatalf("request defaults = %+v", p)
	}
	if p := f.Accept(7509, can.KindRequest, 3); p.TransferIDTimeout != 0 {
		t.Fatalf("unlisted kind accepted: %+v", p)
	}
	if p := f.Accept(100, can.KindMessage, 3); p.TransferIDTimeout != 0 {
		t.Fatalf("unlisted port accepted: %+v", p)
	}
}

func TestLoadSubscriptionsEmptyPathIsPromiscuous(t *testing.T) {
	f, err := loadSubscriptions("")
	if err != nil {
		t.Fatalf("loadSubscriptions: %v", err)
	}
	if p := f.Accept(12345, can.KindMessage, 9); p.TransferIDTimeout == 0 {
		t.Fatal("expected accept-all filter")
	}
}

func TestLoadSubscriptionsRejectsBadEntries(t *testing.T) {
	for name, body := range map[string]string{
		"badKind": "[[subscription]]\nkind = \"telemetry\"\nport = 1\n",
		"badPort": "[[subscription]]\nkind = \"message\"\nport = 40000\n",
		"badSvc":  "[[subscription]]\nkind = \"request\"\nport = 512\n",
		"badDur":  "[[subscription]]\nkind = \"message\"\nport = 1\ntimeout = \"soon\"\n",
	} {
		if _, err := loadSubscriptions(writeSubs(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEchoFilterOverlay(t *testing.T) {
	base := &portFilter{params: map[subKey]transport.RxParams{}}
	f := echoFilter{base: base, port: 42}
	if p := f.Accept(42, can.KindRequest, 1); p.TransferIDTimeout == 0 {
		t.Fatal("echo request not accepted")
	}
	if p := f.Accept(42, can.KindResponse, 1); p.TransferIDTimeout != 0 {
		t.Fatal("response unexpectedly accepted")
	}
}
