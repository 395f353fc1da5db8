package logutil

import (
	"testing"
	"time"
)

func TestSetupDebugFromEnv(t *testing.T) {
	t.Setenv(DebugEnvVar, "1")
	Setup(false)
	if !DebugEnabled() {
		t.Fatalf("expected debug enabled from %s", DebugEnvVar)
	}

	t.Setenv(DebugEnvVar, "")
	Setup(false)
	if DebugEnabled() {
		t.Fatalf("expected debug disabled")
	}

	Setup(true)
	if !DebugEnabled() {
		t.Fatalf("expected debug enabled from flag")
	}
	Setup(false)
}

func TestEvery(t *testing.T) {
	allow := Every(time.Hour)
	if !allow() {
		t.Fatalf("first call should be allowed")
	}
	if allow() {
		t.Fatalf("second call inside the period should be suppressed")
	}

	always := Every(0)
	if !always() || !always() {
		t.Fatalf("zero period should always allow")
	}
}
