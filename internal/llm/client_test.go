package llm

import (
	"strings"
	"testing"
)

func TestNewClientOptions(t *testing.T) {
	if NewClient("", WithMaxPerMin(5)) != nil {
		t.Fatal("empty key should yield nil client regardless of options")
	}

	c := NewClient("key")
	if c.maxPerMin != DefaultMaxPerMin {
		t.Fatalf("default budget = %d", c.maxPerMin)
	}
	c = NewClient("key", WithMaxPerMin(5))
	if c.maxPerMin != 5 {
		t.Fatalf("budget = %d, want 5", c.maxPerMin)
	}
}

func TestCompleteEnforcesCallBudget(t *testing.T) {
	// A zero budget rejects before any network traffic.
	c := NewClient("key", WithMaxPerMin(0))
	_, err := c.Complete("system", "prompt", 10)
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("err = %v, want rate limit", err)
	}
}
