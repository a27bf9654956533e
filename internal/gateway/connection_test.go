package gateway

import "testing"

func TestCheckRateAllowsUpToLimit(t *testing.T) {
	c := &ConnectionCtx{}
	for i := 0; i < inputRateLimit; i++ {
		if !c.checkRate() {
			t.Fatalf("expected call %d within the limit to be allowed", i+1)
		}
	}
}

func TestCheckRateRejectsBeyondLimit(t *testing.T) {
	c := &ConnectionCtx{}
	for i := 0; i < inputRateLimit; i++ {
		c.checkRate()
	}
	if c.checkRate() {
		t.Fatalf("expected the call beyond the per-second limit to be rejected")
	}
}
