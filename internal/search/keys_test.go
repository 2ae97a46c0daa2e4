package search

import (
	"errors"
	"testing"

	"github.com/kitbuilder587/webagent/internal/domain"
)

func TestKeyProvider_SwitchesOnce(t *testing.T) {
	p := NewKeyProvider("primary", "fallback")

	key, err := p.CurrentKey()
	if err != nil {
		t.Fatalf("CurrentKey() error = %v", err)
	}
	if key != "primary" {
		t.Errorf("CurrentKey() = %q, want %q", key, "primary")
	}

	next, err := p.ReportFailure("primary")
	if err != nil {
		t.Fatalf("ReportFailure() error = %v", err)
	}
	if next != "fallback" {
		t.Errorf("ReportFailure() = %q, want %q", next, "fallback")
	}

	// the fallback failing is terminal
	if _, err := p.ReportFailure("fallback"); !errors.Is(err, domain.ErrAllKeysExhausted) {
		t.Errorf("second ReportFailure() error = %v, want ErrAllKeysExhausted", err)
	}
}

func TestKeyProvider_ConcurrentPrimaryReports(t *testing.T) {
	p := NewKeyProvider("primary", "fallback")

	// two runs both held the primary before either reported it; each
	// report must hand back the healthy fallback
	for i := 0; i < 2; i++ {
		next, err := p.ReportFailure("primary")
		if err != nil {
			t.Fatalf("ReportFailure() #%d error = %v", i+1, err)
		}
		if next != "fallback" {
			t.Errorf("ReportFailure() #%d = %q, want %q", i+1, next, "fallback")
		}
	}

	if _, err := p.ReportFailure("fallback"); !errors.Is(err, domain.ErrAllKeysExhausted) {
		t.Errorf("ReportFailure(fallback) error = %v, want ErrAllKeysExhausted", err)
	}
}

func TestKeyProvider_NoFallback(t *testing.T) {
	p := NewKeyProvider("primary", "")

	if _, err := p.ReportFailure("primary"); !errors.Is(err, domain.ErrAllKeysExhausted) {
		t.Errorf("ReportFailure() error = %v, want ErrAllKeysExhausted", err)
	}
}

func TestKeyProvider_FallbackSameAsPrimary(t *testing.T) {
	p := NewKeyProvider("key", "key")

	if p.HasFallback() {
		t.Error("identical fallback should be discarded")
	}
	if _, err := p.ReportFailure("key"); !errors.Is(err, domain.ErrAllKeysExhausted) {
		t.Errorf("ReportFailure() error = %v, want ErrAllKeysExhausted", err)
	}
}

func TestKeyProvider_CurrentAfterSwitch(t *testing.T) {
	p := NewKeyProvider("primary", "fallback")

	if _, err := p.ReportFailure("primary"); err != nil {
		t.Fatalf("ReportFailure() error = %v", err)
	}

	key, err := p.CurrentKey()
	if err != nil {
		t.Fatalf("CurrentKey() error = %v", err)
	}
	if key != "fallback" {
		t.Errorf("CurrentKey() after switch = %q, want %q", key, "fallback")
	}
}

func TestKeyProvider_NoKeysConfigured(t *testing.T) {
	p := NewKeyProvider("", "")

	if _, err := p.CurrentKey(); !errors.Is(err, domain.ErrAllKeysExhausted) {
		t.Errorf("CurrentKey() error = %v, want ErrAllKeysExhausted", err)
	}
}
