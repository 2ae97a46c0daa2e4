package search

import (
	"sync"

	"github.com/kitbuilder587/webagent/internal/domain"
)

// KeyProvider hands out the active search credential and switches to the
// fallback exactly once when the active one is rejected. Safe for
// concurrent runs.
type KeyProvider struct {
	mu            sync.Mutex
	primary       string
	fallback      string
	usingFallback bool
}

func NewKeyProvider(primary, fallback string) *KeyProvider {
	// a fallback identical to the primary buys nothing
	if fallback == primary {
		fallback = ""
	}
	return &KeyProvider{
		primary:  primary,
		fallback: fallback,
	}
}

func (p *KeyProvider) CurrentKey() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.usingFallback {
		if p.fallback == "" {
			return "", domain.ErrAllKeysExhausted
		}
		return p.fallback, nil
	}
	if p.primary == "" {
		return "", domain.ErrAllKeysExhausted
	}
	return p.primary, nil
}

// ReportFailure marks the failed credential as dead and returns the next
// one to try, or ErrAllKeysExhausted when the fallback already failed or
// none is configured. Concurrent runs may each report the primary; every
// such report gets the fallback, exhaustion is reserved for reports of
// the fallback itself.
func (p *KeyProvider) ReportFailure(failed string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if failed == p.primary && p.primary != "" {
		p.usingFallback = true
		if p.fallback == "" {
			return "", domain.ErrAllKeysExhausted
		}
		return p.fallback, nil
	}

	return "", domain.ErrAllKeysExhausted
}

// HasFallback reports whether a fallback credential is configured.
func (p *KeyProvider) HasFallback() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fallback != ""
}
