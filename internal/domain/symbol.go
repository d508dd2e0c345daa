package domain

import (
	"fmt"
	"strings"
	"sync"
)

// Symbol identifies a tradable pair. Equality is plain struct equality.
type Symbol struct {
	Code       string
	Name       string
	AssetClass string
	Base       string
	Quote      string
}

func NewSymbol(code, name, assetClass, base, quote string) (Symbol, error) {
	s := Symbol{
		Code:       strings.ToUpper(code),
		Name:       name,
		AssetClass: assetClass,
		Base:       strings.ToUpper(base),
		Quote:      strings.ToUpper(quote),
	}
	if err := s.Validate(); err != nil {
		return Symbol{}, err
	}
	return s, nil
}

func (s Symbol) Validate() error {
	if s.Code == "" {
		return &InvalidOrderError{Reason: "symbol code is required"}
	}
	for _, r := range s.Code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return &InvalidOrderError{Reason: fmt.Sprintf("symbol code %q must be uppercase alphanumeric", s.Code)}
		}
	}
	if s.Base == "" || s.Quote == "" {
		return &InvalidOrderError{Reason: "symbol currencies are required"}
	}
	return nil
}

func (s Symbol) String() string { return s.Code }

// Common pairs.
var (
	BTCUSD = Symbol{Code: "BTCUSD", Name: "Bitcoin / US Dollar", AssetClass: "CRYPTO", Base: "BTC", Quote: "USD"}
	ETHUSD = Symbol{Code: "ETHUSD", Name: "Ethereum / US Dollar", AssetClass: "CRYPTO", Base: "ETH", Quote: "USD"}
	EURUSD = Symbol{Code: "EURUSD", Name: "Euro / US Dollar", AssetClass: "FX", Base: "EUR", Quote: "USD"}
)

// SymbolRegistry is the explicit lookup table handed to the API layer.
// Unregistered codes fail resolution instead of being created on the fly.
type SymbolRegistry struct {
	mu     sync.RWMutex
	byCode map[string]Symbol
}

func NewSymbolRegistry(symbols ...Symbol) *SymbolRegistry {
	r := &SymbolRegistry{byCode: make(map[string]Symbol)}
	for _, s := range symbols {
		r.byCode[s.Code] = s
	}
	return r
}

func (r *SymbolRegistry) Register(s Symbol) error {
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCode[s.Code] = s
	return nil
}

func (r *SymbolRegistry) Resolve(code string) (Symbol, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byCode[strings.ToUpper(code)]
	if !ok {
		return Symbol{}, ErrUnknownSymbol
	}
	return s, nil
}

func (r *SymbolRegistry) List() []Symbol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Symbol, 0, len(r.byCode))
	for _, s := range r.byCode {
		out = append(out, s)
	}
	return out
}
