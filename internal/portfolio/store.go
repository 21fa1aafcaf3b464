// Package portfolio is the single source of truth for cash, holdings and the
// watchlist. All reads and mutations go through the transaction primitive;
// no other code path may hold a reference to the live state.
package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"alpha_agent/internal/errs"
	"alpha_agent/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Store owns the in-memory portfolio and its durable JSON file. One exclusive
// lock serializes every transaction process-wide.
type Store struct {
	path  string
	mu    sync.Mutex
	state *models.Portfolio
}

// Open loads the portfolio from disk.
//
// Policy for a bad file: a missing file means first-ever startup, so a fresh
// portfolio with the starting capital is created and saved. A file that
// exists but fails to parse or validate was written by a previous session,
// which means the agent has already been trading — that is corruption with no
// safe fallback and startup halts with a critical error.
func Open(path string, startingCash decimal.Decimal) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Warn().Str("file", path).Msg("Portfolio file missing, creating a new one")
		s.state = models.NewPortfolio(startingCash)
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.saveLocked(); err != nil {
			return nil, errs.WrapCritical(err, "failed to create new portfolio file")
		}
		log.Info().Str("cash", startingCash.StringFixed(2)).Msg("Created new portfolio")
		return s, nil
	}
	if err != nil {
		return nil, errs.WrapCritical(err, "failed to read portfolio file")
	}

	var p models.Portfolio
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errs.WrapCritical(err, "portfolio file is corrupt")
	}
	sanitize(&p)
	if err := validate(&p); err != nil {
		return nil, errs.WrapCritical(err, "portfolio file failed validation")
	}

	// Fresh paper start: an empty portfolio with zero cash gets the virtual
	// capital so the first cycle has something to trade with.
	if len(p.Holdings) == 0 && p.Cash.IsZero() && startingCash.GreaterThan(decimal.Zero) {
		log.Info().Str("cash", startingCash.StringFixed(2)).Msg("Initializing portfolio with virtual capital")
		p.Cash = startingCash
	}

	s.state = &p
	log.Info().
		Str("file", path).
		Int("holdings", len(p.Holdings)).
		Int("watchlist", len(p.Watchlist)).
		Msg("Successfully loaded and validated portfolio")
	return s, nil
}

// sanitize defaults missing top-level maps instead of treating them as
// fatal, and drops zero-quantity rows (a position that reached zero must not
// linger in holdings).
func sanitize(p *models.Portfolio) {
	if p.Holdings == nil {
		p.Holdings = make(map[string]*models.Position)
	}
	if p.Watchlist == nil {
		p.Watchlist = make(map[string]*models.WatchlistEntry)
	}
	for symbol, pos := range p.Holdings {
		if pos == nil || pos.Quantity == 0 {
			log.Warn().Str("symbol", symbol).Msg("Dropping empty holding row from portfolio file")
			delete(p.Holdings, symbol)
		}
	}
}

func validate(p *models.Portfolio) error {
	for symbol, pos := range p.Holdings {
		if pos.Quantity < 0 {
			return fmt.Errorf("holding %s has negative quantity %d", symbol, pos.Quantity)
		}
		if pos.EntryPrice.IsNegative() {
			return fmt.Errorf("holding %s has negative entry price %s", symbol, pos.EntryPrice)
		}
	}
	for symbol, entry := range p.Watchlist {
		if entry == nil {
			return fmt.Errorf("watchlist entry %s is empty", symbol)
		}
	}
	return nil
}

// WithTransaction acquires the exclusive lock, hands the live state to fn for
// in-place mutation and, when persist is set and fn succeeded, durably writes
// the full state before releasing. An error from fn skips the persist but the
// in-memory mutation stands; callers that need atomicity must not partially
// mutate before failing.
func (s *Store) WithTransaction(persist bool, fn func(p *models.Portfolio) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.state); err != nil {
		return err
	}
	if persist {
		return s.saveLocked()
	}
	return nil
}

// saveLocked writes the full state with the atomic pattern: temp file, sync,
// rename. Callers must hold s.mu.
func (s *Store) saveLocked() error {
	b, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal portfolio: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp portfolio file: %w", err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("write temp portfolio file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp portfolio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp portfolio file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace portfolio file: %w", err)
	}
	return nil
}

// Snapshot returns a deep copy of the current state for read-only consumers
// (reporting, prompts). Decisions that mutate state must use WithTransaction.
func (s *Store) Snapshot() *models.Portfolio {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := models.NewPortfolio(s.state.Cash)
	for sym, pos := range s.state.Holdings {
		p := *pos
		cp.Holdings[sym] = &p
	}
	for sym, w := range s.state.Watchlist {
		e := *w
		cp.Watchlist[sym] = &e
	}
	return cp
}
