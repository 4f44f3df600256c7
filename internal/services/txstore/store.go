// Package txstore holds the authoritative transaction list and the ledgers derived
// from it. Every write is load, mutate, recompute, persist, swap under one lock.
package txstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"daybook/internal/models"
	"daybook/internal/services/ledger"
	"daybook/internal/services/storage"
)

// BlobName is the persisted key holding the JSON transaction array
const BlobName = "accounting_transactions"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidAmount = errors.New("amounts must not be negative")
	ErrInvalidDate   = errors.New("date must be YYYY-MM-DD")
	ErrDuplicateID   = errors.New("duplicate transaction id")
	ErrInvalidData   = errors.New("invalid transaction data")
)

// Patch is a partial update. Nil fields are left unchanged; type cannot be patched.
type Patch struct {
	Date           *string                `json:"date,omitempty"`
	Particulars    *string                `json:"particulars,omitempty"`
	Sales          *decimal.Decimal       `json:"sales,omitempty"`
	Payment        *decimal.Decimal       `json:"payment,omitempty"`
	PaymentMethods *models.PaymentMethods `json:"paymentMethods,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p Patch) Empty() bool {
	return p.Date == nil && p.Particulars == nil && p.Sales == nil &&
		p.Payment == nil && p.PaymentMethods == nil
}

// Store is the single writer over the transaction list
type Store struct {
	mu           sync.RWMutex
	blobs        storage.BlobStore
	log          zerolog.Logger
	transactions []models.Transaction
	ledgers      map[string]models.CustomerLedger
	history      map[string]struct{}
	locked       bool
}

// Open loads the persisted transactions. A missing blob means an empty store.
func Open(ctx context.Context, blobs storage.BlobStore, log zerolog.Logger) (*Store, error) {
	s := &Store{
		blobs: blobs,
		log:   log.With().Str("component", "txstore").Logger(),
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces in-memory state with whatever is persisted
func (s *Store) Reload(ctx context.Context) error {
	data, err := s.blobs.Get(ctx, BlobName)
	if errors.Is(err, storage.ErrBlobNotFound) {
		data = nil
	} else if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}

	transactions, err := decode(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.swap(transactions)
	s.resetHistory()
	s.locked = false
	s.log.Info().Int("transactions", len(transactions)).Int("customers", len(s.ledgers)).Msg("Loaded transactions")
	return nil
}

// Lock drops all decrypted state. Reads come back empty and writes fail with
// storage.ErrLocked until the next successful Reload.
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.swap(nil)
	s.history = make(map[string]struct{})
	s.locked = true
	s.log.Info().Msg("Transaction state dropped")
}

// Locked reports whether Lock has been called without a Reload since
func (s *Store) Locked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locked
}

// Add appends a batch, rebuilds every ledger and persists
func (s *Store) Add(ctx context.Context, batch []models.Transaction) error {
	if len(batch) == 0 {
		return nil
	}
	for i := range batch {
		if err := validate(&batch[i]); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return storage.ErrLocked
	}
	ids := make(map[string]struct{}, len(s.transactions)+len(batch))
	for _, t := range s.transactions {
		ids[t.ID] = struct{}{}
	}

	next := make([]models.Transaction, 0, len(s.transactions)+len(batch))
	next = append(next, s.transactions...)
	for _, t := range batch {
		if _, dup := ids[t.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
		}
		ids[t.ID] = struct{}{}
		next = append(next, stripAnnotations(t))
	}

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.swap(next)
	for _, t := range batch {
		s.history[t.Particulars] = struct{}{}
	}

	s.log.Info().Int("added", len(batch)).Int("total", len(next)).Msg("Transactions added")
	return nil
}

// Update merges patch into the transaction with the given id
func (s *Store) Update(ctx context.Context, id string, patch Patch) (models.Transaction, error) {
	if err := patch.validate(); err != nil {
		return models.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return models.Transaction{}, storage.ErrLocked
	}
	idx := -1
	for i := range s.transactions {
		if s.transactions[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}

	next := make([]models.Transaction, len(s.transactions))
	copy(next, s.transactions)
	updated := next[idx].Clone()
	patch.apply(&updated)
	next[idx] = updated

	if err := s.persist(ctx, next); err != nil {
		return models.Transaction{}, err
	}
	s.swap(next)
	if patch.Particulars != nil {
		s.history[updated.Particulars] = struct{}{}
	}

	s.log.Debug().Str("id", id).Msg("Transaction updated")
	return updated.Clone(), nil
}

// Query returns the matching transactions, newest first. Same-date rows keep insertion order.
func (s *Store) Query(filter models.TransactionFilter) *models.TransactionSet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.NewTransactionSet(s.transactions).
		Filter(filter).
		SortByDateDesc().
		Truncate(filter.Limit)
}

// Dashboard returns the filtered transactions and the full ledger map from one consistent state
func (s *Store) Dashboard(filter models.TransactionFilter) (*models.TransactionSet, map[string]models.CustomerLedger) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.NewTransactionSet(s.transactions).
		Filter(filter).
		SortByDateDesc().
		Truncate(filter.Limit), s.ledgers
}

// Clear wipes transactions, ledgers and particulars history, and erases the blob
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return storage.ErrLocked
	}
	if err := s.blobs.Delete(ctx, BlobName); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	s.transactions = nil
	s.ledgers = ledger.Build(nil)
	s.history = make(map[string]struct{})

	s.log.Warn().Msg("All transactions cleared")
	return nil
}

// ParticularsHistory returns every particulars string stored since load, sorted.
// Names replaced by an update stay in the history until Clear.
// A non-empty query keeps only case-insensitive substring matches.
func (s *Store) ParticularsHistory(query string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	names := make([]string, 0, len(s.history))
	for name := range s.history {
		if q == "" || strings.Contains(strings.ToLower(name), q) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Ledgers returns every customer ledger ordered by exposure
func (s *Store) Ledgers() []models.CustomerLedger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ledger.Sorted(s.ledgers)
}

// LedgerMap returns the ledgers keyed by customer key. The map is shared and must not be modified.
func (s *Store) LedgerMap() map[string]models.CustomerLedger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledgers
}

// Ledger returns the ledger for particulars, matched case-insensitively
func (s *Store) Ledger(particulars string) (models.CustomerLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.locked {
		return models.CustomerLedger{}, storage.ErrLocked
	}
	l, ok := s.ledgers[models.CustomerKey(particulars)]
	if !ok {
		return models.CustomerLedger{}, fmt.Errorf("customer %q: %w", particulars, ErrNotFound)
	}
	return l, nil
}

// Outstanding returns the ledgers whose balance is not settled
func (s *Store) Outstanding() []models.CustomerLedger {
	return ledger.WithBalance(s.Ledgers())
}

// Snapshot returns a deep copy of every transaction in insertion order
func (s *Store) Snapshot() []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.NewTransactionSet(s.transactions).Copy().Transactions
}

// Backup returns the persisted representation of the current state
func (s *Store) Backup() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.locked {
		return nil, storage.ErrLocked
	}
	return encode(s.transactions)
}

// Restore replaces every transaction with the contents of a backup
func (s *Store) Restore(ctx context.Context, data []byte) error {
	transactions, err := decode(data)
	if err != nil {
		return err
	}
	ids := make(map[string]struct{}, len(transactions))
	for i := range transactions {
		if err := validate(&transactions[i]); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidData, err)
		}
		if _, dup := ids[transactions[i].ID]; dup {
			return fmt.Errorf("%w: %w: %s", ErrInvalidData, ErrDuplicateID, transactions[i].ID)
		}
		ids[transactions[i].ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return storage.ErrLocked
	}
	if err := s.persist(ctx, transactions); err != nil {
		return err
	}
	s.swap(transactions)
	s.resetHistory()

	s.log.Info().Int("transactions", len(transactions)).Msg("Transactions restored")
	return nil
}

// persist writes next to the blob store; callers hold s.mu
func (s *Store) persist(ctx context.Context, next []models.Transaction) error {
	data, err := encode(next)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := s.blobs.Put(ctx, BlobName, data); err != nil {
		return fmt.Errorf("persist transactions: %w", err)
	}
	s.log.Debug().Int("bytes", len(data)).Dur("took", time.Since(start)).Msg("Transactions persisted")
	return nil
}

// swap installs next as current state and rebuilds the ledgers; callers hold s.mu
func (s *Store) swap(next []models.Transaction) {
	s.transactions = next
	s.ledgers = ledger.Build(next)
}

// resetHistory seeds the particulars history from the current transactions; callers hold s.mu
func (s *Store) resetHistory() {
	s.history = make(map[string]struct{}, len(s.transactions))
	for _, t := range s.transactions {
		s.history[t.Particulars] = struct{}{}
	}
}

func encode(transactions []models.Transaction) ([]byte, error) {
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	data, err := json.Marshal(transactions)
	if err != nil {
		return nil, fmt.Errorf("encode transactions: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]models.Transaction, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var transactions []models.Transaction
	if err := json.Unmarshal(data, &transactions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	for i := range transactions {
		transactions[i] = stripAnnotations(transactions[i])
	}
	return transactions, nil
}

// stripAnnotations drops ledger-only fields and zero channels before storing
func stripAnnotations(t models.Transaction) models.Transaction {
	t = t.Clone()
	t.CreditAmount = nil
	t.DebitAmount = nil
	t.Balance = nil
	t.PaymentMethods = t.PaymentMethods.Positive()
	return t
}

func validate(t *models.Transaction) error {
	if t.ID == "" {
		return errors.New("transaction id is required")
	}
	if !t.Type.Valid() {
		return fmt.Errorf("transaction %s: unknown type %q", t.ID, t.Type)
	}
	if _, err := time.Parse(models.DateLayout, t.Date); err != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, ErrInvalidDate)
	}
	if t.Sales.IsNegative() || t.Payment.IsNegative() {
		return fmt.Errorf("transaction %s: %w", t.ID, ErrInvalidAmount)
	}
	for _, amount := range t.PaymentMethods {
		if amount.IsNegative() {
			return fmt.Errorf("transaction %s: %w", t.ID, ErrInvalidAmount)
		}
	}
	return nil
}

func (p Patch) validate() error {
	if p.Date != nil {
		if _, err := time.Parse(models.DateLayout, *p.Date); err != nil {
			return ErrInvalidDate
		}
	}
	if (p.Sales != nil && p.Sales.IsNegative()) || (p.Payment != nil && p.Payment.IsNegative()) {
		return ErrInvalidAmount
	}
	if p.PaymentMethods != nil {
		for _, amount := range *p.PaymentMethods {
			if amount.IsNegative() {
				return ErrInvalidAmount
			}
		}
	}
	return nil
}

func (p Patch) apply(t *models.Transaction) {
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.Particulars != nil {
		t.Particulars = *p.Particulars
	}
	if p.Sales != nil {
		t.Sales = *p.Sales
	}
	if p.Payment != nil {
		t.Payment = *p.Payment
	}
	if p.PaymentMethods != nil {
		t.PaymentMethods = p.PaymentMethods.Positive()
	}
}
