package bank

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Bishkek is UTC+6 all year.
var Bishkek = time.FixedZone("Asia/Bishkek", 6*60*60)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrNoAccounts        = errors.New("no accounts")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrAmountRequired    = errors.New("amount required")
	ErrSelfTransfer      = errors.New("cannot transfer to self")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Money is an amount in tyiyn (1/100 som).
type Money int64

// Som converts a decimal som amount to Money, rounding to the nearest tyiyn.
func Som(v float64) Money { return Money(math.Round(v * 100)) }

func (m Money) Float() float64 { return float64(m) / 100 }

type TxType string

const (
	TxDeposit    TxType = "deposit"
	TxWithdrawal TxType = "withdrawal"
	TxTransfer   TxType = "transfer"
)

type User struct {
	ID   int64
	Name string
}

type Account struct {
	ID      int64
	UserID  int64
	Type    string // "checking", "savings"
	Balance Money
}

// Transaction moves money between accounts. From is zero for deposits and To
// is zero for withdrawals.
type Transaction struct {
	ID        int64
	From      int64
	To        int64
	Type      TxType
	Amount    Money
	Timestamp time.Time
}

// Direction describes a transaction from one user's point of view.
type Direction int

const (
	DirOut Direction = iota + 1
	DirIn
)

// Entry is a transaction as seen by one user.
type Entry struct {
	Transaction
	Direction    Direction
	Counterparty string // Empty for deposits and withdrawals
}

// Ledger is an in-memory account book. It is safe for concurrent use.
type Ledger struct {
	mu       sync.RWMutex
	users    map[int64]User
	accounts []Account
	txs      []Transaction
	nextTx   int64
	now      func() time.Time
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		users:  make(map[int64]User),
		nextTx: 1,
		now:    time.Now,
	}
}

// AddUser registers a user with the given accounts.
func (l *Ledger) AddUser(u User, accounts ...Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[u.ID] = u
	for _, a := range accounts {
		a.UserID = u.ID
		l.accounts = append(l.accounts, a)
	}
}

// Record appends a historical transaction without moving balances.
func (l *Ledger) Record(tx Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tx.ID == 0 {
		tx.ID = l.nextTx
	}
	if tx.ID >= l.nextTx {
		l.nextTx = tx.ID + 1
	}
	l.txs = append(l.txs, tx)
}

// User returns the user with the given id.
func (l *Ledger) User(id int64) (User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// Accounts returns the user's accounts in creation order.
func (l *Ledger) Accounts(userID int64) ([]Account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accountsLocked(userID)
}

func (l *Ledger) accountsLocked(userID int64) ([]Account, error) {
	if _, ok := l.users[userID]; !ok {
		return nil, ErrUserNotFound
	}
	var out []Account
	for _, a := range l.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoAccounts
	}
	return out, nil
}

// Balance returns the total over all the user's accounts.
func (l *Ledger) Balance(userID int64) (Money, error) {
	accounts, err := l.Accounts(userID)
	if err != nil {
		return 0, err
	}
	var total Money
	for _, a := range accounts {
		total += a.Balance
	}
	return total, nil
}

// History returns the user's transactions, newest first. limit <= 0 means all.
func (l *Ledger) History(userID int64, limit int) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owned, err := l.ownedLocked(userID)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, tx := range l.txs {
		if _, from := owned[tx.From]; from {
			out = append(out, l.entryLocked(tx, DirOut))
			continue
		}
		if _, to := owned[tx.To]; to {
			out = append(out, l.entryLocked(tx, DirIn))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LastIncoming returns the most recent transaction crediting the user, or
// false when there is none.
func (l *Ledger) LastIncoming(userID int64) (Entry, bool, error) {
	entries, err := l.History(userID, 0)
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.Direction == DirIn {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Largest returns the user's transaction with the biggest amount.
func (l *Ledger) Largest(userID int64) (Entry, bool, error) {
	entries, err := l.History(userID, 0)
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Amount > best.Amount {
			best = e
		}
	}
	return best, true, nil
}

// SumForPeriod totals incoming (DirIn) or outgoing (DirOut) transactions with
// from <= timestamp < to.
func (l *Ledger) SumForPeriod(userID int64, dir Direction, from, to time.Time) (Money, error) {
	entries, err := l.History(userID, 0)
	if err != nil {
		return 0, err
	}
	var total Money
	for _, e := range entries {
		if e.Direction != dir || e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		total += e.Amount
	}
	return total, nil
}

// RecentRecipients returns the counterparties of the user's last n outgoing transfers.
func (l *Ledger) RecentRecipients(userID int64, n int) ([]string, error) {
	entries, err := l.History(userID, 0)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Direction != DirOut || e.Type != TxTransfer {
			continue
		}
		out = append(out, e.Counterparty)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// Transfer moves amount from the sender's first account to the first
// account of the user named toName.
func (l *Ledger) Transfer(fromUser int64, toName string, amount Money) (Transaction, User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.users[fromUser]; !ok {
		return Transaction{}, User{}, ErrUserNotFound
	}
	recipient, ok := l.userByNameLocked(toName)
	if !ok {
		return Transaction{}, User{}, ErrRecipientNotFound
	}
	if amount <= 0 {
		return Transaction{}, recipient, ErrAmountRequired
	}
	if recipient.ID == fromUser {
		return Transaction{}, recipient, ErrSelfTransfer
	}
	src := l.firstAccountLocked(fromUser)
	dst := l.firstAccountLocked(recipient.ID)
	if src < 0 || dst < 0 {
		return Transaction{}, recipient, ErrNoAccounts
	}
	if l.accounts[src].Balance < amount {
		return Transaction{}, recipient, ErrInsufficientFunds
	}

	l.accounts[src].Balance -= amount
	l.accounts[dst].Balance += amount
	tx := Transaction{
		ID:        l.nextTx,
		From:      l.accounts[src].ID,
		To:        l.accounts[dst].ID,
		Type:      TxTransfer,
		Amount:    amount,
		Timestamp: l.now(),
	}
	l.nextTx++
	l.txs = append(l.txs, tx)
	return tx, recipient, nil
}

func (l *Ledger) userByNameLocked(name string) (User, bool) {
	name = strings.TrimSpace(name)
	for _, u := range l.users {
		if strings.EqualFold(strings.TrimSpace(u.Name), name) {
			return u, true
		}
	}
	return User{}, false
}

func (l *Ledger) firstAccountLocked(userID int64) int {
	for i, a := range l.accounts {
		if a.UserID == userID {
			return i
		}
	}
	return -1
}

func (l *Ledger) ownedLocked(userID int64) (map[int64]struct{}, error) {
	accounts, err := l.accountsLocked(userID)
	if err != nil {
		return nil, err
	}
	owned := make(map[int64]struct{}, len(accounts))
	for _, a := range accounts {
		owned[a.ID] = struct{}{}
	}
	return owned, nil
}

func (l *Ledger) entryLocked(tx Transaction, dir Direction) Entry {
	e := Entry{Transaction: tx, Direction: dir}
	other := tx.To
	if dir == DirIn {
		other = tx.From
	}
	if other == 0 {
		return e
	}
	e.Counterparty = unknownName
	for _, a := range l.accounts {
		if a.ID == other {
			if u, ok := l.users[a.UserID]; ok {
				e.Counterparty = u.Name
			}
			break
		}
	}
	return e
}
