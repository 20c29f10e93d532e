// Package sqlite implements storage.Store on an embedded SQLite database
// (modernc.org/sqlite, no cgo). It is the default backend for local use.
package sqlite

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    _ "modernc.org/sqlite"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/storage"
)

// timeLayout is fixed width so TEXT comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-backed storage.Store. A single connection serializes
// writers, which makes every Atomic scope run in isolation.
type Store struct {
    db *sql.DB
    conn
}

var _ storage.Store = (*Store)(nil)

// DSN builds the modernc connection string for path with the pragmas the store relies on.
func DSN(path string) string {
    if path == ":memory:" || strings.HasPrefix(path, "file:") { return path }
    return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Open creates the parent directory when needed, applies migrations and returns the store.
func Open(ctx context.Context, path string) (*Store, error) {
    if path != ":memory:" && !strings.HasPrefix(path, "file:") {
        if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { return nil, fmt.Errorf("create db directory: %w", err) }
    }
    dsn := DSN(path)
    if path != ":memory:" {
        if err := RunMigrations(dsn); err != nil { return nil, err }
    }
    db, err := sql.Open("sqlite", dsn)
    if err != nil { return nil, fmt.Errorf("open sqlite database: %w", err) }
    db.SetMaxOpenConns(1)
    if err := db.PingContext(ctx); err != nil {
        db.Close()
        return nil, fmt.Errorf("ping database: %w", err)
    }
    if path == ":memory:" {
        // an in-memory database lives on its single connection, so migrate it there
        if err := migrateInPlace(ctx, db); err != nil {
            db.Close()
            return nil, err
        }
    }
    return &Store{db: db, conn: conn{q: db}}, nil
}

func migrateInPlace(ctx context.Context, db *sql.DB) error {
    b, err := migrationsFS.ReadFile("migrations/0001_init.up.sql")
    if err != nil { return fmt.Errorf("read schema: %w", err) }
    if _, err := db.ExecContext(ctx, string(b)); err != nil { return fmt.Errorf("apply schema: %w", err) }
    return nil
}

func (s *Store) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error {
    if s.db != nil { return s.db.Close() }
    return nil
}

// Atomic runs fn inside a SQL transaction, committing only when fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return fmt.Errorf("begin: %w: %v", errs.ErrStorage, err) }
    defer func() { _ = tx.Rollback() }()
    if err := fn(conn{q: tx}); err != nil { return err }
    if err := tx.Commit(); err != nil { return fmt.Errorf("commit: %w: %v", errs.ErrStorage, err) }
    return nil
}

// querier is the subset shared by *sql.DB and *sql.Tx.
type querier interface {
    ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements storage.Tx over either the pool or an open transaction.
type conn struct {
    q querier
}

func storageErr(op string, err error) error {
    return fmt.Errorf("%s: %w: %v", op, errs.ErrStorage, err)
}

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

func nullTime(t *time.Time) sql.NullString {
    if t == nil { return sql.NullString{} }
    return sql.NullString{String: fmtTime(*t), Valid: true}
}

func nullStr(p *string) sql.NullString {
    if p == nil { return sql.NullString{} }
    return sql.NullString{String: *p, Valid: true}
}

func strPtr(n sql.NullString) *string {
    if !n.Valid { return nil }
    v := n.String
    return &v
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
    Scan(dest ...any) error
}

// --- accounts ---

const accountCols = `id, name, type, balance, opening_balance, currency, archived, created_at, updated_at`

func scanAccount(sc scanner) (ledger.Account, error) {
    var a ledger.Account
    var created, updated string
    if err := sc.Scan(&a.ID, &a.Name, &a.Type, &a.Balance, &a.OpeningBalance, &a.Currency, &a.Archived, &created, &updated); err != nil {
        return ledger.Account{}, err
    }
    var err error
    if a.CreatedAt, err = parseTime(created); err != nil { return ledger.Account{}, err }
    if a.UpdatedAt, err = parseTime(updated); err != nil { return ledger.Account{}, err }
    return a, nil
}

func (c conn) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
    a, err := scanAccount(c.q.QueryRowContext(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) { return ledger.Account{}, fmt.Errorf("account %q: %w", id, errs.ErrNotFound) }
    if err != nil { return ledger.Account{}, storageErr("get account", err) }
    return a, nil
}

func (c conn) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
    rows, err := c.q.QueryContext(ctx, `SELECT `+accountCols+` FROM accounts ORDER BY created_at, id`)
    if err != nil { return nil, storageErr("list accounts", err) }
    defer rows.Close()
    out := make([]ledger.Account, 0)
    for rows.Next() {
        a, err := scanAccount(rows)
        if err != nil { return nil, storageErr("scan account", err) }
        out = append(out, a)
    }
    return out, rows.Err()
}

func (c conn) CountAccountReferences(ctx context.Context, id string) (int, error) {
    var n int
    err := c.q.QueryRowContext(ctx, `SELECT count(*) FROM transactions WHERE account_id = ? OR counterparty_account_id = ?`, id, id).Scan(&n)
    if err != nil { return 0, storageErr("count references", err) }
    return n, nil
}

func (c conn) PutAccount(ctx context.Context, a ledger.Account) error {
    _, err := c.q.ExecContext(ctx, `
        INSERT INTO accounts (`+accountCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            name = excluded.name, type = excluded.type, balance = excluded.balance,
            opening_balance = excluded.opening_balance, currency = excluded.currency,
            archived = excluded.archived, updated_at = excluded.updated_at`,
        a.ID, a.Name, string(a.Type), a.Balance.String(), a.OpeningBalance.String(), a.Currency, a.Archived,
        fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt))
    if err != nil { return storageErr("put account", err) }
    return nil
}

func (c conn) DeleteAccount(ctx context.Context, id string) error {
    if _, err := c.q.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
        return storageErr("delete account", err)
    }
    return nil
}

// --- categories ---

const categoryCols = `id, name, type, parent_id, archived, created_at, updated_at`

func scanCategory(sc scanner) (ledger.Category, error) {
    var cat ledger.Category
    var parent sql.NullString
    var created, updated string
    if err := sc.Scan(&cat.ID, &cat.Name, &cat.Type, &parent, &cat.Archived, &created, &updated); err != nil {
        return ledger.Category{}, err
    }
    cat.ParentID = strPtr(parent)
    var err error
    if cat.CreatedAt, err = parseTime(created); err != nil { return ledger.Category{}, err }
    if cat.UpdatedAt, err = parseTime(updated); err != nil { return ledger.Category{}, err }
    return cat, nil
}

func (c conn) GetCategory(ctx context.Context, id string) (ledger.Category, error) {
    cat, err := scanCategory(c.q.QueryRowContext(ctx, `SELECT `+categoryCols+` FROM categories WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) { return ledger.Category{}, fmt.Errorf("category %q: %w", id, errs.ErrNotFound) }
    if err != nil { return ledger.Category{}, storageErr("get category", err) }
    return cat, nil
}

func (c conn) ListCategories(ctx context.Context) ([]ledger.Category, error) {
    rows, err := c.q.QueryContext(ctx, `SELECT `+categoryCols+` FROM categories`)
    if err != nil { return nil, storageErr("list categories", err) }
    defer rows.Close()
    out := make([]ledger.Category, 0)
    for rows.Next() {
        cat, err := scanCategory(rows)
        if err != nil { return nil, storageErr("scan category", err) }
        out = append(out, cat)
    }
    if err := rows.Err(); err != nil { return nil, storageErr("list categories", err) }
    storage.SortCategories(out)
    return out, nil
}

func (c conn) PutCategory(ctx context.Context, cat ledger.Category) error {
    _, err := c.q.ExecContext(ctx, `
        INSERT INTO categories (`+categoryCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            name = excluded.name, type = excluded.type, parent_id = excluded.parent_id,
            archived = excluded.archived, updated_at = excluded.updated_at`,
        cat.ID, cat.Name, string(cat.Type), nullStr(cat.ParentID), cat.Archived, fmtTime(cat.CreatedAt), fmtTime(cat.UpdatedAt))
    if err != nil { return storageErr("put category", err) }
    return nil
}

func (c conn) DeleteCategory(ctx context.Context, id string) error {
    if _, err := c.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
        return storageErr("delete category", err)
    }
    return nil
}

// --- budgets ---

const budgetCols = `id, month, category_id, amount, spent, created_at, updated_at`

func scanBudget(sc scanner) (ledger.Budget, error) {
    var b ledger.Budget
    var created, updated string
    if err := sc.Scan(&b.ID, &b.Month, &b.CategoryID, &b.Amount, &b.Spent, &created, &updated); err != nil {
        return ledger.Budget{}, err
    }
    var err error
    if b.CreatedAt, err = parseTime(created); err != nil { return ledger.Budget{}, err }
    if b.UpdatedAt, err = parseTime(updated); err != nil { return ledger.Budget{}, err }
    return b, nil
}

func (c conn) GetBudget(ctx context.Context, id string) (ledger.Budget, error) {
    b, err := scanBudget(c.q.QueryRowContext(ctx, `SELECT `+budgetCols+` FROM budgets WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) { return ledger.Budget{}, fmt.Errorf("budget %q: %w", id, errs.ErrNotFound) }
    if err != nil { return ledger.Budget{}, storageErr("get budget", err) }
    return b, nil
}

func (c conn) BudgetFor(ctx context.Context, month ledger.Month, categoryID string) (ledger.Budget, error) {
    b, err := scanBudget(c.q.QueryRowContext(ctx, `SELECT `+budgetCols+` FROM budgets WHERE month = ? AND category_id = ?`, string(month), categoryID))
    if errors.Is(err, sql.ErrNoRows) {
        return ledger.Budget{}, fmt.Errorf("budget %s/%s: %w", month, categoryID, errs.ErrNotFound)
    }
    if err != nil { return ledger.Budget{}, storageErr("budget for", err) }
    return b, nil
}

func (c conn) ListBudgets(ctx context.Context, month ledger.Month) ([]ledger.Budget, error) {
    q := `SELECT ` + budgetCols + ` FROM budgets`
    var args []any
    if month != "" {
        q += ` WHERE month = ?`
        args = append(args, string(month))
    }
    q += ` ORDER BY month, category_id, id`
    rows, err := c.q.QueryContext(ctx, q, args...)
    if err != nil { return nil, storageErr("list budgets", err) }
    defer rows.Close()
    out := make([]ledger.Budget, 0)
    for rows.Next() {
        b, err := scanBudget(rows)
        if err != nil { return nil, storageErr("scan budget", err) }
        out = append(out, b)
    }
    return out, rows.Err()
}

func (c conn) PutBudget(ctx context.Context, b ledger.Budget) error {
    _, err := c.q.ExecContext(ctx, `
        INSERT INTO budgets (`+budgetCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            month = excluded.month, category_id = excluded.category_id, amount = excluded.amount,
            spent = excluded.spent, updated_at = excluded.updated_at`,
        b.ID, string(b.Month), b.CategoryID, b.Amount.String(), b.Spent.String(), fmtTime(b.CreatedAt), fmtTime(b.UpdatedAt))
    if err != nil {
        if strings.Contains(err.Error(), "UNIQUE constraint failed") {
            return fmt.Errorf("budget %s/%s already exists: %w", b.Month, b.CategoryID, errs.ErrConflict)
        }
        return storageErr("put budget", err)
    }
    return nil
}

func (c conn) DeleteBudget(ctx context.Context, id string) error {
    if _, err := c.q.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id); err != nil {
        return storageErr("delete budget", err)
    }
    return nil
}

// --- transactions ---

const txnCols = `id, date, type, amount, account_id, counterparty_account_id, category_id, notes, tags, created_at, updated_at`

func scanTxn(sc scanner) (ledger.Transaction, error) {
    var t ledger.Transaction
    var date, created, updated, tags string
    var counterparty, category sql.NullString
    if err := sc.Scan(&t.ID, &date, &t.Type, &t.Amount, &t.AccountID, &counterparty, &category, &t.Notes, &tags, &created, &updated); err != nil {
        return ledger.Transaction{}, err
    }
    t.CounterpartyAccountID = strPtr(counterparty)
    t.CategoryID = strPtr(category)
    if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
        return ledger.Transaction{}, fmt.Errorf("decode tags: %w", err)
    }
    if t.Tags == nil {
        t.Tags = []string{}
    }
    var err error
    if t.Date, err = parseTime(date); err != nil { return ledger.Transaction{}, err }
    if t.CreatedAt, err = parseTime(created); err != nil { return ledger.Transaction{}, err }
    if t.UpdatedAt, err = parseTime(updated); err != nil { return ledger.Transaction{}, err }
    return t, nil
}

func (c conn) GetTransaction(ctx context.Context, id string) (ledger.Transaction, error) {
    t, err := scanTxn(c.q.QueryRowContext(ctx, `SELECT `+txnCols+` FROM transactions WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) { return ledger.Transaction{}, fmt.Errorf("transaction %q: %w", id, errs.ErrNotFound) }
    if err != nil { return ledger.Transaction{}, storageErr("get transaction", err) }
    return t, nil
}

func (c conn) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]ledger.Transaction, error) {
    var where []string
    var args []any
    if f.From != nil {
        where = append(where, `date >= ?`)
        args = append(args, fmtTime(*f.From))
    }
    if f.To != nil {
        where = append(where, `date <= ?`)
        args = append(args, fmtTime(*f.To))
    }
    if f.CategoryID != "" {
        where = append(where, `category_id = ?`)
        args = append(args, f.CategoryID)
    }
    if f.AccountID != "" {
        where = append(where, `(account_id = ? OR counterparty_account_id = ?)`)
        args = append(args, f.AccountID, f.AccountID)
    }
    q := `SELECT ` + txnCols + ` FROM transactions`
    if len(where) > 0 {
        q += ` WHERE ` + strings.Join(where, ` AND `)
    }
    q += ` ORDER BY date DESC, created_at DESC, id DESC`
    rows, err := c.q.QueryContext(ctx, q, args...)
    if err != nil { return nil, storageErr("list transactions", err) }
    defer rows.Close()
    out := make([]ledger.Transaction, 0)
    for rows.Next() {
        t, err := scanTxn(rows)
        if err != nil { return nil, storageErr("scan transaction", err) }
        out = append(out, t)
    }
    return out, rows.Err()
}

func (c conn) PutTransaction(ctx context.Context, t ledger.Transaction) error {
    tags := t.Tags
    if tags == nil {
        tags = []string{}
    }
    tagsJSON, err := json.Marshal(tags)
    if err != nil { return fmt.Errorf("encode tags: %w", err) }
    _, err = c.q.ExecContext(ctx, `
        INSERT INTO transactions (`+txnCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            date = excluded.date, type = excluded.type, amount = excluded.amount,
            account_id = excluded.account_id, counterparty_account_id = excluded.counterparty_account_id,
            category_id = excluded.category_id, notes = excluded.notes, tags = excluded.tags,
            updated_at = excluded.updated_at`,
        t.ID, fmtTime(t.Date), string(t.Type), t.Amount.String(), t.AccountID, nullStr(t.CounterpartyAccountID),
        nullStr(t.CategoryID), t.Notes, string(tagsJSON), fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt))
    if err != nil { return storageErr("put transaction", err) }
    return nil
}

func (c conn) DeleteTransaction(ctx context.Context, id string) error {
    if _, err := c.q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id); err != nil {
        return storageErr("delete transaction", err)
    }
    return nil
}

// --- goals ---

const goalCols = `id, name, target_amount, target_date, current_allocated, created_at, updated_at`

func scanGoal(sc scanner) (ledger.SavingsGoal, error) {
    var g ledger.SavingsGoal
    var target sql.NullString
    var created, updated string
    if err := sc.Scan(&g.ID, &g.Name, &g.TargetAmount, &target, &g.CurrentAllocated, &created, &updated); err != nil {
        return ledger.SavingsGoal{}, err
    }
    if target.Valid {
        d, err := parseTime(target.String)
        if err != nil { return ledger.SavingsGoal{}, err }
        g.TargetDate = &d
    }
    var err error
    if g.CreatedAt, err = parseTime(created); err != nil { return ledger.SavingsGoal{}, err }
    if g.UpdatedAt, err = parseTime(updated); err != nil { return ledger.SavingsGoal{}, err }
    return g, nil
}

func (c conn) GetGoal(ctx context.Context, id string) (ledger.SavingsGoal, error) {
    g, err := scanGoal(c.q.QueryRowContext(ctx, `SELECT `+goalCols+` FROM goals WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) { return ledger.SavingsGoal{}, fmt.Errorf("goal %q: %w", id, errs.ErrNotFound) }
    if err != nil { return ledger.SavingsGoal{}, storageErr("get goal", err) }
    return g, nil
}

func (c conn) ListGoals(ctx context.Context) ([]ledger.SavingsGoal, error) {
    rows, err := c.q.QueryContext(ctx, `SELECT `+goalCols+` FROM goals`)
    if err != nil { return nil, storageErr("list goals", err) }
    defer rows.Close()
    out := make([]ledger.SavingsGoal, 0)
    for rows.Next() {
        g, err := scanGoal(rows)
        if err != nil { return nil, storageErr("scan goal", err) }
        out = append(out, g)
    }
    if err := rows.Err(); err != nil { return nil, storageErr("list goals", err) }
    storage.SortGoals(out)
    return out, nil
}

func (c conn) PutGoal(ctx context.Context, g ledger.SavingsGoal) error {
    _, err := c.q.ExecContext(ctx, `
        INSERT INTO goals (`+goalCols+`) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            name = excluded.name, target_amount = excluded.target_amount, target_date = excluded.target_date,
            current_allocated = excluded.current_allocated, updated_at = excluded.updated_at`,
        g.ID, g.Name, g.TargetAmount.String(), nullTime(g.TargetDate), g.CurrentAllocated.String(), fmtTime(g.CreatedAt), fmtTime(g.UpdatedAt))
    if err != nil { return storageErr("put goal", err) }
    return nil
}

func (c conn) DeleteGoal(ctx context.Context, id string) error {
    if _, err := c.q.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id); err != nil {
        return storageErr("delete goal", err)
    }
    return nil
}

// --- snapshots ---

func (c conn) ListSnapshots(ctx context.Context, limit int) ([]ledger.Snapshot, error) {
    q := `SELECT id, month, net_worth, total_income, total_expense, by_category, created_at
        FROM snapshots ORDER BY month DESC, created_at DESC`
    var args []any
    if limit > 0 {
        q += ` LIMIT ?`
        args = append(args, limit)
    }
    rows, err := c.q.QueryContext(ctx, q, args...)
    if err != nil { return nil, storageErr("list snapshots", err) }
    defer rows.Close()
    out := make([]ledger.Snapshot, 0)
    for rows.Next() {
        var s ledger.Snapshot
        var byCat, created string
        if err := rows.Scan(&s.ID, &s.Month, &s.NetWorth, &s.Totals.Income, &s.Totals.Expense, &byCat, &created); err != nil {
            return nil, storageErr("scan snapshot", err)
        }
        if err := json.Unmarshal([]byte(byCat), &s.ByCategory); err != nil {
            return nil, fmt.Errorf("decode snapshot categories: %w", err)
        }
        if s.CreatedAt, err = parseTime(created); err != nil { return nil, storageErr("scan snapshot", err) }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (c conn) PutSnapshot(ctx context.Context, s ledger.Snapshot) error {
    byCat := s.ByCategory
    if byCat == nil {
        byCat = []ledger.CategoryTotal{}
    }
    b, err := json.Marshal(byCat)
    if err != nil { return fmt.Errorf("encode snapshot categories: %w", err) }
    _, err = c.q.ExecContext(ctx, `
        INSERT INTO snapshots (id, month, net_worth, total_income, total_expense, by_category, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            month = excluded.month, net_worth = excluded.net_worth, total_income = excluded.total_income,
            total_expense = excluded.total_expense, by_category = excluded.by_category`,
        s.ID, string(s.Month), s.NetWorth.String(), s.Totals.Income.String(), s.Totals.Expense.String(), string(b), fmtTime(s.CreatedAt))
    if err != nil { return storageErr("put snapshot", err) }
    return nil
}

// Truncate empties every table; callers wrap it in Atomic together with the reload.
func (c conn) Truncate(ctx context.Context) error {
    for _, table := range []string{"transactions", "budgets", "snapshots", "goals", "categories", "accounts"} {
        if _, err := c.q.ExecContext(ctx, `DELETE FROM `+table); err != nil {
            return storageErr("truncate "+table, err)
        }
    }
    return nil
}
