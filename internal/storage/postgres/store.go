package postgres

// Package postgres provides a pgx-backed storage.Store for shared deployments.
//
// Amounts live in numeric columns and cross the wire as text so no precision
// is lost between Postgres and the decimal type used by the ledger package.
// Atomic scopes run in a pgx transaction and lock account rows they read.

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "strings"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgconn"
    "github.com/jackc/pgx/v5/pgxpool"

    "github.com/tinoosan/hishab/internal/errs"
    "github.com/tinoosan/hishab/internal/ledger"
    "github.com/tinoosan/hishab/internal/storage"
)

// dbtx is the subset shared by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
    Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
    Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
    QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
    pool *pgxpool.Pool
    conn
}

var _ storage.Store = (*Store)(nil)

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
    cfg, err := pgxpool.ParseConfig(dsn)
    if err != nil { return nil, err }
    pool, err := pgxpool.NewWithConfig(ctx, cfg)
    if err != nil { return nil, err }
    // Verify connection
    if err := pool.Ping(ctx); err != nil { pool.Close(); return nil, err }
    return &Store{pool: pool, conn: conn{q: pool}}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
    if s.pool != nil { s.pool.Close() }
    return nil
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Atomic runs fn in one pgx transaction. Account reads inside the scope take
// row locks, so concurrent balance updates on the same account serialize.
func (s *Store) Atomic(ctx context.Context, fn func(tx storage.Tx) error) error {
    tx, err := s.pool.Begin(ctx)
    if err != nil { return storageErr("begin", err) }
    defer func() { _ = tx.Rollback(ctx) }()
    if err := fn(conn{q: tx, lock: true}); err != nil { return err }
    if err := tx.Commit(ctx); err != nil { return storageErr("commit", err) }
    return nil
}

// conn implements storage.Tx over either the pool or an open transaction.
type conn struct {
    q    dbtx
    lock bool
}

func storageErr(op string, err error) error {
    return fmt.Errorf("%s: %w: %v", op, errs.ErrStorage, err)
}

func parseMoney(s string) (ledger.Money, error) { return ledger.ParseMoney(s) }

// --- accounts ---

const accountCols = `id, name, type, balance::text, opening_balance::text, currency, archived, created_at, updated_at`

func scanAccount(row pgx.Row) (ledger.Account, error) {
    var a ledger.Account
    var typ, bal, opening string
    if err := row.Scan(&a.ID, &a.Name, &typ, &bal, &opening, &a.Currency, &a.Archived, &a.CreatedAt, &a.UpdatedAt); err != nil {
        return ledger.Account{}, err
    }
    a.Type = ledger.AccountType(typ)
    var err error
    if a.Balance, err = parseMoney(bal); err != nil { return ledger.Account{}, err }
    if a.OpeningBalance, err = parseMoney(opening); err != nil { return ledger.Account{}, err }
    return a, nil
}

// GetAccount fetches one account; inside Atomic the row is locked until commit.
func (c conn) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
    q := `select ` + accountCols + ` from accounts where id = $1`
    if c.lock { q += ` for update` }
    a, err := scanAccount(c.q.QueryRow(ctx, q, id))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Account{}, fmt.Errorf("account %q: %w", id, errs.ErrNotFound) }
    if err != nil { return ledger.Account{}, storageErr("get account", err) }
    return a, nil
}

func (c conn) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
    rows, err := c.q.Query(ctx, `select `+accountCols+` from accounts order by created_at, id`)
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
    err := c.q.QueryRow(ctx, `select count(*) from transactions where account_id = $1 or counterparty_account_id = $1`, id).Scan(&n)
    if err != nil { return 0, storageErr("count references", err) }
    return n, nil
}

func (c conn) PutAccount(ctx context.Context, a ledger.Account) error {
    _, err := c.q.Exec(ctx, `
        insert into accounts (id, name, type, balance, opening_balance, currency, archived, created_at, updated_at)
        values ($1, $2, $3, ($4::text)::numeric, ($5::text)::numeric, $6, $7, $8, $9)
        on conflict (id) do update set
            name = excluded.name, type = excluded.type, balance = excluded.balance,
            opening_balance = excluded.opening_balance, currency = excluded.currency,
            archived = excluded.archived, updated_at = excluded.updated_at
    `, a.ID, a.Name, string(a.Type), a.Balance.String(), a.OpeningBalance.String(), strings.ToUpper(a.Currency), a.Archived, a.CreatedAt, a.UpdatedAt)
    if err != nil { return storageErr("put account", err) }
    return nil
}

func (c conn) DeleteAccount(ctx context.Context, id string) error {
    if _, err := c.q.Exec(ctx, `delete from accounts where id = $1`, id); err != nil { return storageErr("delete account", err) }
    return nil
}

// --- categories ---

const categoryCols = `id, name, type, parent_id, archived, created_at, updated_at`

func scanCategory(row pgx.Row) (ledger.Category, error) {
    var cat ledger.Category
    var typ string
    if err := row.Scan(&cat.ID, &cat.Name, &typ, &cat.ParentID, &cat.Archived, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
        return ledger.Category{}, err
    }
    cat.Type = ledger.CategoryType(typ)
    return cat, nil
}

func (c conn) GetCategory(ctx context.Context, id string) (ledger.Category, error) {
    cat, err := scanCategory(c.q.QueryRow(ctx, `select `+categoryCols+` from categories where id = $1`, id))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Category{}, fmt.Errorf("category %q: %w", id, errs.ErrNotFound) }
    if err != nil { return ledger.Category{}, storageErr("get category", err) }
    return cat, nil
}

func (c conn) ListCategories(ctx context.Context) ([]ledger.Category, error) {
    rows, err := c.q.Query(ctx, `select `+categoryCols+` from categories`)
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
    _, err := c.q.Exec(ctx, `
        insert into categories (id, name, type, parent_id, archived, created_at, updated_at)
        values ($1, $2, $3, $4, $5, $6, $7)
        on conflict (id) do update set
            name = excluded.name, type = excluded.type, parent_id = excluded.parent_id,
            archived = excluded.archived, updated_at = excluded.updated_at
    `, cat.ID, cat.Name, string(cat.Type), cat.ParentID, cat.Archived, cat.CreatedAt, cat.UpdatedAt)
    if err != nil { return storageErr("put category", err) }
    return nil
}

func (c conn) DeleteCategory(ctx context.Context, id string) error {
    if _, err := c.q.Exec(ctx, `delete from categories where id = $1`, id); err != nil { return storageErr("delete category", err) }
    return nil
}

// --- budgets ---

const budgetCols = `id, month, category_id, amount::text, spent::text, created_at, updated_at`

func scanBudget(row pgx.Row) (ledger.Budget, error) {
    var b ledger.Budget
    var month, amount, spent string
    if err := row.Scan(&b.ID, &month, &b.CategoryID, &amount, &spent, &b.CreatedAt, &b.UpdatedAt); err != nil {
        return ledger.Budget{}, err
    }
    b.Month = ledger.Month(month)
    var err error
    if b.Amount, err = parseMoney(amount); err != nil { return ledger.Budget{}, err }
    if b.Spent, err = parseMoney(spent); err != nil { return ledger.Budget{}, err }
    return b, nil
}

func (c conn) GetBudget(ctx context.Context, id string) (ledger.Budget, error) {
    b, err := scanBudget(c.q.QueryRow(ctx, `select `+budgetCols+` from budgets where id = $1`, id))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Budget{}, fmt.Errorf("budget %q: %w", id, errs.ErrNotFound) }
    if err != nil { return ledger.Budget{}, storageErr("get budget", err) }
    return b, nil
}

func (c conn) BudgetFor(ctx context.Context, month ledger.Month, categoryID string) (ledger.Budget, error) {
    b, err := scanBudget(c.q.QueryRow(ctx, `select `+budgetCols+` from budgets where month = $1 and category_id = $2`, string(month), categoryID))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Budget{}, fmt.Errorf("budget %s/%s: %w", month, categoryID, errs.ErrNotFound) }
    if err != nil { return ledger.Budget{}, storageErr("budget for", err) }
    return b, nil
}

func (c conn) ListBudgets(ctx context.Context, month ledger.Month) ([]ledger.Budget, error) {
    rows, err := c.q.Query(ctx, `
        select `+budgetCols+` from budgets
        where $1 = '' or month = $1
        order by month, category_id, id
    `, string(month))
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
    _, err := c.q.Exec(ctx, `
        insert into budgets (id, month, category_id, amount, spent, created_at, updated_at)
        values ($1, $2, $3, ($4::text)::numeric, ($5::text)::numeric, $6, $7)
        on conflict (id) do update set
            month = excluded.month, category_id = excluded.category_id, amount = excluded.amount,
            spent = excluded.spent, updated_at = excluded.updated_at
    `, b.ID, string(b.Month), b.CategoryID, b.Amount.String(), b.Spent.String(), b.CreatedAt, b.UpdatedAt)
    if err != nil {
        var pgErr *pgconn.PgError
        if errors.As(err, &pgErr) && pgErr.Code == "23505" {
            return fmt.Errorf("budget %s/%s already exists: %w", b.Month, b.CategoryID, errs.ErrConflict)
        }
        return storageErr("put budget", err)
    }
    return nil
}

func (c conn) DeleteBudget(ctx context.Context, id string) error {
    if _, err := c.q.Exec(ctx, `delete from budgets where id = $1`, id); err != nil { return storageErr("delete budget", err) }
    return nil
}

// --- transactions ---

const txnCols = `id, date, type, amount::text, account_id, counterparty_account_id, category_id, notes, tags, created_at, updated_at`

func scanTxn(row pgx.Row) (ledger.Transaction, error) {
    var t ledger.Transaction
    var typ, amount string
    if err := row.Scan(&t.ID, &t.Date, &typ, &amount, &t.AccountID, &t.CounterpartyAccountID, &t.CategoryID, &t.Notes, &t.Tags, &t.CreatedAt, &t.UpdatedAt); err != nil {
        return ledger.Transaction{}, err
    }
    t.Type = ledger.TransactionType(typ)
    var err error
    if t.Amount, err = parseMoney(amount); err != nil { return ledger.Transaction{}, err }
    if t.Tags == nil { t.Tags = []string{} }
    return t, nil
}

func (c conn) GetTransaction(ctx context.Context, id string) (ledger.Transaction, error) {
    t, err := scanTxn(c.q.QueryRow(ctx, `select `+txnCols+` from transactions where id = $1`, id))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.Transaction{}, fmt.Errorf("transaction %q: %w", id, errs.ErrNotFound) }
    if err != nil { return ledger.Transaction{}, storageErr("get transaction", err) }
    return t, nil
}

func (c conn) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]ledger.Transaction, error) {
    var where []string
    var args []any
    arg := func(v any) string {
        args = append(args, v)
        return fmt.Sprintf("$%d", len(args))
    }
    if f.From != nil { where = append(where, `date >= `+arg(*f.From)) }
    if f.To != nil { where = append(where, `date <= `+arg(*f.To)) }
    if f.CategoryID != "" { where = append(where, `category_id = `+arg(f.CategoryID)) }
    if f.AccountID != "" {
        p := arg(f.AccountID)
        where = append(where, `(account_id = `+p+` or counterparty_account_id = `+p+`)`)
    }
    q := `select ` + txnCols + ` from transactions`
    if len(where) > 0 { q += ` where ` + strings.Join(where, ` and `) }
    q += ` order by date desc, created_at desc, id desc`
    rows, err := c.q.Query(ctx, q, args...)
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
    if tags == nil { tags = []string{} }
    _, err := c.q.Exec(ctx, `
        insert into transactions (id, date, type, amount, account_id, counterparty_account_id, category_id, notes, tags, created_at, updated_at)
        values ($1, $2, $3, ($4::text)::numeric, $5, $6, $7, $8, $9, $10, $11)
        on conflict (id) do update set
            date = excluded.date, type = excluded.type, amount = excluded.amount,
            account_id = excluded.account_id, counterparty_account_id = excluded.counterparty_account_id,
            category_id = excluded.category_id, notes = excluded.notes, tags = excluded.tags,
            updated_at = excluded.updated_at
    `, t.ID, t.Date, string(t.Type), t.Amount.String(), t.AccountID, t.CounterpartyAccountID, t.CategoryID, t.Notes, tags, t.CreatedAt, t.UpdatedAt)
    if err != nil { return storageErr("put transaction", err) }
    return nil
}

func (c conn) DeleteTransaction(ctx context.Context, id string) error {
    if _, err := c.q.Exec(ctx, `delete from transactions where id = $1`, id); err != nil { return storageErr("delete transaction", err) }
    return nil
}

// --- goals ---

const goalCols = `id, name, target_amount::text, target_date, current_allocated::text, created_at, updated_at`

func scanGoal(row pgx.Row) (ledger.SavingsGoal, error) {
    var g ledger.SavingsGoal
    var target, allocated string
    if err := row.Scan(&g.ID, &g.Name, &target, &g.TargetDate, &allocated, &g.CreatedAt, &g.UpdatedAt); err != nil {
        return ledger.SavingsGoal{}, err
    }
    var err error
    if g.TargetAmount, err = parseMoney(target); err != nil { return ledger.SavingsGoal{}, err }
    if g.CurrentAllocated, err = parseMoney(allocated); err != nil { return ledger.SavingsGoal{}, err }
    return g, nil
}

func (c conn) GetGoal(ctx context.Context, id string) (ledger.SavingsGoal, error) {
    g, err := scanGoal(c.q.QueryRow(ctx, `select `+goalCols+` from goals where id = $1`, id))
    if errors.Is(err, pgx.ErrNoRows) { return ledger.SavingsGoal{}, fmt.Errorf("goal %q: %w", id, errs.ErrNotFound) }
    if err != nil { return ledger.SavingsGoal{}, storageErr("get goal", err) }
    return g, nil
}

func (c conn) ListGoals(ctx context.Context) ([]ledger.SavingsGoal, error) {
    rows, err := c.q.Query(ctx, `select `+goalCols+` from goals`)
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
    _, err := c.q.Exec(ctx, `
        insert into goals (id, name, target_amount, target_date, current_allocated, created_at, updated_at)
        values ($1, $2, ($3::text)::numeric, $4, ($5::text)::numeric, $6, $7)
        on conflict (id) do update set
            name = excluded.name, target_amount = excluded.target_amount, target_date = excluded.target_date,
            current_allocated = excluded.current_allocated, updated_at = excluded.updated_at
    `, g.ID, g.Name, g.TargetAmount.String(), g.TargetDate, g.CurrentAllocated.String(), g.CreatedAt, g.UpdatedAt)
    if err != nil { return storageErr("put goal", err) }
    return nil
}

func (c conn) DeleteGoal(ctx context.Context, id string) error {
    if _, err := c.q.Exec(ctx, `delete from goals where id = $1`, id); err != nil { return storageErr("delete goal", err) }
    return nil
}

// --- snapshots ---

func (c conn) ListSnapshots(ctx context.Context, limit int) ([]ledger.Snapshot, error) {
    q := `select id, month, net_worth::text, total_income::text, total_expense::text, by_category, created_at
        from snapshots order by month desc, created_at desc`
    var args []any
    if limit > 0 {
        q += ` limit $1`
        args = append(args, limit)
    }
    rows, err := c.q.Query(ctx, q, args...)
    if err != nil { return nil, storageErr("list snapshots", err) }
    defer rows.Close()
    out := make([]ledger.Snapshot, 0)
    for rows.Next() {
        var s ledger.Snapshot
        var month, netWorth, income, expense string
        var byCat []byte
        if err := rows.Scan(&s.ID, &month, &netWorth, &income, &expense, &byCat, &s.CreatedAt); err != nil {
            return nil, storageErr("scan snapshot", err)
        }
        s.Month = ledger.Month(month)
        if s.NetWorth, err = parseMoney(netWorth); err != nil { return nil, err }
        if s.Totals.Income, err = parseMoney(income); err != nil { return nil, err }
        if s.Totals.Expense, err = parseMoney(expense); err != nil { return nil, err }
        if err := json.Unmarshal(byCat, &s.ByCategory); err != nil { return nil, fmt.Errorf("decode snapshot categories: %w", err) }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (c conn) PutSnapshot(ctx context.Context, s ledger.Snapshot) error {
    byCat := s.ByCategory
    if byCat == nil { byCat = []ledger.CategoryTotal{} }
    b, err := json.Marshal(byCat)
    if err != nil { return fmt.Errorf("encode snapshot categories: %w", err) }
    _, err = c.q.Exec(ctx, `
        insert into snapshots (id, month, net_worth, total_income, total_expense, by_category, created_at)
        values ($1, $2, ($3::text)::numeric, ($4::text)::numeric, ($5::text)::numeric, ($6::text)::jsonb, $7)
        on conflict (id) do update set
            month = excluded.month, net_worth = excluded.net_worth, total_income = excluded.total_income,
            total_expense = excluded.total_expense, by_category = excluded.by_category
    `, s.ID, string(s.Month), s.NetWorth.String(), s.Totals.Income.String(), s.Totals.Expense.String(), string(b), s.CreatedAt)
    if err != nil { return storageErr("put snapshot", err) }
    return nil
}

// Truncate empties every table in one statement.
func (c conn) Truncate(ctx context.Context) error {
    _, err := c.q.Exec(ctx, `truncate table transactions, budgets, snapshots, goals, categories, accounts`)
    if err != nil { return storageErr("truncate", err) }
    return nil
}
