package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sheikh-saqib/store-credit-ledger/internal/interfaces"
	"github.com/sheikh-saqib/store-credit-ledger/internal/models"
	"github.com/sheikh-saqib/store-credit-ledger/internal/storage"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements interfaces.LedgerStore on top of database/sql.
// Outside WithinTx each statement commits on its own.
type Store struct {
	db      *sql.DB
	q       querier
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		q:       db,
		dialect: dialect,
	}
}

// DB exposes the underlying handle, mainly for migrations and tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// WithinTx runs fn inside a single database transaction. Any error returned by
// fn, or a panic, rolls the transaction back. Calls made on an already
// transactional store join the running transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx interfaces.LedgerTx) error) (err error) {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = dbTx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	if err = fn(&Store{db: s.db, q: dbTx, dialect: s.dialect}); err != nil {
		return err
	}
	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

// execOne runs a statement expected to touch exactly one row.
func (s *Store) execOne(ctx context.Context, what string, id int64, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", what, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, storage.ErrNotFound)
	}
	return nil
}

const (
	clientColumns  = `id, name, phone, credit, add_date`
	creditColumns  = `id, client_id, credit_date, credit, versement, reste, paid`
	paymentColumns = `id, fact_id, payment_date, payment`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (models.Client, error) {
	var c models.Client
	var name sql.NullString
	var added sql.NullTime
	if err := row.Scan(&c.ID, &name, &c.Phone, &c.Credit, &added); err != nil {
		return models.Client{}, err
	}
	c.Name = name.String
	c.CreatedAt = added.Time
	return c, nil
}

func scanCredit(row scanner) (models.Credit, error) {
	var c models.Credit
	var status string
	if err := row.Scan(&c.ID, &c.ClientID, &c.CreditDate, &c.Amount, &c.Versement, &c.Reste, &status); err != nil {
		return models.Credit{}, err
	}
	c.Status = models.CreditStatus(status)
	if !c.Status.Valid() {
		return models.Credit{}, fmt.Errorf("credit %d: unknown paid status %q", c.ID, status)
	}
	return c, nil
}

func scanPayment(row scanner) (models.PaymentLogEntry, error) {
	var p models.PaymentLogEntry
	if err := row.Scan(&p.ID, &p.CreditID, &p.PaymentDate, &p.Amount); err != nil {
		return models.PaymentLogEntry{}, err
	}
	return p, nil
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetClient(ctx context.Context, id int64) (models.Client, error) {
	c, err := scanClient(s.queryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Client{}, fmt.Errorf("client %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Client{}, fmt.Errorf("get client %d: %w", id, err)
	}
	return c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]models.Client, error) {
	rows, err := s.query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return collect(rows, scanClient)
}

func (s *Store) GetCredit(ctx context.Context, id int64) (models.Credit, error) {
	c, err := scanCredit(s.queryRow(ctx, `SELECT `+creditColumns+` FROM credits WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credit{}, fmt.Errorf("credit %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return models.Credit{}, fmt.Errorf("get credit %d: %w", id, err)
	}
	return c, nil
}

func (s *Store) ListCredits(ctx context.Context, clientID int64) ([]models.Credit, error) {
	rows, err := s.query(ctx, `SELECT `+creditColumns+` FROM credits WHERE client_id = ? ORDER BY id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list credits of client %d: %w", clientID, err)
	}
	return collect(rows, scanCredit)
}

func (s *Store) ListPayments(ctx context.Context, creditID int64) ([]models.PaymentLogEntry, error) {
	rows, err := s.query(ctx, `SELECT `+paymentColumns+` FROM payments_log WHERE fact_id = ? ORDER BY id`, creditID)
	if err != nil {
		return nil, fmt.Errorf("list payments of credit %d: %w", creditID, err)
	}
	return collect(rows, scanPayment)
}

var clientSearchColumns = map[models.SearchField]string{
	models.FieldName:   "name",
	models.FieldPhone:  "phone",
	models.FieldCredit: "credit",
}

var creditSearchColumns = map[models.SearchField]string{
	models.FieldCreditDate: "credit_date",
	models.FieldVersement:  "versement",
	models.FieldPaid:       "paid",
}

// searchPredicate builds the WHERE clause and its argument for field.
// Exact fields compare the lowered value, the others use an escaped LIKE.
func searchPredicate(column string, field models.SearchField, keyword string) (string, string) {
	if field.Exact() {
		return `LOWER(` + column + `) = ?`, strings.ToLower(strings.TrimSpace(keyword))
	}
	return `LOWER(CAST(` + column + ` AS TEXT)) LIKE ? ESCAPE '\'`, "%" + escapeLike(strings.ToLower(keyword)) + "%"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *Store) SearchClients(ctx context.Context, field models.SearchField, keyword string) ([]models.Client, error) {
	column, ok := clientSearchColumns[field]
	if !ok {
		return nil, fmt.Errorf("search clients: unsupported field %q", field)
	}
	where, arg := searchPredicate(column, field, keyword)
	rows, err := s.query(ctx, `SELECT `+clientColumns+` FROM clients WHERE `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, fmt.Errorf("search clients by %s: %w", field, err)
	}
	return collect(rows, scanClient)
}

func (s *Store) SearchCredits(ctx context.Context, field models.SearchField, keyword string) ([]models.Credit, error) {
	column, ok := creditSearchColumns[field]
	if !ok {
		return nil, fmt.Errorf("search credits: unsupported field %q", field)
	}
	where, arg := searchPredicate(column, field, keyword)
	rows, err := s.query(ctx, `SELECT `+creditColumns+` FROM credits WHERE `+where+` ORDER BY id`, arg)
	if err != nil {
		return nil, fmt.Errorf("search credits by %s: %w", field, err)
	}
	return collect(rows, scanCredit)
}

func (s *Store) InsertClient(ctx context.Context, client *models.Client) error {
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}
	client.CreatedAt = client.CreatedAt.UTC()

	const query = `INSERT INTO clients (name, phone, credit, add_date) VALUES (?, ?, ?, ?) RETURNING id`
	err := s.queryRow(ctx, query, client.Name, client.Phone, client.Credit, client.CreatedAt).Scan(&client.ID)
	if s.dialect.uniqueViolation(err) {
		return fmt.Errorf("client phone %s: %w", client.Phone, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *Store) UpdateClientCredit(ctx context.Context, clientID int64, credit decimal.Decimal) error {
	return s.execOne(ctx, "update client", clientID, `UPDATE clients SET credit = ? WHERE id = ?`, credit, clientID)
}

// DeleteClient relies on ON DELETE CASCADE to drop credits and payments.
func (s *Store) DeleteClient(ctx context.Context, clientID int64) error {
	return s.execOne(ctx, "delete client", clientID, `DELETE FROM clients WHERE id = ?`, clientID)
}

func (s *Store) InsertCredit(ctx context.Context, credit *models.Credit) error {
	credit.CreditDate = credit.CreditDate.UTC()

	const query = `INSERT INTO credits (client_id, credit_date, credit, versement, reste, paid)
	VALUES (?, ?, ?, ?, ?, ?) RETURNING id`
	err := s.queryRow(ctx, query,
		credit.ClientID,
		credit.CreditDate,
		credit.Amount,
		credit.Versement,
		credit.Reste,
		string(credit.Status),
	).Scan(&credit.ID)
	if err != nil {
		return fmt.Errorf("insert credit for client %d: %w", credit.ClientID, err)
	}
	return nil
}

func (s *Store) UpdateCredit(ctx context.Context, credit models.Credit) error {
	return s.execOne(ctx, "update credit", credit.ID,
		`UPDATE credits SET versement = ?, reste = ?, paid = ? WHERE id = ?`,
		credit.Versement, credit.Reste, string(credit.Status), credit.ID)
}

func (s *Store) InsertPayment(ctx context.Context, entry *models.PaymentLogEntry) error {
	entry.PaymentDate = entry.PaymentDate.UTC()

	const query = `INSERT INTO payments_log (fact_id, payment_date, payment) VALUES (?, ?, ?) RETURNING id`
	err := s.queryRow(ctx, query, entry.CreditID, entry.PaymentDate, entry.Amount).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("insert payment for credit %d: %w", entry.CreditID, err)
	}
	return nil
}

var _ interfaces.LedgerStore = (*Store)(nil)
