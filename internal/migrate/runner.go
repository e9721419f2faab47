package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"

	"github.com/zaplink/zaplink/internal/metrics"
	"github.com/zaplink/zaplink/internal/provision"
)

// ledgerTable records which migration files have been applied. It lives
// inside the provisioned database itself; the unique filename constraint
// is what makes concurrent saga runs safe.
const ledgerTable = `
CREATE TABLE IF NOT EXISTS setup_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Runner applies the embedded SQL migration files in lexicographic
// order, tracking progress in the ledger. It satisfies
// provision.Migrator.
type Runner struct {
	Files fs.FS

	ConnectTimeout  time.Duration // per-attempt connect budget, default 15s
	ConnectAttempts int           // default 3
	ConnectBackoff  time.Duration // initial backoff between attempts, default 1s

	Sleep func(ctx context.Context, d time.Duration) error
}

// Seams for tests; the teacher of this trick is database/sql itself,
// which only hands back concrete types.
var (
	openDB   = func(dsn string) (*sql.DB, error) { return sql.Open("postgres", dsn) }
	lookupIP = net.LookupIP
)

// Apply connects to the database and applies every pending migration
// file. onRetry, when set, is told about each connect re-attempt.
// Returns how many files were newly recorded this run.
func (r *Runner) Apply(ctx context.Context, dsn string, onRetry func(attempt, max int)) (int, error) {
	if r.Files == nil {
		return 0, errors.New("migration files required")
	}
	dsn = rewriteHostIPv4(dsn)

	db, err := r.connect(ctx, dsn, onRetry)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, ledgerTable); err != nil {
		return 0, fmt.Errorf("ensure ledger: %w", err)
	}
	applied, err := appliedSet(ctx, db)
	if err != nil {
		return 0, err
	}
	files, err := listMigrationFiles(r.Files)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, name := range files {
		if applied[name] {
			continue
		}
		body, err := fs.ReadFile(r.Files, name)
		if err != nil {
			return count, fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			if !isAlreadyExists(err) {
				// Abort here; everything recorded so far stays recorded
				// and a later run resumes from this file.
				return count, fmt.Errorf("apply %s: %w", name, err)
			}
			slog.Info("migration objects already exist, recording as applied", "file", name)
		}
		if err := recordApplied(ctx, db, name); err != nil {
			return count, err
		}
		metrics.MigrationsAppliedTotal.Inc()
		count++
	}
	return count, nil
}

// connect opens and pings the database, building a brand new *sql.DB
// for every attempt. Only transient faults are retried.
func (r *Runner) connect(ctx context.Context, dsn string, onRetry func(attempt, max int)) (*sql.DB, error) {
	attempts := r.ConnectAttempts
	if attempts < 1 {
		attempts = 3
	}
	connectTimeout := r.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}
	backoffBase := r.ConnectBackoff
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	backoff := retry.NewExponential(backoffBase)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := openDB(dsn)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
			err = db.PingContext(pingCtx)
			cancel()
			if err == nil {
				return db, nil
			}
			_ = db.Close()
		}
		lastErr = err
		if !provision.IsTransient(err) || attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, attempts)
		}
		wait, stop := backoff.Next()
		if stop {
			break
		}
		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("connect database: %w", lastErr)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func appliedSet(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT filename FROM setup_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

func recordApplied(ctx context.Context, db *sql.DB, name string) error {
	// ON CONFLICT DO NOTHING so a concurrent run that won the race is
	// treated as success.
	_, err := db.ExecContext(ctx,
		`INSERT INTO setup_migrations (filename) VALUES ($1) ON CONFLICT (filename) DO NOTHING`, name)
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("record %s: %w", name, err)
	}
	return nil
}

// listMigrationFiles returns the .sql files in lexicographic order. The
// zero-padded sequence prefix in the file names encodes chronological
// application order.
func listMigrationFiles(files fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// isAlreadyExists reports whether err means the DDL's objects are
// already present. That is an alternate success path, not a failure.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42P07", // duplicate_table
			"42P06", // duplicate_schema
			"42710", // duplicate_object
			"42701", // duplicate_column
			"23505": // unique_violation (ledger race)
			return true
		}
	}
	return strings.Contains(err.Error(), "already exists")
}

// rewriteHostIPv4 resolves the DSN host to an IPv4 address when the DSN
// is in URL form. Some runtimes resolve IPv6-only and then fail to
// connect; pinning the A record avoids that. Resolution failures fall
// back to the original DSN untouched.
func rewriteHostIPv4(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Hostname() == "" {
		return dsn
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return dsn
	}
	ips, err := lookupIP(host)
	if err != nil {
		return dsn
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			if port := u.Port(); port != "" {
				u.Host = net.JoinHostPort(v4.String(), port)
			} else {
				u.Host = v4.String()
			}
			return u.String()
		}
	}
	return dsn
}
