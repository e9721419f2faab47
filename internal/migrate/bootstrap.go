package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reachable reports whether the provisioned database answers a ping.
// Used by the setup status endpoint to tell "never provisioned" from
// "provisioned earlier, wizard can skip to success".
func Reachable(ctx context.Context, dsn string) error {
	db, err := openDB(rewriteHostIPv4(dsn))
	if err != nil {
		return err
	}
	defer db.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(pingCtx)
}

// AdminBootstrap inserts the first admin account into the provisioned
// database. It satisfies provision.AdminStore.
type AdminBootstrap struct {
	ConnectTimeout time.Duration // default 15s
}

// EnsureAdmin creates the admin account if no account with that email
// exists. Returns true when a row was inserted, false when the account
// was already present. Never overwrites an existing account.
func (b *AdminBootstrap) EnsureAdmin(ctx context.Context, dsn, email, passwordHash string) (bool, error) {
	db, err := openDB(rewriteHostIPv4(dsn))
	if err != nil {
		return false, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	connectTimeout := b.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return false, fmt.Errorf("connect database: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, password_hash, role)
		VALUES ($1, $2, $3, 'admin')
		ON CONFLICT (email) DO NOTHING`,
		uuid.NewString(), email, passwordHash)
	if err != nil {
		return false, fmt.Errorf("insert admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
