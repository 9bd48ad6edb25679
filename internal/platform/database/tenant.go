package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"relaydesk/internal/platform/config"
)

var ErrInvalidTenant = errors.New("invalid tenant id")

var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// TenantDBProvider hands out the database of a single tenant.
type TenantDBProvider interface {
	ForTenant(tenantID string) (*sql.DB, error)
}

// TenantDBPool keeps one sqlite database per tenant under BasePath. A tenant
// database is created and migrated the first time it is requested.
type TenantDBPool struct {
	pools  map[string]*sql.DB
	mu     sync.RWMutex
	config config.TenantDBConfig
}

func NewTenantDBPool(cfg config.TenantDBConfig) *TenantDBPool {
	return &TenantDBPool{
		pools:  make(map[string]*sql.DB),
		config: cfg,
	}
}

func (p *TenantDBPool) ForTenant(tenantID string) (*sql.DB, error) {
	if !tenantIDPattern.MatchString(tenantID) {
		return nil, ErrInvalidTenant
	}

	p.mu.RLock()
	if db, exists := p.pools[tenantID]; exists {
		p.mu.RUnlock()
		return db, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if db, exists := p.pools[tenantID]; exists {
		return db, nil
	}

	db, err := p.open(tenantID)
	if err != nil {
		return nil, err
	}

	p.pools[tenantID] = db
	return db, nil
}

// Path returns the file backing a tenant database.
func (p *TenantDBPool) Path(tenantID string) string {
	return filepath.Join(p.config.BasePath, tenantID+".db")
}

func (p *TenantDBPool) open(tenantID string) (*sql.DB, error) {
	if err := os.MkdirAll(p.config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("create tenant dir: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&mode=rwc", p.Path(tenantID))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if p.config.MaxConnectionsPerOrg > 0 {
		db.SetMaxOpenConns(p.config.MaxConnectionsPerOrg)
	}
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := MigrateTenant(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tenant %s: %w", tenantID, err)
	}

	log.Debug().Str("tenant_id", tenantID).Msg("tenant database opened")
	return db, nil
}

func (p *TenantDBPool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, db := range p.pools {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Str("tenant_id", id).Msg("failed to close tenant database")
		}
	}
	p.pools = make(map[string]*sql.DB)
}
