package store

import (
	"database/sql"

	"presencegate/internal/account"
	"presencegate/internal/attendance"
	"presencegate/internal/audit"
	"presencegate/internal/device"
	"presencegate/internal/identity"
)

// Stores is the full persistence layer for one backend.
type Stores struct {
	Identities identity.Store
	Devices    device.Registry
	Ledger     attendance.Ledger
	Tokens     account.TokenStore
	Audit      audit.Store
}

// Postgres returns repositories over db. Cascades are enforced by foreign keys.
func Postgres(db *sql.DB) Stores {
	return Stores{
		Identities: identity.NewRepository(db),
		Devices:    device.NewRepository(db),
		Ledger:     attendance.NewRepository(db),
		Tokens:     account.NewTokenRepository(db),
		Audit:      audit.NewRepository(db),
	}
}

// Memory returns in-process stores with identity deletion cascading to devices, events and tokens.
func Memory() Stores {
	identities := identity.NewMemoryStore()
	devices := device.NewMemoryRegistry()
	ledger := attendance.NewMemoryLedger()
	tokens := account.NewMemoryTokens()

	identities.OnDelete(devices.DeleteIdentity)
	identities.OnDelete(ledger.DeleteIdentity)
	identities.OnDelete(tokens.DeleteIdentity)

	return Stores{
		Identities: identities,
		Devices:    devices,
		Ledger:     ledger,
		Tokens:     tokens,
		Audit:      audit.NewMemoryStore(),
	}
}
