package ledger

import "time"

// SetNow swaps the ledger's clock from external test packages.
func (l *Ledger) SetNow(now func() time.Time) { l.now = now }

// Now returns the ledger's clock so tests can share it between ledgers.
func (l *Ledger) Now() func() time.Time { return l.now }
