// Package diag provides shared diagnostics for binary ingestion.
package diag

import "fmt"

// Kind classifies a diagnostic message.
type Kind string

const (
	KindInvalid      Kind = "invalid"
	KindUnpairedLo16 Kind = "unpaired_lo16"
	KindUnknownSym   Kind = "unknown_symbol"
)

// Diag records a non-fatal issue encountered during ingestion.
type Diag struct {
	Address uint64 `json:"address"`
	Kind    Kind   `json:"kind"`
	Msg     string `json:"msg"`
}

func (d Diag) String() string {
	return fmt.Sprintf("[%s] 0x%x: %s", d.Kind, d.Address, d.Msg)
}

// Diags accumulates diagnostics.
type Diags struct {
	items []Diag
}

func (d *Diags) Add(address uint64, kind Kind, msg string) {
	d.items = append(d.items, Diag{Address: address, Kind: kind, Msg: msg})
}

func (d *Diags) Addf(address uint64, kind Kind, format string, args ...any) {
	d.items = append(d.items, Diag{Address: address, Kind: kind, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diags) Items() []Diag { return d.items }
func (d *Diags) Len() int      { return len(d.items) }

// Mode controls error handling behavior.
type Mode int

const (
	ModeStrict     Mode = iota // first structural error returns error
	ModeBestEffort             // continue, accumulate diags
)
