// Package maintenance provides bulk store operations: statistics, snapshot
// export and the confirmation-gated destructive resets.
package maintenance

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"sheetstock/internal/domain/inventory"
	"sheetstock/internal/domain/ledger"
	"sheetstock/internal/domain/sales"
)

// FormatVersion is written into every snapshot.
const FormatVersion = 1

// Snapshot is a full image of the store.
type Snapshot struct {
	Version      int                  `json:"version"`
	ExportedAt   time.Time            `json:"exportedAt"`
	Sheets       []inventory.Sheet    `json:"sheets"`
	Batches      []inventory.Batch    `json:"batches"`
	Movements    []inventory.Movement `json:"movements"`
	Parties      []ledger.Party       `json:"parties"`
	Transactions []ledger.Transaction `json:"transactions"`
	Sales        []sales.Sale         `json:"sales"`
	Sequences    map[string]int64     `json:"sequences"`
}

// Stats counts rows per table.
type Stats struct {
	Sheets       int `json:"sheets"`
	Batches      int `json:"batches"`
	Movements    int `json:"movements"`
	Parties      int `json:"parties"`
	Transactions int `json:"transactions"`
	Sales        int `json:"sales"`
	SaleItems    int `json:"saleItems"`
}

// StatsOf counts the rows in a snapshot.
func StatsOf(s *Snapshot) Stats {
	st := Stats{
		Sheets:       len(s.Sheets),
		Batches:      len(s.Batches),
		Movements:    len(s.Movements),
		Parties:      len(s.Parties),
		Transactions: len(s.Transactions),
		Sales:        len(s.Sales),
	}
	for i := range s.Sales {
		st.SaleItems += len(s.Sales[i].Items)
	}
	return st
}

// WriteSnapshot encodes s as zstd-compressed JSON.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(s); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()

	var s Snapshot
	if err := json.NewDecoder(dec).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}
