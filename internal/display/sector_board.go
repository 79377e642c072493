package display

import (
	"context"
	"sync"

	"github.com/irfndi/tickerwall/internal/logging"
	"github.com/irfndi/tickerwall/internal/models"
	"github.com/irfndi/tickerwall/internal/preload"
	"github.com/irfndi/tickerwall/internal/telemetry"
)

// Sector names one sector ETF.
type Sector struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// SectorRow is one line of the sector board.
type SectorRow struct {
	Ticker     string  `json:"ticker"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	PctChange  float64 `json:"pct_change"`
	IsFallback bool    `json:"is_fallback"`
}

// SectorBoardSnapshot is the rendered state of the board.
type SectorBoardSnapshot struct {
	Loading  bool        `json:"loading"`
	Progress float64     `json:"progress"`
	Rows     []SectorRow `json:"rows"`
}

// SectorBoard shows the intraday move of each sector ETF. Every mount runs
// an intraday preload pass; rows update when it settles.
type SectorBoard struct {
	sectors []Sector
	orch    *preload.Orchestrator
	logger  *logging.StandardLogger

	mu      sync.Mutex
	mounted bool
	gen     uint64
	cancel  context.CancelFunc
	pass    *preload.Pass
	rows    []SectorRow
	loaded  bool
	settled chan struct{}
}

// NewSectorBoard creates an unmounted board.
func NewSectorBoard(sectors []Sector, orch *preload.Orchestrator, logger *logging.StandardLogger) *SectorBoard {
	if logger == nil {
		logger = logging.NewStandardLoggerFrom(telemetry.Logger())
	}
	normalized := make([]Sector, 0, len(sectors))
	for _, s := range sectors {
		t := models.NormalizeTickers([]string{s.Ticker})
		if len(t) == 0 {
			continue
		}
		normalized = append(normalized, Sector{Ticker: t[0], Name: s.Name})
	}
	return &SectorBoard{
		sectors: normalized,
		orch:    orch,
		logger:  logger,
		settled: make(chan struct{}),
	}
}

// Mount starts an intraday pass over the sector tickers.
func (b *SectorBoard) Mount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mounted {
		return
	}
	b.mounted = true
	b.gen++
	gen := b.gen

	tickers := make([]string, len(b.sectors))
	for i, s := range b.sectors {
		tickers[i] = s.Ticker
	}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.pass = b.orch.PreloadAll(ctx, tickers, []models.TimeView{models.Intraday})
	select {
	case <-b.settled:
		b.settled = make(chan struct{})
	default:
	}
	go b.await(gen, b.pass)
}

func (b *SectorBoard) await(gen uint64, pass *preload.Pass) {
	<-pass.Done()

	rows := make([]SectorRow, 0, len(b.sectors))
	for _, s := range b.sectors {
		set, ok := pass.Slots(s.Ticker)
		if !ok {
			continue
		}
		res, _ := set.At(0)
		rows = append(rows, SectorRow{
			Ticker:     res.Ticker,
			Name:       s.Name,
			Price:      res.LatestPrice,
			PctChange:  res.PctChange,
			IsFallback: res.IsFallback,
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted || gen != b.gen {
		return
	}
	b.rows = rows
	b.loaded = true
	close(b.settled)
	b.logger.WithComponent("sector_board").Debug("Sector board updated", "rows", len(rows))
}

// Unmount abandons any in-flight pass. Rows from the last settled pass are
// kept for the next mount.
func (b *SectorBoard) Unmount() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return
	}
	b.mounted = false
	b.gen++
	b.cancel()
	b.cancel = nil
}

// Settled is closed when the current mount's pass has updated the rows.
func (b *SectorBoard) Settled() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.settled
}

// Snapshot returns a SectorBoardSnapshot.
func (b *SectorBoard) Snapshot() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := SectorBoardSnapshot{
		Loading: !b.loaded,
		Rows:    append([]SectorRow(nil), b.rows...),
	}
	switch {
	case b.loaded:
		snap.Progress = 100
	case b.pass != nil:
		snap.Progress = b.pass.Percent()
	}
	return snap
}
