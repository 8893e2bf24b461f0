package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"FinFactor/internal/domain/models"
	domrepo "FinFactor/internal/domain/repository"
	applogger "FinFactor/pkg/logger"
)

// CSVProvider reads wide CSV files from a directory, one file per series:
// prices.csv, volumes.csv, market_cap.csv and fundamentals_<metric>.csv, each
// with a date column followed by one column per instrument. Files are parsed
// once and kept for the life of the provider. A missing file means no
// instrument has data for that series.
type CSVProvider struct {
	dir string
	mu  sync.Mutex
	// parsed series by file name; a nil entry records a missing file
	loaded map[string]seriesData
	l      *applogger.Logger
}

func NewCSVProvider(dir string) (*CSVProvider, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("csv provider: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("csv provider: %s is not a directory", dir)
	}
	return &CSVProvider{dir: dir, loaded: make(map[string]seriesData)}, nil
}

// SetLogger injects a structured logger.
func (p *CSVProvider) SetLogger(l *applogger.Logger) { p.l = l }

// FileFor returns the file name holding a series.
func FileFor(series string) string {
	switch series {
	case models.SeriesPrices, models.SeriesVolumes, models.SeriesMarketCap:
		return series + ".csv"
	}
	if metric, ok := strings.CutPrefix(series, models.SeriesFundamentals+":"); ok && metric != "" {
		return "fundamentals_" + metric + ".csv"
	}
	return series + ".csv"
}

func (p *CSVProvider) load(series string) (seriesData, error) {
	name := FileFor(series)
	p.mu.Lock()
	defer p.mu.Unlock()
	if data, ok := p.loaded[name]; ok {
		return data, nil
	}
	f, err := os.Open(filepath.Join(p.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.loaded[name] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	df, err := ReadFrameCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	_, data, _, err := frameSeries(df)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for inst, obs := range data {
		sort.SliceStable(obs, func(a, b int) bool { return obs[a].Date.Before(obs[b].Date) })
		data[inst] = obs
	}
	p.loaded[name] = data
	if p.l != nil {
		p.l.Debug("csv series loaded",
			applogger.String("file", name),
			applogger.Int("instruments", len(data)),
			applogger.Int("rows", df.Nrow()),
		)
	}
	return data, nil
}

func (p *CSVProvider) get(ctx context.Context, series string, instruments []string, start, end time.Time) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := p.load(series)
	if err != nil {
		return nil, err
	}
	return assembleTable(series, data, instruments, start, end)
}

func (p *CSVProvider) GetPrices(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.get(ctx, models.SeriesPrices, instruments, start, end)
}

func (p *CSVProvider) GetVolumes(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.get(ctx, models.SeriesVolumes, instruments, start, end)
}

func (p *CSVProvider) GetMarketCap(ctx context.Context, instruments []string, start, end time.Time) (*models.Table, error) {
	return p.get(ctx, models.SeriesMarketCap, instruments, start, end)
}

func (p *CSVProvider) GetFundamentals(ctx context.Context, instruments []string, metrics []string, start, end time.Time) (*models.Fundamentals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var loadErr error
	f, err := assembleFundamentals(func(metric string) seriesData {
		data, err := p.load(FundamentalsSeries(metric))
		if err != nil && loadErr == nil {
			loadErr = err
		}
		return data
	}, instruments, metrics, start, end)
	if loadErr != nil {
		return nil, loadErr
	}
	return f, err
}

var _ domrepo.DataProvider = (*CSVProvider)(nil)
