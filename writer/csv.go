package writer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"futuresflow/logger"
	"futuresflow/models"
)

// TimeLayout is how UpdateTime is stored: local wall clock to the
// millisecond, no zone.
const TimeLayout = "2006-01-02T15:04:05.000"

// Header is the column order of every tick file.
var Header = buildHeader()

func buildHeader() []string {
	h := []string{
		"InstrumentID", "TradingDay", "ExchangeID", "ExchangeInstID",
		"LastPrice", "PreSettlementPrice", "PreClosePrice", "PreOpenInterest",
		"OpenPrice", "HighestPrice", "LowestPrice", "Volume", "Turnover",
		"OpenInterest", "ClosePrice", "SettlementPrice", "UpperLimitPrice",
		"LowerLimitPrice", "PreDelta", "CurrDelta", "AveragePrice",
	}
	for i := 1; i <= models.DepthLevels; i++ {
		n := strconv.Itoa(i)
		h = append(h, "BidPrice"+n, "BidVolume"+n, "AskPrice"+n, "AskVolume"+n)
	}
	return append(h, "UpdateTime", "UpdateMillisec", "ActionDay")
}

// tickFile is the part of *os.File a batch append needs.
type tickFile interface {
	io.Writer
	Stat() (fs.FileInfo, error)
	Truncate(size int64) error
	Close() error
}

func openTickFile(path string, flag int) (tickFile, error) {
	return os.OpenFile(path, flag, 0o644)
}

// CSVWriter appends ticks to root/market/symbol/{instrument}_{day}.csv. The
// header is written only when the file is created. A batch is appended
// whole or not at all: a failed append is truncated away.
type CSVWriter struct {
	Root string

	mu    sync.Mutex
	files map[string]*sync.Mutex
	open  func(path string, flag int) (tickFile, error)
	log   *logger.Log
}

func NewCSVWriter(root string) *CSVWriter {
	return &CSVWriter{
		Root:  root,
		files: make(map[string]*sync.Mutex),
		open:  openTickFile,
		log:   logger.GetLogger(),
	}
}

// Path returns the file a batch for instrumentID on tradingDay goes to.
func (w *CSVWriter) Path(category models.InstrumentCategory, instrumentID, tradingDay string) string {
	return filepath.Join(w.Root, category.MarketCode, category.Symbol, fmt.Sprintf("%s_%s.csv", instrumentID, tradingDay))
}

// EnsureMarkets creates root/<market> for each market.
func (w *CSVWriter) EnsureMarkets(markets []string) error {
	for _, m := range markets {
		if err := os.MkdirAll(filepath.Join(w.Root, m), 0o755); err != nil {
			return fmt.Errorf("create market dir %s: %w", m, err)
		}
	}
	return nil
}

func (w *CSVWriter) fileLock(path string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.files[path]
	if !ok {
		l = &sync.Mutex{}
		w.files[path] = l
	}
	return l
}

func (w *CSVWriter) Write(ctx context.Context, category models.InstrumentCategory, instrumentID, tradingDay string, ticks []models.MarketTick) error {
	if len(ticks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := w.Path(category, instrumentID, tradingDay)
	lock := w.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}

	created := false
	f, err := w.open(path, os.O_WRONLY|os.O_APPEND)
	if errors.Is(err, fs.ErrNotExist) {
		f, err = w.open(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL|os.O_APPEND)
		created = err == nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if created {
		cw.Write(Header)
	}
	for _, t := range ticks {
		cw.Write(EncodeRow(t))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		w.rollback(path, created)
		return fmt.Errorf("encode rows for %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		w.rollback(path, created)
		return fmt.Errorf("stat %s: %w", path, err)
	}
	size := info.Size()

	if _, err := f.Write(buf.Bytes()); err != nil {
		if terr := f.Truncate(size); terr != nil {
			w.log.WithComponent("writer").WithError(terr).WithField("path", path).Error("failed to truncate partial append")
		}
		f.Close()
		w.rollback(path, created)
		return fmt.Errorf("append %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		if terr := os.Truncate(path, size); terr != nil {
			w.log.WithComponent("writer").WithError(terr).WithField("path", path).Error("failed to truncate partial append")
		}
		w.rollback(path, created)
		return fmt.Errorf("close %s: %w", path, err)
	}

	w.log.WithComponent("writer").WithFields(logger.Fields{
		"path":    path,
		"rows":    len(ticks),
		"created": created,
	}).Debug("ticks appended")
	return nil
}

// rollback removes a file this call created so the next attempt writes the
// header again.
func (w *CSVWriter) rollback(path string, created bool) {
	if !created {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.log.WithComponent("writer").WithError(err).WithField("path", path).Warn("failed to remove partial file")
	}
}

// EncodeRow renders a tick in Header order.
func EncodeRow(t models.MarketTick) []string {
	row := []string{
		t.InstrumentID, t.TradingDay, t.ExchangeID, t.ExchangeInstID,
		t.LastPrice.String(), t.PreSettlementPrice.String(), t.PreClosePrice.String(), t.PreOpenInterest.String(),
		t.OpenPrice.String(), t.HighestPrice.String(), t.LowestPrice.String(),
		strconv.FormatInt(t.Volume, 10), t.Turnover.String(),
		t.OpenInterest.String(), t.ClosePrice.String(), t.SettlementPrice.String(), t.UpperLimitPrice.String(),
		t.LowerLimitPrice.String(), t.PreDelta.String(), t.CurrDelta.String(), t.AveragePrice.String(),
	}
	for i := 0; i < models.DepthLevels; i++ {
		row = append(row,
			t.Bids[i].Price.String(), strconv.FormatInt(t.Bids[i].Volume, 10),
			t.Asks[i].Price.String(), strconv.FormatInt(t.Asks[i].Volume, 10),
		)
	}
	return append(row,
		t.UpdateTime.Format(TimeLayout),
		strconv.FormatInt(int64(t.UpdateMillisec), 10),
		t.ActionDay,
	)
}

// DecodeRow parses a row written by EncodeRow.
func DecodeRow(row []string) (models.MarketTick, error) {
	if len(row) != len(Header) {
		return models.MarketTick{}, fmt.Errorf("row has %d columns, want %d", len(row), len(Header))
	}
	p := rowParser{row: row}

	t := models.MarketTick{
		InstrumentID:   p.str(),
		TradingDay:     p.str(),
		ExchangeID:     p.str(),
		ExchangeInstID: p.str(),
	}
	t.LastPrice = p.dec()
	t.PreSettlementPrice = p.dec()
	t.PreClosePrice = p.dec()
	t.PreOpenInterest = p.dec()
	t.OpenPrice = p.dec()
	t.HighestPrice = p.dec()
	t.LowestPrice = p.dec()
	t.Volume = p.int()
	t.Turnover = p.dec()
	t.OpenInterest = p.dec()
	t.ClosePrice = p.dec()
	t.SettlementPrice = p.dec()
	t.UpperLimitPrice = p.dec()
	t.LowerLimitPrice = p.dec()
	t.PreDelta = p.dec()
	t.CurrDelta = p.dec()
	t.AveragePrice = p.dec()
	for i := 0; i < models.DepthLevels; i++ {
		t.Bids[i] = models.DepthLevel{Price: p.dec(), Volume: p.int()}
		t.Asks[i] = models.DepthLevel{Price: p.dec(), Volume: p.int()}
	}
	t.UpdateTime = p.time()
	t.UpdateMillisec = int32(p.int())
	t.ActionDay = p.str()

	if p.err != nil {
		return models.MarketTick{}, p.err
	}
	return t, nil
}

type rowParser struct {
	row []string
	i   int
	err error
}

func (p *rowParser) next() string {
	v := p.row[p.i]
	p.i++
	return v
}

func (p *rowParser) fail(err error) {
	if p.err == nil {
		p.err = fmt.Errorf("column %s: %w", Header[p.i-1], err)
	}
}

func (p *rowParser) str() string { return p.next() }

func (p *rowParser) dec() decimal.Decimal {
	d, err := decimal.NewFromString(p.next())
	if err != nil {
		p.fail(err)
	}
	return d
}

func (p *rowParser) int() int64 {
	v, err := strconv.ParseInt(p.next(), 10, 64)
	if err != nil {
		p.fail(err)
	}
	return v
}

func (p *rowParser) time() time.Time {
	v, err := time.ParseInLocation(TimeLayout, p.next(), time.Local)
	if err != nil {
		p.fail(err)
	}
	return v
}

// ReadFile loads every tick from a file written by CSVWriter.
func ReadFile(path string) ([]models.MarketTick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)
	r.ReuseRecord = true

	if _, err := r.Read(); err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	var out []models.MarketTick
	for {
		row, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		t, err := DecodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode %s line %d: %w", path, len(out)+2, err)
		}
		out = append(out, t)
	}
}
