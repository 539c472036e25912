package writer

import (
	"bytes"
	"fmt"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	"futuresflow/models"
)

// TickRecord is the parquet row of a tick. Prices are stored as their
// canonical decimal strings so no precision is lost.
type TickRecord struct {
	InstrumentID    string `parquet:"name=instrument_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	TradingDay      string `parquet:"name=trading_day, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExchangeID      string `parquet:"name=exchange_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Market          string `parquet:"name=market, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol          string `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	UpdateTime      int64  `parquet:"name=update_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	LastPrice       string `parquet:"name=last_price, type=BYTE_ARRAY, convertedtype=UTF8"`
	Volume          int64  `parquet:"name=volume, type=INT64"`
	Turnover        string `parquet:"name=turnover, type=BYTE_ARRAY, convertedtype=UTF8"`
	OpenInterest    string `parquet:"name=open_interest, type=BYTE_ARRAY, convertedtype=UTF8"`
	OpenPrice       string `parquet:"name=open_price, type=BYTE_ARRAY, convertedtype=UTF8"`
	HighestPrice    string `parquet:"name=highest_price, type=BYTE_ARRAY, convertedtype=UTF8"`
	LowestPrice     string `parquet:"name=lowest_price, type=BYTE_ARRAY, convertedtype=UTF8"`
	UpperLimitPrice string `parquet:"name=upper_limit_price, type=BYTE_ARRAY, convertedtype=UTF8"`
	LowerLimitPrice string `parquet:"name=lower_limit_price, type=BYTE_ARRAY, convertedtype=UTF8"`
	BidPrice1       string `parquet:"name=bid_price_1, type=BYTE_ARRAY, convertedtype=UTF8"`
	BidVolume1      int64  `parquet:"name=bid_volume_1, type=INT64"`
	AskPrice1       string `parquet:"name=ask_price_1, type=BYTE_ARRAY, convertedtype=UTF8"`
	AskVolume1      int64  `parquet:"name=ask_volume_1, type=INT64"`
	BidPrice2       string `parquet:"name=bid_price_2, type=BYTE_ARRAY, convertedtype=UTF8"`
	BidVolume2      int64  `parquet:"name=bid_volume_2, type=INT64"`
	AskPrice2       string `parquet:"name=ask_price_2, type=BYTE_ARRAY, convertedtype=UTF8"`
	AskVolume2      int64  `parquet:"name=ask_volume_2, type=INT64"`
	BidPrice3       string `parquet:"name=bid_price_3, type=BYTE_ARRAY, convertedtype=UTF8"`
	BidVolume3      int64  `parquet:"name=bid_volume_3, type=INT64"`
	AskPrice3       string `parquet:"name=ask_price_3, type=BYTE_ARRAY, convertedtype=UTF8"`
	AskVolume3      int64  `parquet:"name=ask_volume_3, type=INT64"`
	BidPrice4       string `parquet:"name=bid_price_4, type=BYTE_ARRAY, convertedtype=UTF8"`
	BidVolume4      int64  `parquet:"name=bid_volume_4, type=INT64"`
	AskPrice4       string `parquet:"name=ask_price_4, type=BYTE_ARRAY, convertedtype=UTF8"`
	AskVolume4      int64  `parquet:"name=ask_volume_4, type=INT64"`
	BidPrice5       string `parquet:"name=bid_price_5, type=BYTE_ARRAY, convertedtype=UTF8"`
	BidVolume5      int64  `parquet:"name=bid_volume_5, type=INT64"`
	AskPrice5       string `parquet:"name=ask_price_5, type=BYTE_ARRAY, convertedtype=UTF8"`
	AskVolume5      int64  `parquet:"name=ask_volume_5, type=INT64"`
}

// NewTickRecord flattens a tick into its parquet row.
func NewTickRecord(category models.InstrumentCategory, t models.MarketTick) TickRecord {
	return TickRecord{
		InstrumentID:    t.InstrumentID,
		TradingDay:      t.TradingDay,
		ExchangeID:      t.ExchangeID,
		Market:          category.MarketCode,
		Symbol:          category.Symbol,
		UpdateTime:      t.UpdateTime.UnixMilli(),
		LastPrice:       t.LastPrice.String(),
		Volume:          t.Volume,
		Turnover:        t.Turnover.String(),
		OpenInterest:    t.OpenInterest.String(),
		OpenPrice:       t.OpenPrice.String(),
		HighestPrice:    t.HighestPrice.String(),
		LowestPrice:     t.LowestPrice.String(),
		UpperLimitPrice: t.UpperLimitPrice.String(),
		LowerLimitPrice: t.LowerLimitPrice.String(),
		BidPrice1:       t.Bids[0].Price.String(),
		BidVolume1:      t.Bids[0].Volume,
		AskPrice1:       t.Asks[0].Price.String(),
		AskVolume1:      t.Asks[0].Volume,
		BidPrice2:       t.Bids[1].Price.String(),
		BidVolume2:      t.Bids[1].Volume,
		AskPrice2:       t.Asks[1].Price.String(),
		AskVolume2:      t.Asks[1].Volume,
		BidPrice3:       t.Bids[2].Price.String(),
		BidVolume3:      t.Bids[2].Volume,
		AskPrice3:       t.Asks[2].Price.String(),
		AskVolume3:      t.Asks[2].Volume,
		BidPrice4:       t.Bids[3].Price.String(),
		BidVolume4:      t.Bids[3].Volume,
		AskPrice4:       t.Asks[3].Price.String(),
		AskVolume4:      t.Asks[3].Volume,
		BidPrice5:       t.Bids[4].Price.String(),
		BidVolume5:      t.Bids[4].Volume,
		AskPrice5:       t.Asks[4].Price.String(),
		AskVolume5:      t.Asks[4].Volume,
	}
}

// memoryFile is a write-only parquet sink backed by a buffer.
type memoryFile struct {
	buf *bytes.Buffer
}

func newMemoryFile() *memoryFile {
	return &memoryFile{buf: &bytes.Buffer{}}
}

func (m *memoryFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memoryFile) Open(string) (source.ParquetFile, error)   { return m, nil }
func (m *memoryFile) Seek(int64, int) (int64, error)            { return int64(m.buf.Len()), nil }
func (m *memoryFile) Read(b []byte) (int, error)                { return m.buf.Read(b) }
func (m *memoryFile) Write(b []byte) (int, error)               { return m.buf.Write(b) }
func (m *memoryFile) Close() error                              { return nil }
func (m *memoryFile) Bytes() []byte                             { return m.buf.Bytes() }

func compressionCodec(name string) parquet.CompressionCodec {
	switch name {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

// EncodeParquet renders ticks as an in-memory parquet file.
func EncodeParquet(category models.InstrumentCategory, ticks []models.MarketTick, compression string) ([]byte, error) {
	mf := newMemoryFile()
	pw, err := pqwriter.NewParquetWriter(mf, new(TickRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)

	for _, t := range ticks {
		if err := pw.Write(NewTickRecord(category, t)); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return mf.Bytes(), nil
}
