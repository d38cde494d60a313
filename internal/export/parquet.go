// Package export writes the alert log to Parquet for offline analysis.
//
// One row per alert, flattened: payload handle lists become counts plus a
// hex summary rather than nested columns, since the export serves audits
// and support tooling, not a byte-exact restore (the store's record format
// does that).
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/skyvault/alertfeed/internal/alert"
)

// Options configures the Parquet export.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// RowGroupSize is the target number of rows per row group
	RowGroupSize int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default export options.
func DefaultOptions() Options {
	return Options{
		Compression:  CompressionZstd,
		RowGroupSize: 1024,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// AlertRow represents an alert in Parquet format.
type AlertRow struct {
	ID        uint32 `parquet:"id"`
	Kind      string `parquet:"kind,zstd"`
	Timestamp int64  `parquet:"timestamp"`
	User      string `parquet:"user,zstd"`
	Email     string `parquet:"email,optional,zstd"`
	Relevant  bool   `parquet:"relevant"`
	Seen      bool   `parquet:"seen"`
	Nodes     int32  `parquet:"nodes"`
	Detail    string `parquet:"detail,optional,zstd"`
}

// AlertToRow converts an alert to an AlertRow.
func AlertToRow(a *alert.Alert) AlertRow {
	row := AlertRow{
		ID:        a.ID,
		Kind:      a.Kind().String(),
		Timestamp: a.Timestamp,
		User:      fmt.Sprintf("%016x", uint64(a.User)),
		Email:     a.Email,
		Relevant:  a.Relevant,
		Seen:      a.Seen,
	}

	switch p := a.Payload.(type) {
	case *alert.NewSharedNodes:
		row.Nodes = int32(len(p.Files) + len(p.Folders))
		row.Detail = fmt.Sprintf("parent=%016x", uint64(p.Parent))
	case *alert.RemovedSharedNode:
		row.Nodes = int32(len(p.Nodes))
	case *alert.UpdatedSharedNode:
		row.Nodes = int32(len(p.Nodes))
	case *alert.NewShare:
		row.Detail = fmt.Sprintf("folder=%016x", uint64(p.Folder))
	case *alert.DeletedShare:
		row.Detail = p.Path
	case *alert.Payment:
		row.Detail = fmt.Sprintf("plan=%d success=%t", p.Plan, p.Success)
	case *alert.UpdatedScheduledMeeting:
		row.Detail = fmt.Sprintf("changes=%#x", p.Changes.Changes())
	}
	return row
}

// WriteFile writes the alert log to a Parquet file, creating parent
// directories as needed.
func WriteFile(path string, alerts []*alert.Alert, opts Options) error {
	if opts.RowGroupSize <= 0 {
		opts.RowGroupSize = DefaultOptions().RowGroupSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	writer := parquet.NewGenericWriter[AlertRow](f,
		parquet.Compression(getCompression(opts.Compression)),
	)

	rows := make([]AlertRow, len(alerts))
	for i, a := range alerts {
		rows[i] = AlertToRow(a)
	}

	for start := 0; start < len(rows); start += opts.RowGroupSize {
		end := start + opts.RowGroupSize
		if end > len(rows) {
			end = len(rows)
		}
		if _, err := writer.Write(rows[start:end]); err != nil {
			f.Close()
			return fmt.Errorf("write rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close writer: %w", err)
	}
	return f.Close()
}
