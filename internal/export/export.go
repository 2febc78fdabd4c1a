package export

import (
	"context"
	"fmt"
	"os"

	"github.com/vouchlab/vouchd/internal/directory"
	"github.com/vouchlab/vouchd/internal/ledger"
	"go.uber.org/zap"
)

// Exporter renders and delivers CSV exports via the directory's private
// message channel.
type Exporter struct {
	dir    directory.Directory
	logger *zap.Logger
}

// NewExporter creates an Exporter.
func NewExporter(dir directory.Directory, logger *zap.Logger) *Exporter {
	return &Exporter{dir: dir, logger: logger}
}

// Deliver renders the records to a temporary file and sends it to the
// requester's private channel. The file is removed when the function
// returns, whether or not delivery succeeded.
func (e *Exporter) Deliver(ctx context.Context, requesterID, targetID, targetName string, records []ledger.Vouch) error {
	f, err := os.CreateTemp("", fmt.Sprintf("vouches_%s_*.csv", targetID))
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil {
			e.logger.Warn("export: temp file cleanup failed", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	if _, err := f.WriteString(Render(records)); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("write export file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("rewind export file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	message := fmt.Sprintf("Here is the export for %s", targetName)
	filename := fmt.Sprintf("vouches_%s.csv", targetID)
	if err := e.dir.SendFile(ctx, requesterID, message, filename, f); err != nil {
		return fmt.Errorf("deliver export: %w", err)
	}
	return nil
}
