package migrate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chess2lichess/chess2lichess/internal/audit"
	"github.com/chess2lichess/chess2lichess/internal/export"
	"github.com/chess2lichess/chess2lichess/internal/importer"
	"github.com/chess2lichess/chess2lichess/internal/metadata"
	"github.com/chess2lichess/chess2lichess/internal/storage"
)

// finish runs the post-run bookkeeping. Every step is best-effort: failures
// are logged and counted, never returned, so the run outcome stays the
// import outcome.
//
// Order:
//  1. Close the run in the catalog
//  2. Write the run summary JSON
//  3. Publish the mirror snapshot (only when games were imported)
//  4. Emit the audit event (last, references the final local files)
func (m *Migrator) finish(ctx context.Context, req Request, run *metadata.RunRecord, result *Result, runErr error) {
	log := m.log.With("run_id", run.RunID, "username", run.Username)

	run.Fetched = result.Fetched
	var lastGameID string
	if r := result.Report; r != nil {
		lastGameID = r.LastGameID
		run.AlreadyImported = r.AlreadyImported
		run.Imported = r.Imported
		run.Retries = r.Retries
	}
	run.FinishedAt = m.deps.Now().UTC()
	run.Status = metadata.RunStatusSucceeded
	if runErr != nil && !errors.Is(runErr, importer.ErrAllGamesAlreadyImported) {
		run.Status = metadata.RunStatusFailed
		run.Error = runErr.Error()
	}

	log.Info("migration finished",
		"status", run.Status,
		"fetched", run.Fetched,
		"already_imported", run.AlreadyImported,
		"imported", run.Imported,
		"retries", run.Retries,
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)

	if m.cfg.Import.DryRun {
		return
	}

	// The catalog and the audit trail must still be written when the run was
	// cancelled.
	bgCtx := context.WithoutCancel(ctx)

	if err := m.deps.Catalog.FinishRun(bgCtx, *run); err != nil {
		log.Warn("failed to record run end in catalog", "error", err)
		m.deps.Metrics.IncBookkeepingErrors("catalog")
	}

	if m.cfg.SummaryDir != "" {
		path := filepath.Join(m.cfg.SummaryDir, fmt.Sprintf("run_%s_%s.json", run.Username, run.RunID))
		if err := run.WriteJSON(path); err != nil {
			log.Warn("failed to write run summary", "error", err)
			m.deps.Metrics.IncBookkeepingErrors("summary")
		} else {
			log.Debug("run summary written", "path", path)
		}
	}

	if m.deps.Mirror != nil && run.Imported > 0 {
		res, err := m.publish(bgCtx, run)
		if err != nil {
			log.Warn("failed to publish mirror snapshot", "error", err)
			m.deps.Metrics.IncBookkeepingErrors("mirror")
		} else {
			result.Mirror = res
			log.Info("mirror snapshot published", "manifest", m.deps.Mirror.URI(res.ManifestKey))
		}
	}

	if err := m.emitAudit(bgCtx, req, run, lastGameID); err != nil {
		log.Warn("failed to emit audit event", "error", err)
		m.deps.Metrics.IncBookkeepingErrors("audit")
	}
}

// publish uploads the ledger, the archive and a Parquet export of the ledger.
func (m *Migrator) publish(ctx context.Context, run *metadata.RunRecord) (*storage.PublishResult, error) {
	ledgerCSV, err := os.ReadFile(m.deps.Ledger.Path())
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	archive, err := m.deps.Archive.Bytes()
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	entries, err := m.deps.Ledger.Entries()
	if err != nil {
		return nil, fmt.Errorf("read ledger entries: %w", err)
	}

	pcfg := export.DefaultConfig()
	if m.cfg.ParquetCompression != "" {
		pcfg.Compression = m.cfg.ParquetCompression
	}
	parquetData, err := export.LedgerToParquet(entries, pcfg)
	if err != nil {
		return nil, fmt.Errorf("export parquet: %w", err)
	}

	return m.deps.Mirror.Publish(ctx, storage.Snapshot{
		RunID:         run.RunID,
		Username:      run.Username,
		Imported:      run.Imported,
		Games:         len(entries),
		LedgerCSV:     ledgerCSV,
		ArchivePGN:    archive,
		LedgerParquet: parquetData,
		Producer: storage.ProducerInfo{
			Name:    "chess2lichess",
			Version: Version,
			GitSHA:  GitSHA,
		},
		ParquetCompression: pcfg.Compression,
	})
}

func (m *Migrator) emitAudit(ctx context.Context, req Request, run *metadata.RunRecord, lastGameID string) error {
	evt := &audit.RunEvent{
		Timestamp: run.FinishedAt,
		Run: audit.RunInfo{
			RunID:           run.RunID,
			Username:        run.Username,
			Scope:           req.Scope.String(),
			Status:          run.Status,
			Fetched:         run.Fetched,
			AlreadyImported: run.AlreadyImported,
			Imported:        run.Imported,
			LastGameID:      lastGameID,
		},
		Files: make(map[string]audit.FileInfo),
		Producer: audit.ProducerInfo{
			Name:    "chess2lichess",
			Version: Version,
			GitSHA:  GitSHA,
		},
	}

	for name, path := range map[string]string{
		"ledger":  m.deps.Ledger.Path(),
		"archive": m.deps.Archive.Path(),
	} {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("read %s: %w", name, err)
		}
		evt.Files[name] = audit.FileInfo{
			Path:     path,
			Checksum: storage.ComputeChecksum(data),
			ByteSize: int64(len(data)),
		}
	}

	return m.deps.Audit.Emit(ctx, evt)
}
