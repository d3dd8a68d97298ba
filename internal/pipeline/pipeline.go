// Package pipeline orchestrates one ingestion run: extract the day's
// archives, validate dimensions and load them, prepare the date partition,
// then stream each archive's product chunk through validation, referential
// filtering, the relational bulk load, and the parquet archive.
//
// Failure containment follows the run's invariants. Dimension-upsert and
// partition-preparation failures abort the run before any fact row is
// touched. Chunk failures are caught at chunk granularity, recorded with
// their ordinal, and the run continues; partial-day success is an accepted
// outcome reported in the Summary.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"sepaetl/internal/archive"
	"sepaetl/internal/extract"
	"sepaetl/internal/fecha"
	"sepaetl/internal/metrics"
	csvparser "sepaetl/internal/parser/csv"
	"sepaetl/internal/refcheck"
	"sepaetl/internal/schema"
	"sepaetl/internal/storage"
	"sepaetl/internal/validate"
	"sepaetl/pkg/records"
)

// State names the orchestrator's position in the run lifecycle.
type State string

const (
	StateIdle              State = "idle"
	StateDimensionsLoaded  State = "dimensions_loaded"
	StatePartitionPrepared State = "partition_prepared"
	StateChunksLoading     State = "chunks_loading"
	StateArchived          State = "archived"
	StateDone              State = "done"
)

// ChunkError records the failure of one archive's product chunk. Ordinal is
// 1-based and follows the stable archive order.
type ChunkError struct {
	Ordinal int
	Archive string
	Err     error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (%s): %v", e.Ordinal, e.Archive, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// Summary reports the aggregate outcome of one run.
type Summary struct {
	Date            time.Time
	ArchivesFound   int
	ArchivesFailed  []*extract.ExtractionError
	Comercios       int64
	Sucursales      int64
	FactRows        int64
	NonPositive     int64 // fact rows excluded for non-positive list price
	FailedChunks    []*ChunkError
	ArchiveCloseErr error
}

// Partial reports whether the run completed with per-archive or per-chunk
// failures.
func (s *Summary) Partial() bool {
	return len(s.ArchivesFailed) > 0 || len(s.FailedChunks) > 0 || s.ArchiveCloseErr != nil
}

// Pipeline wires the run's collaborators. All fields are required.
type Pipeline struct {
	Repo       storage.Repository
	Extractor  *extract.Extractor
	Parser     *csvparser.Parser
	ArchiveDir string
	Log        zerolog.Logger

	state State
}

// Process runs the full pipeline for one business date. It returns a Summary
// on full or partial success, and a non-nil error only for fatal conditions:
// extraction setup, dimension validation or upsert, or partition
// preparation. After a fatal error no fact row has been committed.
func (p *Pipeline) Process(ctx context.Context, targetDate time.Time) (*Summary, error) {
	scrapedAt := fecha.Ahora()
	p.state = StateIdle
	sum := &Summary{Date: targetDate}
	p.Log.Info().Str("date", fecha.ISO(targetDate)).Msg("starting ingestion run")

	// Phase 0: extraction (internally parallel, failure-isolated).
	started := time.Now()
	res, err := p.Extractor.All(ctx, targetDate)
	metrics.RecordPhase("extract", err, time.Since(started))
	if err != nil {
		return nil, err
	}
	sum.ArchivesFound = len(res.Archives) + len(res.Failed)
	sum.ArchivesFailed = res.Failed
	if len(res.Archives) == 0 {
		p.Log.Warn().Str("date", fecha.ISO(targetDate)).Msg("no usable archives; nothing to load")
		p.state = StateDone
		return sum, nil
	}

	// Phase 1: dimensions.
	started = time.Now()
	comercios, sucursales, err := p.loadDimensions(ctx, res.Archives, sum)
	metrics.RecordPhase("dimensions", err, time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("dimension load: %w", err)
	}
	p.state = StateDimensionsLoaded

	// Phase 2: partition.
	started = time.Now()
	err = p.Repo.PreparePartition(ctx, targetDate)
	metrics.RecordPhase("partition", err, time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("prepare partition: %w", err)
	}
	p.state = StatePartitionPrepared

	// Phase 3: chunked product and price loading.
	p.state = StateChunksLoading
	writer := &archive.Writer{
		Root:          p.ArchiveDir,
		FechaVigencia: targetDate,
		ScrapedAt:     scrapedAt,
		Log:           p.Log,
	}
	started = time.Now()
	for idx, ar := range res.Archives {
		ordinal := idx + 1
		p.Log.Info().Int("chunk", ordinal).Int("of", len(res.Archives)).Str("archive", ar.Name).Msg("processing chunk")
		cerr := p.processChunk(ctx, ar, comercios, sucursales, writer, scrapedAt, targetDate, sum)
		metrics.RecordChunk(cerr)
		if cerr != nil {
			ce := &ChunkError{Ordinal: ordinal, Archive: ar.Name, Err: cerr}
			p.Log.Error().Int("chunk", ordinal).Str("archive", ar.Name).Err(cerr).Msg("chunk failed")
			sum.FailedChunks = append(sum.FailedChunks, ce)
		}
	}
	metrics.RecordPhase("chunks", nil, time.Since(started))

	// Phase 4: close the archive writer. A close failure is reported but
	// does not invalidate the already-committed relational rows.
	started = time.Now()
	sum.ArchiveCloseErr = writer.Close()
	metrics.RecordPhase("archive", sum.ArchiveCloseErr, time.Since(started))
	if sum.ArchiveCloseErr != nil {
		p.Log.Error().Err(sum.ArchiveCloseErr).Msg("parquet archive close failed")
	}
	p.state = StateArchived

	metrics.RecordRows("fact_loaded", sum.FactRows)
	metrics.RecordRows("archived", writer.Rows())
	p.state = StateDone
	p.Log.Info().
		Str("date", fecha.ISO(targetDate)).
		Int64("fact_rows", sum.FactRows).
		Int("failed_chunks", len(sum.FailedChunks)).
		Int("failed_archives", len(sum.ArchivesFailed)).
		Msg("ingestion run completed")
	return sum, nil
}

// State returns the orchestrator's current lifecycle state.
func (p *Pipeline) State() State { return p.state }

// loadDimensions reads and validates the comercio and sucursal members of
// every archive, filters orphaned branches, and upserts both dimension sets.
// Member read failures and column-deficient members skip that archive's
// contribution; validation or upsert failures on the merged set are fatal.
func (p *Pipeline) loadDimensions(ctx context.Context, archives []extract.Archive, sum *Summary) ([]records.Record, []records.Record, error) {
	validator := &validate.Validator{Log: p.Log}

	var rawComercios, rawSucursales []records.Record
	var comercioHeader, sucursalHeader []string
	for _, ar := range archives {
		if header, rows, ok := p.readDimensionMember(ar, schema.TableComercio); ok {
			comercioHeader = header
			rawComercios = append(rawComercios, rows...)
		}
		if header, rows, ok := p.readDimensionMember(ar, schema.TableSucursales); ok {
			sucursalHeader = header
			rawSucursales = append(rawSucursales, rows...)
		}
	}

	comercios, err := validator.Comercios(comercioHeader, rawComercios)
	if err != nil {
		return nil, nil, err
	}
	sucursales, err := validator.Sucursales(sucursalHeader, rawSucursales)
	if err != nil {
		return nil, nil, err
	}

	comercios = dedupeByKey(comercios, "id_comercio", "id_bandera")
	sucursales = dedupeByKey(sucursales, "id_comercio", "id_bandera", "id_sucursal")

	filter := &refcheck.Filter{Log: p.Log}
	sucursales, _ = filter.Apply(comercios, sucursales, nil)

	n, err := p.Repo.UpsertComercios(ctx, comercios)
	if err != nil {
		return nil, nil, err
	}
	sum.Comercios = n

	n, err = p.Repo.UpsertSucursales(ctx, sucursales)
	if err != nil {
		return nil, nil, err
	}
	sum.Sucursales = n
	return comercios, sucursales, nil
}

// processChunk runs one archive's product member end to end. Any error is
// contained by the caller at chunk granularity.
func (p *Pipeline) processChunk(
	ctx context.Context,
	ar extract.Archive,
	comercios, sucursales []records.Record,
	writer *archive.Writer,
	scrapedAt, targetDate time.Time,
	sum *Summary,
) error {
	validator := &validate.Validator{Log: p.Log}

	header, rows, err := p.readMember(ar, schema.TableProductos)
	if err != nil {
		return err
	}
	productos, err := validator.Productos(header, rows)
	if err != nil {
		return err
	}

	filter := &refcheck.Filter{Log: p.Log}
	_, productos = filter.Apply(comercios, sucursales, productos)
	if len(productos) == 0 {
		p.Log.Info().Str("archive", ar.Name).Msg("no product rows left after filtering")
		return nil
	}

	if _, err := p.Repo.UpsertProductosMaster(ctx, productos); err != nil {
		return err
	}

	// Non-positive prices stayed through validation for audit; they are
	// excluded here, from both the fact load and the parquet archive.
	facts := make([]records.Record, 0, len(productos))
	for _, r := range productos {
		if price, ok := r["productos_precio_lista"].(float64); ok && price > 0 {
			facts = append(facts, r)
		} else {
			sum.NonPositive++
		}
	}

	n, err := p.Repo.BulkLoadPrecios(ctx, facts, scrapedAt, targetDate)
	if err != nil {
		return err
	}
	sum.FactRows += n

	if err := writer.Append(facts); err != nil {
		return err
	}
	p.Log.Info().Str("archive", ar.Name).Int64("rows", n).Msg("chunk loaded")
	return nil
}

// readDimensionMember reads and column-checks one archive's dimension
// member. A member that cannot be read, or whose header lacks required
// columns, only costs that archive its contribution to the merged set.
func (p *Pipeline) readDimensionMember(ar extract.Archive, table schema.Table) ([]string, []records.Record, bool) {
	header, rows, err := p.readMember(ar, table)
	if err == nil {
		err = validate.CheckColumns(table, header)
	}
	if err != nil {
		p.Log.Warn().Str("archive", ar.Name).Str("member", string(table)).Err(err).
			Msg("dimension member skipped")
		return nil, nil, false
	}
	return header, rows, true
}

// readMember opens one extracted member file and parses it.
func (p *Pipeline) readMember(ar extract.Archive, table schema.Table) ([]string, []records.Record, error) {
	path, ok := ar.Members[table]
	if !ok {
		return nil, nil, fmt.Errorf("archive %s has no %s member", ar.Name, table)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return p.Parser.ReadTable(f)
}

// dedupeByKey keeps the first occurrence of each composite key. The feed
// repeats identical dimension rows across archives; the first one wins.
func dedupeByKey(rows []records.Record, keys ...string) []records.Record {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := ""
		for _, key := range keys {
			k += fmt.Sprintf("%v\x1f", r[key])
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
