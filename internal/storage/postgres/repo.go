// Package postgres implements storage.Repository on Postgres using pgx v5.
// Dimension and master tables are upserted with ON CONFLICT batches; the
// precios fact rows go through COPY (pgx CopyFrom) into the date partition.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"sepaetl/pkg/records"
)

// Repo is a Postgres-backed repository for one run.
type Repo struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New constructs a Repo and returns a close function for cleanup. Fact
// loading is sequential in this design, so the default pool size suffices.
func New(ctx context.Context, dsn string, log zerolog.Logger) (*Repo, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Repo{pool: pool, log: log}, pool.Close, nil
}

// comercioColumns lists the upserted merchant columns in table order.
// comercio_ultima_actualizacion is feed bookkeeping and is not persisted.
var comercioColumns = []string{
	"id_comercio", "id_bandera", "comercio_cuit", "comercio_razon_social",
	"comercio_bandera_nombre", "comercio_bandera_url", "comercio_version_sepa",
}

var comercioUpdatable = []string{
	"comercio_razon_social", "comercio_bandera_nombre", "comercio_bandera_url",
}

// UpsertComercios upserts merchant rows keyed by (id_comercio, id_bandera),
// updating only the mutable descriptive fields.
func (r *Repo) UpsertComercios(ctx context.Context, rows []records.Record) (int64, error) {
	n, err := r.upsert(ctx, "comercios", comercioColumns,
		[]string{"id_comercio", "id_bandera"}, comercioUpdatable, rows)
	if err != nil {
		return n, fmt.Errorf("upsert comercios: %w", err)
	}
	r.log.Info().Int64("rows", n).Msg("upserted comercios")
	return n, nil
}

var sucursalColumns = []string{
	"id_comercio", "id_bandera", "id_sucursal",
	"sucursales_nombre", "sucursales_tipo", "sucursales_calle",
	"sucursales_numero", "sucursales_latitud", "sucursales_longitud",
	"sucursales_observaciones", "sucursales_barrio", "sucursales_codigo_postal",
	"sucursales_localidad", "sucursales_provincia",
	"sucursales_lunes_horario_atencion", "sucursales_martes_horario_atencion",
	"sucursales_miercoles_horario_atencion", "sucursales_jueves_horario_atencion",
	"sucursales_viernes_horario_atencion", "sucursales_sabado_horario_atencion",
	"sucursales_domingo_horario_atencion",
}

// UpsertSucursales upserts branch rows keyed by the three-part branch key.
// Every non-key column is updatable; identity is never rewritten.
func (r *Repo) UpsertSucursales(ctx context.Context, rows []records.Record) (int64, error) {
	n, err := r.upsert(ctx, "sucursales", sucursalColumns,
		[]string{"id_comercio", "id_bandera", "id_sucursal"}, sucursalColumns[3:], rows)
	if err != nil {
		return n, fmt.Errorf("upsert sucursales: %w", err)
	}
	r.log.Info().Int64("rows", n).Msg("upserted sucursales")
	return n, nil
}

var productoColumns = []string{
	"id_producto", "productos_ean", "productos_descripcion",
	"productos_cantidad_presentacion", "productos_unidad_medida_presentacion",
	"productos_marca", "productos_cantidad_referencia",
	"productos_unidad_medida_referencia",
}

var productoUpdatable = []string{
	"productos_descripcion", "productos_marca",
	"productos_cantidad_presentacion", "productos_unidad_medida_presentacion",
	"productos_cantidad_referencia", "productos_unidad_medida_referencia",
}

// UpsertProductosMaster reduces rows to one per id_producto (first
// occurrence wins) and upserts them into the product master catalog.
func (r *Repo) UpsertProductosMaster(ctx context.Context, rows []records.Record) (int64, error) {
	seen := make(map[int64]struct{}, len(rows))
	unique := make([]records.Record, 0, len(rows))
	for _, row := range rows {
		id, ok := row["id_producto"].(int64)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, row)
	}

	n, err := r.upsert(ctx, "productos_master", productoColumns,
		[]string{"id_producto"}, productoUpdatable, unique)
	if err != nil {
		return n, fmt.Errorf("upsert productos_master: %w", err)
	}
	r.log.Info().Int64("rows", n).Msg("upserted productos_master")
	return n, nil
}

// upsert sends one INSERT ... ON CONFLICT DO UPDATE per row through a pgx
// batch. Row volumes here are dimension-sized; the fact path uses COPY.
func (r *Repo) upsert(ctx context.Context, table string, cols, keyCols, updateCols []string, rows []records.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sets := make([]string, 0, len(updateCols)+1)
	for _, c := range updateCols {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(c), pgIdent(c)))
	}
	sets = append(sets, "updated_at = NOW()")

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		pgIdent(table),
		strings.Join(mapIdent(cols), ","),
		strings.Join(placeholders, ","),
		strings.Join(mapIdent(keyCols), ","),
		strings.Join(sets, ", "),
	)

	batch := &pgx.Batch{}
	for _, row := range rows {
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = row[c]
		}
		batch.Queue(sql, args...)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	var total int64
	for range rows {
		tag, err := br.Exec()
		if err != nil {
			return total, pgDetail(err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

// PreparePartition creates the date partition if absent via the stored
// routine, then truncates it so a re-run for the same date fully replaces its
// fact rows.
func (r *Repo) PreparePartition(ctx context.Context, fechaVigencia time.Time) error {
	if _, err := r.pool.Exec(ctx, "SELECT create_precios_partition($1)", fechaVigencia); err != nil {
		return fmt.Errorf("create partition: %w", pgDetail(err))
	}
	part := partitionName(fechaVigencia)
	if _, err := r.pool.Exec(ctx, "TRUNCATE TABLE ONLY "+pgIdent(part)); err != nil {
		return fmt.Errorf("truncate partition %s: %w", part, pgDetail(err))
	}
	r.log.Info().Str("partition", part).Msg("partition prepared")
	return nil
}

// partitionName mirrors the naming convention of create_precios_partition.
func partitionName(d time.Time) string {
	return "precios_" + d.Format("2006_01_02")
}

// PrecioColumns lists the fact columns in COPY order, ending with the two
// run-scoped columns appended by the loader.
var PrecioColumns = []string{
	"id_comercio", "id_bandera", "id_sucursal", "id_producto",
	"productos_precio_lista", "productos_precio_referencia",
	"productos_precio_unitario_promo1", "productos_leyenda_promo1",
	"productos_precio_unitario_promo2", "productos_leyenda_promo2",
	"productos_descripcion", "productos_marca",
	"scraped_at", "fecha_vigencia",
}

// BulkLoadPrecios streams fact rows into the precios table with COPY. The
// parent table routes each row to the date partition; rows carry scrapedAt
// and fechaVigencia in the trailing columns.
func (r *Repo) BulkLoadPrecios(ctx context.Context, rows []records.Record, scrapedAt, fechaVigencia time.Time) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	copyRows := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(PrecioColumns))
		for j, c := range PrecioColumns[:len(PrecioColumns)-2] {
			vals[j] = row[c]
		}
		vals[len(vals)-2] = scrapedAt
		vals[len(vals)-1] = fechaVigencia
		copyRows[i] = vals
	}

	n, err := r.pool.CopyFrom(ctx, pgx.Identifier{"precios"}, PrecioColumns, pgx.CopyFromRows(copyRows))
	if err != nil {
		return n, fmt.Errorf("copy precios: %w", pgDetail(err))
	}
	return n, nil
}

// pgDetail surfaces the Postgres error detail when present; pgx hides it
// behind the terse SQLSTATE message otherwise.
func pgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s (%s): %s", pgErr.Message, pgErr.SQLState(), pgErr.Detail)
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
