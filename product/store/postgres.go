package store

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Alturino/shopbot/internal/errors"
	"github.com/Alturino/shopbot/internal/metric"
	"github.com/Alturino/shopbot/product/pkg/model"
)

// opTimeout bounds every database call; a slow backend surfaces a
// retryable error instead of hanging a request handler.
const opTimeout = 3 * time.Second

// PostgresStore persists the catalog in two tables: products and
// product_variants (one row per SKU, position-ordered). Stock
// reservation is a conditional UPDATE so the read-check-write is atomic
// on the database side.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(c context.Context, product model.Product) error {
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()

	tx, err := s.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed beginning transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	if err = insertProductRow(c, tx, product); err != nil {
		return err
	}
	if err = insertVariantRows(c, tx, product); err != nil {
		return err
	}
	if err = tx.Commit(c); err != nil {
		return fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return nil
}

func (s *PostgresStore) Update(c context.Context, product model.Product) error {
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()

	tx, err := s.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed beginning transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	images, metadata, err := encodeProductJson(product)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(
		c,
		`update products
		    set name = $2, description = $3, category = $4, tags = $5,
		        images = $6, status = $7, metadata = $8, updated_at = $9
		  where id = $1`,
		product.ID,
		product.Name,
		product.Description,
		product.Category,
		product.Tags,
		images,
		string(product.Status),
		metadata,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed updating product with error=%w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrNotFound
	}

	if _, err = tx.Exec(c, `delete from product_variants where product_id = $1`, product.ID); err != nil {
		return fmt.Errorf("failed deleting variants with error=%w", err)
	}
	if err = insertVariantRows(c, tx, product); err != nil {
		return err
	}
	if err = tx.Commit(c); err != nil {
		return fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return nil
}

func (s *PostgresStore) FindById(c context.Context, id uuid.UUID) (model.Product, error) {
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()
	return findProduct(c, s.pool, `where p.id = $1`, id)
}

func (s *PostgresStore) FindBySku(c context.Context, sku string) (model.Product, error) {
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()
	return findProduct(
		c,
		s.pool,
		`where p.id = (select product_id from product_variants where sku = $1)`,
		model.NormalizeSku(sku),
	)
}

func (s *PostgresStore) FindAll(c context.Context) ([]model.Product, error) {
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()

	rows, err := s.pool.Query(
		c,
		`select id, name, description, category, tags, images, status, metadata, created_at, updated_at
		   from products order by created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed querying products with error=%w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating products with error=%w", err)
	}

	for i := range products {
		variants, err := findVariants(c, s.pool, products[i].ID)
		if err != nil {
			return nil, err
		}
		products[i].Variants = variants
	}
	return products, nil
}

func (s *PostgresStore) Delete(c context.Context, id uuid.UUID) error {
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()

	tag, err := s.pool.Exec(c, `delete from products where id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed deleting product with error=%w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ReserveStock(c context.Context, sku string, quantity int64) error {
	if quantity <= 0 {
		return errors.NewValidationError("quantity", "must be positive")
	}
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()

	sku = model.NormalizeSku(sku)
	tx, err := s.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed beginning transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	// Conditional decrement: the WHERE clause makes the stock check and
	// the write a single atomic statement.
	productID := uuid.UUID{}
	err = tx.QueryRow(
		c,
		`update product_variants set stock = stock - $2
		  where sku = $1 and stock >= $2
		 returning product_id`,
		sku,
		quantity,
	).Scan(&productID)
	if goerrors.Is(err, pgx.ErrNoRows) {
		exists := false
		if err = tx.QueryRow(c, `select exists(select 1 from product_variants where sku = $1)`, sku).Scan(&exists); err != nil {
			return fmt.Errorf("failed checking variant existence with error=%w", err)
		}
		if !exists {
			return errors.ErrNotFound
		}
		metric.ReservationConflicts.Inc()
		return errors.ErrInsufficientStock
	}
	if err != nil {
		return fmt.Errorf("failed reserving stock for sku=%s with error=%w", sku, err)
	}

	if err = reconcileStatus(c, tx, productID); err != nil {
		return err
	}
	if err = tx.Commit(c); err != nil {
		return fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return nil
}

func (s *PostgresStore) ReleaseStock(c context.Context, sku string, quantity int64) error {
	if quantity <= 0 {
		return errors.NewValidationError("quantity", "must be positive")
	}
	c, cancel := context.WithTimeout(c, opTimeout)
	defer cancel()

	sku = model.NormalizeSku(sku)
	tx, err := s.pool.BeginTx(c, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed beginning transaction with error=%w", err)
	}
	defer func() { _ = tx.Rollback(c) }()

	productID := uuid.UUID{}
	err = tx.QueryRow(
		c,
		`update product_variants set stock = stock + $2
		  where sku = $1
		 returning product_id`,
		sku,
		quantity,
	).Scan(&productID)
	if goerrors.Is(err, pgx.ErrNoRows) {
		return errors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed releasing stock for sku=%s with error=%w", sku, err)
	}

	if err = reconcileStatus(c, tx, productID); err != nil {
		return err
	}
	if err = tx.Commit(c); err != nil {
		return fmt.Errorf("failed committing transaction with error=%w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return nil
}

// reconcileStatus applies the automatic active/out_of_stock transitions
// from the summed variant stock, inside the caller's transaction.
func reconcileStatus(c context.Context, tx pgx.Tx, productID uuid.UUID) error {
	_, err := tx.Exec(
		c,
		`update products
		    set status = case
		          when status = 'active' and total.stock = 0 then 'out_of_stock'
		          when status = 'out_of_stock' and total.stock > 0 then 'active'
		          else status
		        end,
		        updated_at = now()
		   from (
		     select coalesce(sum(stock), 0) as stock
		       from product_variants
		      where product_id = $1
		   ) as total
		  where id = $1`,
		productID,
	)
	if err != nil {
		return fmt.Errorf("failed reconciling product status with error=%w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (model.Product, error) {
	product := model.Product{}
	images := []byte{}
	metadata := []byte{}
	status := ""
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Category,
		&product.Tags,
		&images,
		&status,
		&metadata,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return model.Product{}, fmt.Errorf("failed scanning product with error=%w", err)
	}
	product.Status = model.Status(status)
	if len(images) > 0 {
		if err = json.Unmarshal(images, &product.Images); err != nil {
			return model.Product{}, fmt.Errorf("failed unmarshaling images with error=%w", err)
		}
	}
	if len(metadata) > 0 {
		if err = json.Unmarshal(metadata, &product.Metadata); err != nil {
			return model.Product{}, fmt.Errorf("failed unmarshaling metadata with error=%w", err)
		}
	}
	return product, nil
}

func findProduct(c context.Context, pool *pgxpool.Pool, where string, arg any) (model.Product, error) {
	row := pool.QueryRow(
		c,
		`select id, name, description, category, tags, images, status, metadata, created_at, updated_at
		   from products p `+where,
		arg,
	)
	product, err := scanProduct(row)
	if goerrors.Is(err, pgx.ErrNoRows) {
		return model.Product{}, errors.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	product.Variants, err = findVariants(c, pool, product.ID)
	if err != nil {
		return model.Product{}, err
	}
	return product, nil
}

func findVariants(c context.Context, pool *pgxpool.Pool, productID uuid.UUID) ([]model.Variant, error) {
	rows, err := pool.Query(
		c,
		`select sku, name, price_cents, stock, attributes
		   from product_variants
		  where product_id = $1
		  order by position`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed querying variants with error=%w", err)
	}
	defer rows.Close()

	variants := []model.Variant{}
	for rows.Next() {
		v := model.Variant{}
		attributes := []byte{}
		if err = rows.Scan(&v.Sku, &v.Name, &v.PriceCents, &v.Stock, &attributes); err != nil {
			return nil, fmt.Errorf("failed scanning variant with error=%w", err)
		}
		if len(attributes) > 0 {
			if err = json.Unmarshal(attributes, &v.Attributes); err != nil {
				return nil, fmt.Errorf("failed unmarshaling attributes with error=%w", err)
			}
		}
		variants = append(variants, v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating variants with error=%w", err)
	}
	return variants, nil
}

func insertProductRow(c context.Context, tx pgx.Tx, product model.Product) error {
	images, metadata, err := encodeProductJson(product)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		c,
		`insert into products (id, name, description, category, tags, images, status, metadata, created_at, updated_at)
		 values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		product.ID,
		product.Name,
		product.Description,
		product.Category,
		product.Tags,
		images,
		string(product.Status),
		metadata,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed inserting product with error=%w", err)
	}
	return nil
}

func insertVariantRows(c context.Context, tx pgx.Tx, product model.Product) error {
	for i, v := range product.Variants {
		attributes, err := json.Marshal(v.Attributes)
		if err != nil {
			return fmt.Errorf("failed marshaling attributes with error=%w", err)
		}
		_, err = tx.Exec(
			c,
			`insert into product_variants (sku, product_id, position, name, price_cents, stock, attributes)
			 values ($1, $2, $3, $4, $5, $6, $7)`,
			v.Sku,
			product.ID,
			i,
			v.Name,
			v.PriceCents,
			v.Stock,
			attributes,
		)
		if err != nil {
			return fmt.Errorf("failed inserting variant sku=%s with error=%w", v.Sku, err)
		}
	}
	return nil
}

func encodeProductJson(product model.Product) (images []byte, metadata []byte, err error) {
	images, err = json.Marshal(product.Images)
	if err != nil {
		return nil, nil, fmt.Errorf("failed marshaling images with error=%w", err)
	}
	metadata, err = json.Marshal(product.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("failed marshaling metadata with error=%w", err)
	}
	return images, metadata, nil
}
