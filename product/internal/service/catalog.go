package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/shopbot/internal/errors"
	"github.com/Alturino/shopbot/internal/log"
	inOtel "github.com/Alturino/shopbot/internal/otel"
	"github.com/Alturino/shopbot/product/store"
	"github.com/Alturino/shopbot/product/pkg/model"
	"github.com/Alturino/shopbot/product/pkg/request"
	"github.com/Alturino/shopbot/product/pkg/response"
)

// CatalogService owns product and variant records: validation at the
// boundary, the product status state machine, and the stock reservation
// contract consumed by checkout.
type CatalogService struct {
	store    store.Store
	validate *validator.Validate
}

func NewCatalogService(store store.Store, validate *validator.Validate) CatalogService {
	return CatalogService{store: store, validate: validate}
}

func (svc CatalogService) CreateProduct(
	c context.Context,
	param request.CreateProduct,
) (response.Product, error) {
	c, span := inOtel.Tracer.Start(c, "CatalogService CreateProduct")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CatalogService CreateProduct").
		Str(log.KeyProduct, param.Name).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating request").Logger()
	logger.Trace().Msg("validating request")
	if err := svc.validate.Struct(param); err != nil {
		err = errors.NewValidationError("product", err.Error())
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Trace().Msg("validated request")

	variants := make([]model.Variant, 0, len(param.Variants))
	for _, v := range param.Variants {
		variant, err := model.NewVariant(v.Sku, v.Name, v.PriceCents, v.Stock, v.Attributes)
		if err != nil {
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Product{}, err
		}
		variants = append(variants, variant)
	}
	images := make([]model.Image, 0, len(param.Images))
	for _, img := range param.Images {
		images = append(images, model.Image{
			FileID:  img.FileID,
			URL:     img.URL,
			AltText: img.AltText,
			Primary: img.Primary,
		})
	}

	product, err := model.NewProduct(
		param.Name,
		param.Description,
		param.Category,
		param.Tags,
		variants,
		images,
		param.Metadata,
	)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}

	logger = logger.With().
		Str(log.KeyProcess, "inserting product").
		Str(log.KeyProductID, product.ID.String()).
		Logger()
	logger.Info().Msg("inserting product")
	if err = svc.store.Insert(c, product); err != nil {
		err = fmt.Errorf("failed inserting product with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Info().Msg("inserted product")

	return response.NewProduct(product), nil
}

func (svc CatalogService) UpdateProduct(
	c context.Context,
	id uuid.UUID,
	param request.UpdateProduct,
) (response.Product, error) {
	c, span := inOtel.Tracer.Start(c, "CatalogService UpdateProduct")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CatalogService UpdateProduct").
		Str(log.KeyProductID, id.String()).
		Logger()

	if err := svc.validate.Struct(param); err != nil {
		err = errors.NewValidationError("product", err.Error())
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "finding product").Logger()
	logger.Trace().Msg("finding product")
	product, err := svc.store.FindById(c, id)
	if err != nil {
		err = fmt.Errorf("failed finding productId=%s with error=%w", id.String(), err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Trace().Msg("found product")

	if param.Name != nil {
		product.Name = *param.Name
	}
	if param.Description != nil {
		product.Description = *param.Description
	}
	if param.Category != nil {
		product.Category = *param.Category
	}
	if param.Tags != nil {
		product.Tags = *param.Tags
	}
	if param.Metadata != nil {
		product.Metadata = *param.Metadata
	}
	if param.Images != nil {
		images := make([]model.Image, 0, len(*param.Images))
		for _, img := range *param.Images {
			images = append(images, model.Image{
				FileID:  img.FileID,
				URL:     img.URL,
				AltText: img.AltText,
				Primary: img.Primary,
			})
		}
		if len(images) > model.MaxImages {
			err = errors.NewValidationError("images", "too many images")
			inOtel.RecordError(err, span)
			return response.Product{}, err
		}
		product.Images = images
	}
	if param.Variants != nil {
		variants := make([]model.Variant, 0, len(*param.Variants))
		for _, v := range *param.Variants {
			variant, err := model.NewVariant(v.Sku, v.Name, v.PriceCents, v.Stock, v.Attributes)
			if err != nil {
				inOtel.RecordError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				return response.Product{}, err
			}
			variants = append(variants, variant)
		}
		if len(variants) > model.MaxVariants {
			err = errors.NewValidationError("variants", "too many variants")
			inOtel.RecordError(err, span)
			return response.Product{}, err
		}
		product.Variants = variants
		product.ReconcileStatus()
	}

	product.UpdatedAt = time.Now().UTC()

	logger = logger.With().Str(log.KeyProcess, "updating product").Logger()
	logger.Info().Msg("updating product")
	if err = svc.store.Update(c, product); err != nil {
		err = fmt.Errorf("failed updating productId=%s with error=%w", id.String(), err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Info().Msg("updated product")

	return response.NewProduct(product), nil
}

func (svc CatalogService) FindProductById(
	c context.Context,
	id uuid.UUID,
) (model.Product, error) {
	c, span := inOtel.Tracer.Start(c, "CatalogService FindProductById")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CatalogService FindProductById").
		Str(log.KeyProductID, id.String()).
		Logger()

	product, err := svc.store.FindById(c, id)
	if err != nil {
		err = fmt.Errorf("failed finding productId=%s with error=%w", id.String(), err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return model.Product{}, err
	}
	return product, nil
}

func (svc CatalogService) FindProducts(c context.Context) ([]response.Product, error) {
	c, span := inOtel.Tracer.Start(c, "CatalogService FindProducts")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CatalogService FindProducts").
		Logger()

	products, err := svc.store.FindAll(c)
	if err != nil {
		err = fmt.Errorf("failed finding products with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return nil, err
	}

	responses := make([]response.Product, 0, len(products))
	for _, p := range products {
		responses = append(responses, response.NewProduct(p))
	}
	return responses, nil
}

// PromoteProduct moves a draft product to active; it requires at least
// one variant with stock.
func (svc CatalogService) PromoteProduct(
	c context.Context,
	id uuid.UUID,
) (response.Product, error) {
	return svc.transition(c, "CatalogService PromoteProduct", id, (*model.Product).Promote)
}

// ArchiveProduct is the terminal manual transition; archived products are
// excluded from availability and can no longer be added to carts.
func (svc CatalogService) ArchiveProduct(
	c context.Context,
	id uuid.UUID,
) (response.Product, error) {
	return svc.transition(c, "CatalogService ArchiveProduct", id, (*model.Product).Archive)
}

func (svc CatalogService) transition(
	c context.Context,
	tag string,
	id uuid.UUID,
	apply func(*model.Product) error,
) (response.Product, error) {
	c, span := inOtel.Tracer.Start(c, tag)
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, tag).
		Str(log.KeyProductID, id.String()).
		Logger()

	product, err := svc.store.FindById(c, id)
	if err != nil {
		err = fmt.Errorf("failed finding productId=%s with error=%w", id.String(), err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}

	if err = apply(&product); err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}

	logger = logger.With().
		Str(log.KeyProcess, "updating product").
		Str(log.KeyStatus, string(product.Status)).
		Logger()
	logger.Info().Msg("updating product status")
	if err = svc.store.Update(c, product); err != nil {
		err = fmt.Errorf("failed updating productId=%s with error=%w", id.String(), err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Product{}, err
	}
	logger.Info().Msg("updated product status")

	return response.NewProduct(product), nil
}

// ReserveStock decrements stock for a confirmed purchase. It never
// clamps: a request exceeding current stock fails with
// errors.ErrInsufficientStock and leaves stock untouched.
func (svc CatalogService) ReserveStock(c context.Context, sku string, quantity int64) error {
	c, span := inOtel.Tracer.Start(c, "CatalogService ReserveStock")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CatalogService ReserveStock").
		Str(log.KeyVariantSku, sku).
		Int64(log.KeyQuantity, quantity).
		Logger()

	if err := svc.validate.Struct(request.ReserveStock{Sku: sku, Quantity: quantity}); err != nil {
		err = errors.NewValidationError("reserve_stock", err.Error())
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}

	logger.Info().Msg("reserving stock")
	if err := svc.store.ReserveStock(c, sku, quantity); err != nil {
		err = fmt.Errorf("failed reserving stock for sku=%s with error=%w", sku, err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("reserved stock")
	return nil
}

// ReleaseStock returns reserved units after a failed or abandoned
// checkout.
func (svc CatalogService) ReleaseStock(c context.Context, sku string, quantity int64) error {
	c, span := inOtel.Tracer.Start(c, "CatalogService ReleaseStock")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CatalogService ReleaseStock").
		Str(log.KeyVariantSku, sku).
		Int64(log.KeyQuantity, quantity).
		Logger()

	logger.Info().Msg("releasing stock")
	if err := svc.store.ReleaseStock(c, sku, quantity); err != nil {
		err = fmt.Errorf("failed releasing stock for sku=%s with error=%w", sku, err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return err
	}
	logger.Info().Msg("released stock")
	return nil
}
