package service

import (
	"context"
	goerrors "errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alturino/shopbot/cart/store"
	"github.com/Alturino/shopbot/cart/pkg/model"
	"github.com/Alturino/shopbot/cart/pkg/request"
	"github.com/Alturino/shopbot/cart/pkg/response"
	"github.com/Alturino/shopbot/internal/errors"
	"github.com/Alturino/shopbot/internal/log"
	"github.com/Alturino/shopbot/internal/metric"
	inOtel "github.com/Alturino/shopbot/internal/otel"
	productModel "github.com/Alturino/shopbot/product/pkg/model"
)

// maxStaleRetries bounds how often a mutation is replayed after losing an
// optimistic-concurrency race. This is the only implicit retry the core
// performs; transient persistence failures stay with the caller.
const maxStaleRetries = 3

// Catalog is the slice of the catalog service the cart needs: price and
// availability at add time, reservation at checkout.
type Catalog interface {
	FindProductById(c context.Context, id uuid.UUID) (productModel.Product, error)
	ReserveStock(c context.Context, sku string, quantity int64) error
	ReleaseStock(c context.Context, sku string, quantity int64) error
}

type CartService struct {
	carts    store.Store
	catalog  Catalog
	validate *validator.Validate
}

func NewCartService(carts store.Store, catalog Catalog, validate *validator.Validate) CartService {
	return CartService{carts: carts, catalog: catalog, validate: validate}
}

// AddItem resolves the product and variant from the catalog, freezes the
// display name and unit price into a line item, and merges it into the
// user's cart. Adding a nonexistent product is a hard error; adding an
// archived or out-of-stock product is rejected as unavailable.
func (svc CartService) AddItem(
	c context.Context,
	param request.AddItem,
) (response.Cart, error) {
	c, span := inOtel.Tracer.Start(c, "CartService AddItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService AddItem").
		Int64(log.KeyUserID, param.UserId).
		Str(log.KeyProductID, param.ProductId.String()).
		Int(log.KeyQuantity, param.Quantity).
		Logger()

	logger = logger.With().Str(log.KeyProcess, "validating request").Logger()
	logger.Trace().Msg("validating request")
	if err := svc.validate.Struct(param); err != nil {
		err = errors.NewValidationError("add_item", err.Error())
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Trace().Msg("validated request")

	logger = logger.With().Str(log.KeyProcess, "finding product").Logger()
	logger.Info().Msg("finding product")
	product, err := svc.catalog.FindProductById(c, param.ProductId)
	if err != nil {
		err = fmt.Errorf("failed finding productId=%s with error=%w", param.ProductId.String(), err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("found product")

	if !product.Available() {
		err = fmt.Errorf(
			"productId=%s status=%s with error=%w",
			product.ID.String(),
			product.Status,
			errors.ErrUnavailable,
		)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	variantSku, variant, err := resolveVariant(product, param.VariantSku)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	// Snapshot name and price now: the line must survive later catalog
	// changes, including deletion of the product.
	item, err := model.NewLineItem(
		product.ID,
		variantSku,
		product.Name,
		param.Quantity,
		variant.Price(),
	)
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	logger = logger.With().Str(log.KeyProcess, "saving cart").Logger()
	cart, err := svc.mutate(c, param.UserId, "add", func(cart *model.Cart) error {
		return cart.AddItem(item)
	})
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().
		Str(log.KeyCartTotal, cart.Total().String()).
		Int64(log.KeyRevision, cart.Revision).
		Msg("saved cart")

	return response.NewCart(cart), nil
}

// RemoveItem deletes the matching line and reports whether a removal
// happened. An absent cart or absent line is a documented no-op, not an
// error.
func (svc CartService) RemoveItem(
	c context.Context,
	param request.RemoveItem,
) (response.Cart, bool, error) {
	c, span := inOtel.Tracer.Start(c, "CartService RemoveItem")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService RemoveItem").
		Int64(log.KeyUserID, param.UserId).
		Str(log.KeyProductID, param.ProductId.String()).
		Logger()

	if err := svc.validate.Struct(param); err != nil {
		err = errors.NewValidationError("remove_item", err.Error())
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, false, err
	}

	variantSku := productModel.NormalizeSku(param.VariantSku)
	var lastErr error
	for attempt := 0; attempt < maxStaleRetries; attempt++ {
		cart, err := svc.carts.Load(c, param.UserId)
		if goerrors.Is(err, errors.ErrNotFound) {
			logger.Info().Msg("cart not found, nothing to remove")
			return response.Cart{}, false, nil
		}
		if err != nil {
			err = fmt.Errorf("failed loading cart with error=%w", err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Cart{}, false, err
		}

		if removed := cart.RemoveItem(param.ProductId, variantSku); !removed {
			logger.Info().Msg("line item not found, nothing to remove")
			return response.NewCart(cart), false, nil
		}

		err = svc.carts.Save(c, &cart)
		if goerrors.Is(err, errors.ErrStaleWrite) {
			lastErr = err
			continue
		}
		if err != nil {
			err = fmt.Errorf("failed saving cart with error=%w", err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.Cart{}, false, err
		}
		metric.CartMutations.WithLabelValues("remove").Inc()
		logger.Info().Msg("removed line item")
		return response.NewCart(cart), true, nil
	}
	inOtel.RecordError(lastErr, span)
	return response.Cart{}, false, lastErr
}

// ClearCart empties the cart and refreshes its TTL. Clearing an absent
// cart is a no-op; clearing an already-empty cart still advances the
// session timestamps.
func (svc CartService) ClearCart(
	c context.Context,
	param request.ClearCart,
) (response.Cart, error) {
	c, span := inOtel.Tracer.Start(c, "CartService ClearCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ClearCart").
		Int64(log.KeyUserID, param.UserId).
		Logger()

	if err := svc.validate.Struct(param); err != nil {
		err = errors.NewValidationError("clear_cart", err.Error())
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	if _, err := svc.carts.Load(c, param.UserId); goerrors.Is(err, errors.ErrNotFound) {
		logger.Info().Msg("cart not found, nothing to clear")
		return response.Cart{}, nil
	} else if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}

	cart, err := svc.mutate(c, param.UserId, "clear", func(cart *model.Cart) error {
		cart.Clear()
		return nil
	})
	if err != nil {
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	logger.Info().Msg("cleared cart")
	return response.NewCart(cart), nil
}

// GetCart returns the user's cart with recomputed totals. A user without
// an active cart sees a fresh empty one; nothing is persisted by a read.
func (svc CartService) GetCart(c context.Context, userID int64) (response.Cart, error) {
	c, span := inOtel.Tracer.Start(c, "CartService GetCart")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService GetCart").
		Int64(log.KeyUserID, userID).
		Logger()

	cart, err := svc.carts.LoadOrCreate(c, userID)
	if err != nil {
		err = fmt.Errorf("failed loading cart with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.Cart{}, err
	}
	return response.NewCart(cart), nil
}

// CheckoutSnapshot exposes a read-only view of the cart for the payment
// collaborator. Checkout against an absent or expired cart is a hard
// ErrNotFound.
func (svc CartService) CheckoutSnapshot(
	c context.Context,
	param request.Checkout,
) (response.CheckoutSnapshot, error) {
	c, span := inOtel.Tracer.Start(c, "CartService CheckoutSnapshot")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService CheckoutSnapshot").
		Int64(log.KeyUserID, param.UserId).
		Logger()

	if err := svc.validate.Struct(param); err != nil {
		err = errors.NewValidationError("checkout", err.Error())
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSnapshot{}, err
	}

	cart, err := svc.carts.Load(c, param.UserId)
	if err != nil {
		err = fmt.Errorf("failed loading cart for checkout with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSnapshot{}, err
	}
	return response.NewCheckoutSnapshot(cart.Snapshot()), nil
}

// ConfirmCheckout runs after the payment collaborator confirms payment:
// it reserves stock for every line and destroys the cart. A reservation
// failure releases everything reserved so far and leaves the cart
// untouched, so the user can retry after restocking.
func (svc CartService) ConfirmCheckout(
	c context.Context,
	param request.Checkout,
) (response.CheckoutSnapshot, error) {
	c, span := inOtel.Tracer.Start(c, "CartService ConfirmCheckout")
	defer span.End()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "CartService ConfirmCheckout").
		Int64(log.KeyUserID, param.UserId).
		Logger()

	if err := svc.validate.Struct(param); err != nil {
		err = errors.NewValidationError("checkout", err.Error())
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSnapshot{}, err
	}

	cart, err := svc.carts.Load(c, param.UserId)
	if err != nil {
		err = fmt.Errorf("failed loading cart for checkout with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSnapshot{}, err
	}
	if cart.IsEmpty() {
		err = errors.NewValidationError("cart", "cannot checkout an empty cart")
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
		return response.CheckoutSnapshot{}, err
	}

	type reserved struct {
		sku      string
		quantity int64
	}
	done := make([]reserved, 0, len(cart.Items))
	release := func() {
		for i := len(done) - 1; i >= 0; i-- {
			if relErr := svc.catalog.ReleaseStock(c, done[i].sku, done[i].quantity); relErr != nil {
				logger.Error().
					Err(relErr).
					Str(log.KeyVariantSku, done[i].sku).
					Msg("failed releasing stock after aborted checkout")
			}
		}
	}

	logger = logger.With().Str(log.KeyProcess, "reserving stock").Logger()
	for _, item := range cart.Items {
		sku := item.VariantID
		if sku == "" {
			// Lines added without a variant reserve against the
			// product's default variant.
			product, err := svc.catalog.FindProductById(c, item.ProductID)
			if err != nil {
				release()
				err = fmt.Errorf(
					"failed resolving productId=%s for reservation with error=%w",
					item.ProductID.String(),
					err,
				)
				inOtel.RecordError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				return response.CheckoutSnapshot{}, err
			}
			variant, ok := product.DefaultVariant()
			if !ok {
				release()
				err = fmt.Errorf(
					"productId=%s has no variants with error=%w",
					item.ProductID.String(),
					errors.ErrNotFound,
				)
				inOtel.RecordError(err, span)
				logger.Error().Err(err).Msg(err.Error())
				return response.CheckoutSnapshot{}, err
			}
			sku = variant.Sku
		}

		if err := svc.catalog.ReserveStock(c, sku, int64(item.Quantity)); err != nil {
			release()
			err = fmt.Errorf("failed reserving sku=%s with error=%w", sku, err)
			inOtel.RecordError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return response.CheckoutSnapshot{}, err
		}
		done = append(done, reserved{sku: sku, quantity: int64(item.Quantity)})
	}
	logger.Info().Msg("reserved stock for all lines")

	snapshot := response.NewCheckoutSnapshot(cart.Snapshot())

	logger = logger.With().Str(log.KeyProcess, "deleting cart").Logger()
	logger.Info().Msg("deleting cart after checkout")
	if err := svc.carts.Delete(c, param.UserId); err != nil {
		// Stock is already committed to the order; the leftover cart
		// will be reaped by its TTL.
		err = fmt.Errorf("failed deleting cart after checkout with error=%w", err)
		inOtel.RecordError(err, span)
		logger.Error().Err(err).Msg(err.Error())
	}
	metric.CartMutations.WithLabelValues("checkout").Inc()

	return snapshot, nil
}

// mutate replays load-mutate-save until it wins the optimistic
// concurrency race, bounded by maxStaleRetries.
func (svc CartService) mutate(
	c context.Context,
	userID int64,
	op string,
	fn func(*model.Cart) error,
) (model.Cart, error) {
	var lastErr error
	for attempt := 0; attempt < maxStaleRetries; attempt++ {
		cart, err := svc.carts.LoadOrCreate(c, userID)
		if err != nil {
			return model.Cart{}, fmt.Errorf("failed loading cart with error=%w", err)
		}
		if err = fn(&cart); err != nil {
			return model.Cart{}, err
		}
		err = svc.carts.Save(c, &cart)
		if goerrors.Is(err, errors.ErrStaleWrite) {
			lastErr = err
			continue
		}
		if err != nil {
			return model.Cart{}, fmt.Errorf("failed saving cart with error=%w", err)
		}
		metric.CartMutations.WithLabelValues(op).Inc()
		return cart, nil
	}
	return model.Cart{}, lastErr
}

// resolveVariant picks the variant a cart line refers to: the explicit
// SKU when given, the product's default variant otherwise. The returned
// key is empty for default adds so that "no variant" stays a distinct
// merge key.
func resolveVariant(
	product productModel.Product,
	requestedSku string,
) (string, productModel.Variant, error) {
	if requestedSku == "" {
		variant, ok := product.DefaultVariant()
		if !ok {
			return "", productModel.Variant{}, fmt.Errorf(
				"productId=%s has no variants with error=%w",
				product.ID.String(),
				errors.ErrUnavailable,
			)
		}
		return "", variant, nil
	}
	variant, ok := product.FindVariant(requestedSku)
	if !ok {
		return "", productModel.Variant{}, fmt.Errorf(
			"variant sku=%s not found on productId=%s with error=%w",
			requestedSku,
			product.ID.String(),
			errors.ErrNotFound,
		)
	}
	return variant.Sku, variant, nil
}
