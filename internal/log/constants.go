package log

const (
	KeyAppName     = "app"
	KeyTag         = "tag"
	KeyProcess     = "process"
	KeyConfig      = "config"
	KeyUserID      = "userId"
	KeyProductID   = "productId"
	KeyVariantSku  = "variantSku"
	KeyQuantity    = "quantity"
	KeyCart        = "cart"
	KeyCartTotal   = "cartTotal"
	KeyCurrency    = "currency"
	KeyCacheKey    = "cacheKey"
	KeyProduct     = "product"
	KeyProducts    = "products"
	KeyStock       = "stock"
	KeyStatus      = "status"
	KeyRevision    = "revision"
	KeyExpiresAt   = "expiresAt"
	KeyReapedCarts = "reapedCarts"
	KeyDbURL       = "dbUrl"
)
