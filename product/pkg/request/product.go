package request

type Variant struct {
	Sku        string            `validate:"required,min=3,max=32" json:"sku"`
	Name       string            `validate:"required,max=128"      json:"name"`
	PriceCents int64             `validate:"required,gt=0"         json:"price_cents"`
	Stock      int64             `validate:"gte=0"                 json:"stock"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type Image struct {
	FileID  string `validate:"required" json:"file_id"`
	URL     string `validate:"omitempty,url" json:"url,omitempty"`
	AltText string `json:"alt_text,omitempty"`
	Primary bool   `json:"is_primary,omitempty"`
}

type CreateProduct struct {
	Name        string            `validate:"required,min=1,max=256" json:"name"`
	Description string            `validate:"max=2048"               json:"description,omitempty"`
	Category    string            `validate:"required,max=64"        json:"category"`
	Tags        []string          `json:"tags,omitempty"`
	Variants    []Variant         `validate:"max=20,dive"            json:"variants,omitempty"`
	Images      []Image           `validate:"max=10,dive"            json:"images,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// UpdateProduct is a partial update: nil fields are left untouched.
type UpdateProduct struct {
	Name        *string            `validate:"omitempty,min=1,max=256" json:"name,omitempty"`
	Description *string            `validate:"omitempty,max=2048"      json:"description,omitempty"`
	Category    *string            `validate:"omitempty,max=64"        json:"category,omitempty"`
	Tags        *[]string          `json:"tags,omitempty"`
	Variants    *[]Variant         `validate:"omitempty,max=20,dive"   json:"variants,omitempty"`
	Images      *[]Image           `validate:"omitempty,max=10,dive"   json:"images,omitempty"`
	Metadata    *map[string]string `json:"metadata,omitempty"`
}

type ReserveStock struct {
	Sku      string `validate:"required,min=3,max=32" json:"sku"`
	Quantity int64  `validate:"required,gt=0"         json:"quantity"`
}
