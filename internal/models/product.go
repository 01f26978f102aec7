package models

// Product represents a product in the catalog.
type Product struct {
	ID          int64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Name        string   `json:"name" gorm:"not null"`
	Category    string   `json:"category" gorm:"not null"`
	Price       float64  `json:"price" gorm:"not null;check:price >= 0"`
	Rating      *float64 `json:"rating,omitempty"`
	Description string   `json:"description" gorm:"not null"`
	ImageURL    *string  `json:"imageUrl,omitempty" gorm:"column:image_url"`
}

// ProductInput is the body accepted when creating a product.
type ProductInput struct {
	Name        string   `json:"name" validate:"required"`
	Category    string   `json:"category" validate:"required"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Rating      *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Description string   `json:"description" validate:"required"`
	ImageURL    *string  `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// Product builds the record to be stored. The ID is left for the store to assign.
func (in ProductInput) Product() Product {
	p := Product{
		Name:        in.Name,
		Category:    in.Category,
		Rating:      in.Rating,
		Description: in.Description,
		ImageURL:    in.ImageURL,
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	return p
}

// ProductPatch is a partial update. Nil fields are left untouched.
type ProductPatch struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=1"`
	Category    *string  `json:"category,omitempty" validate:"omitempty,min=1"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Rating      *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Description *string  `json:"description,omitempty" validate:"omitempty,min=1"`
	ImageURL    *string  `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// IsEmpty reports whether the patch carries no field at all.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Category == nil && p.Price == nil &&
		p.Rating == nil && p.Description == nil && p.ImageURL == nil
}

// Apply merges the present fields of the patch into product.
func (p ProductPatch) Apply(product *Product) {
	if p.Name != nil {
		product.Name = *p.Name
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Rating != nil {
		product.Rating = p.Rating
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.ImageURL != nil {
		product.ImageURL = p.ImageURL
	}
}

// Columns returns the column/value pairs of the present fields, ready for an UPDATE.
func (p ProductPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.Category != nil {
		cols["category"] = *p.Category
	}
	if p.Price != nil {
		cols["price"] = *p.Price
	}
	if p.Rating != nil {
		cols["rating"] = *p.Rating
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.ImageURL != nil {
		cols["image_url"] = *p.ImageURL
	}
	return cols
}
