package enums

import "fmt"

// ProductType is the catalog classification of a product.
type ProductType string

const (
	ProductTypeApparel     ProductType = "apparel"
	ProductTypeFootwear    ProductType = "footwear"
	ProductTypeAccessories ProductType = "accessories"
)

var validProductTypes = []ProductType{
	ProductTypeApparel,
	ProductTypeFootwear,
	ProductTypeAccessories,
}

// String implements fmt.Stringer.
func (p ProductType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductType.
func (p ProductType) IsValid() bool {
	for _, candidate := range validProductTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductType converts raw input into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	for _, candidate := range validProductTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product type %q", value)
}
