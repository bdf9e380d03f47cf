package registry

import (
	"fmt"

	"golang.org/x/net/html"
)

// MissingShopName stands in for a shop name the page does not show
const MissingShopName = "상호명 없음"

// ShopNamePolicy decides what happens when the shop name element is missing
type ShopNamePolicy string

const (
	// ShopNamePlaceholder keeps the record and uses MissingShopName
	ShopNamePlaceholder ShopNamePolicy = "placeholder"
	// ShopNameRequired drops the record
	ShopNameRequired ShopNamePolicy = "require"
)

// ParseShopNamePolicy validates a policy name from configuration
func ParseShopNamePolicy(s string) (ShopNamePolicy, error) {
	switch p := ShopNamePolicy(s); p {
	case ShopNamePlaceholder, ShopNameRequired:
		return p, nil
	case "":
		return ShopNamePlaceholder, nil
	default:
		return "", fmt.Errorf("invalid shop name policy %q (valid: %s, %s)", s, ShopNamePlaceholder, ShopNameRequired)
	}
}

// Fixed locations on a registry article page
var (
	shopNamePath = MustParsePath("/html/body/section[2]/div/div/div[1]/div[1]/div/div[1]/div/a/h1")

	taxonomyPaths = []ElementPath{
		MustParsePath("/html/body/section[2]/div/div/div[1]/div[1]/div/table/tbody/tr[2]/td"),
		MustParsePath("/html/body/section[2]/div/div/div[1]/div[1]/div/table/tbody/tr[4]/td"),
	}
)

// ParseRegistryPage reads the shop name and category taxonomy from a registry page.
// The error matches ErrElementNotFound when the page has no usable data.
func ParseRegistryPage(doc *html.Node, policy ShopNamePolicy) (*CategoryRecord, error) {
	shopName := MissingShopName
	if n, err := Locate(doc, shopNamePath); err == nil {
		shopName = Text(n)
	} else if policy == ShopNameRequired {
		return nil, err
	}

	block, err := FirstText(doc, HasAllLabels, taxonomyPaths...)
	if err != nil {
		return nil, err
	}

	return ParseTaxonomy(shopName, block), nil
}
