package browsertest

import (
	"fmt"

	"github.com/xkilldash9x/shelfcheck/internal/browser"
)

// ProductPage returns a storefront page that passes every check: all
// product features present, the given number of loaded images with alt
// text, and no errors.
func ProductPage(images int) *Site {
	site := &Site{
		Title: "Deluxe Widget | Shop",
		Elements: map[string]*browser.Element{
			`h1.product-title`:         {Text: "Deluxe Widget", Visible: true, Enabled: true},
			`.price`:                   {Text: "$19.99", Visible: true, Enabled: true},
			`.product-description`:     {Text: "A widget for every occasion, in three colors.", Visible: true},
			`button[name="add"]`:       {Text: "Add to cart", Visible: true, Enabled: true},
			`select[name*="variant"]`:  {Visible: true, Enabled: true},
			`meta[name="description"]`: {Attrs: map[string]string{"content": "Buy the Deluxe Widget."}},
		},
	}
	for i := 0; i < images; i++ {
		site.Images = append(site.Images, browser.Image{
			Src:           fmt.Sprintf("https://cdn.shop.test/widget-%d.jpg", i+1),
			Alt:           fmt.Sprintf("Deluxe Widget view %d", i+1),
			Width:         300,
			Height:        300,
			NaturalWidth:  600,
			NaturalHeight: 600,
			Complete:      true,
		})
	}
	return site
}
