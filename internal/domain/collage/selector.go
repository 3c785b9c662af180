package collage

import "strings"

// sizePriority is the order in which tagged variants are preferred.
var sizePriority = []SizeTag{SizeExtraLarge, SizeLarge, SizeMedium, SizeSmall}

// SelectImageURL picks the best URL from a variant set.
// Tagged variants are tried largest first; otherwise the first non-blank URL in set order wins.
// Returns "" when nothing usable exists.
func SelectImageURL(variants ImageVariantSet) string {
	for _, size := range sizePriority {
		for _, v := range variants {
			if v.Size == size && strings.TrimSpace(v.URL) != "" {
				return v.URL
			}
		}
	}

	for _, v := range variants {
		if strings.TrimSpace(v.URL) != "" {
			return v.URL
		}
	}

	return ""
}
