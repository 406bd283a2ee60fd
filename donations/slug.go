package donations

import (
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Slugify transliterates name to a lowercase ASCII slug. A name without any
// letters or digits gets a random slug. The store adds a numeric suffix when
// the slug is already taken.
func Slugify(name string) string {
	if s := slug.Make(name); s != "" {
		return s
	}
	return uuid.NewString()[:8]
}
