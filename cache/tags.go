package cache

import (
	"fmt"
	"strings"
)

// Tag groups cache entries of one entity type. It is the unit of coarse
// invalidation: every key owned by a tag starts with "{tag}_".
type Tag uint8

const (
	TagCollect Tag = iota
	TagOrganization
	TagPayment
	TagProblem
	TagRegion
	TagOccasion
	TagDefaultCover
	TagAggregate

	tagCount
)

var tagNames = [tagCount]string{
	TagCollect:      "collect",
	TagOrganization: "organization",
	TagPayment:      "payment",
	TagProblem:      "problem",
	TagRegion:       "region",
	TagOccasion:     "occasion",
	TagDefaultCover: "default_cover",
	TagAggregate:    "aggregate",
}

// KeySeparator joins key segments.
const KeySeparator = "_"

// Tags returns every known tag.
func Tags() []Tag {
	out := make([]Tag, 0, tagCount)
	for t := Tag(0); t < tagCount; t++ {
		out = append(out, t)
	}
	return out
}

// ParseTag resolves a tag from its name.
func ParseTag(name string) (Tag, error) {
	for t := Tag(0); t < tagCount; t++ {
		if tagNames[t] == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("cache: unknown tag %q", name)
}

func (t Tag) valid() bool {
	return t < tagCount
}

func (t Tag) String() string {
	if !t.valid() {
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
	return tagNames[t]
}

// Key builds the key "{tag}_{part}_{part}...".
func (t Tag) Key(parts ...string) Key {
	return Key{Tag: t, Name: join(t, parts)}
}

// Prefix builds a prefix covering every key whose leading segments are parts.
// With no parts it covers the whole tag.
func (t Tag) Prefix(parts ...string) Prefix {
	return Prefix{Tag: t, Value: join(t, parts) + KeySeparator}
}

func join(t Tag, parts []string) string {
	var b strings.Builder
	b.WriteString(t.String())
	for _, p := range parts {
		b.WriteString(KeySeparator)
		b.WriteString(p)
	}
	return b.String()
}

// Key is a fully built cache key together with the tag that owns it.
type Key struct {
	Tag  Tag
	Name string
}

func (k Key) String() string {
	return k.Name
}

// Prefix is a key prefix owned by a tag.
type Prefix struct {
	Tag   Tag
	Value string
}

func (p Prefix) String() string {
	return p.Value
}

// Covers reports whether key falls under the prefix.
func (p Prefix) Covers(key string) bool {
	return strings.HasPrefix(key, p.Value)
}
