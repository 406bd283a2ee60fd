package repositorycache

import (
	"net/url"
	"testing"

	"github.com/goliatone/go-donation-cache/cache"
)

func TestKeyBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  cache.Key
		want string
	}{
		{"object", ObjectKey(cache.TagCollect, "shelter"), "collect_object_shelter"},
		{"retrieve", RetrieveKey(cache.TagCollect, "shelter"), "collect_retrieve_shelter"},
		{"queryset", QuerysetKey(cache.TagCollect), "collect_queryset"},
		{"scoped queryset", QuerysetKey(cache.TagPayment, "u1"), "payment_queryset_u1"},
		{"empty list", ListKey(cache.TagOrganization, nil), "organization_list_all"},
		{"reference list", ListKey(cache.TagDefaultCover, url.Values{}), "default_cover_list_all"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.Name != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got.Name)
			}
		})
	}
}

func TestListKey_ParameterOrder(t *testing.T) {
	a := ListKey(cache.TagOrganization, url.Values{
		"region":  {"spb", "moscow"},
		"problem": {"animals"},
	})
	b := ListKey(cache.TagOrganization, url.Values{
		"problem": {"animals"},
		"region":  {"moscow", "spb"},
	})
	c := ListKey(cache.TagOrganization, url.Values{"problem": {"elderly"}})

	if a != b {
		t.Errorf("reordered params must share a key: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different params must not share a key: %s", a)
	}
	if !ListPrefix(cache.TagOrganization).Covers(a.Name) {
		t.Errorf("list prefix must cover %s", a)
	}
	if cache.TagOrganization.Prefix().Covers(a.Name) == false {
		t.Errorf("tag prefix must cover %s", a)
	}
}

func TestLookupKeys(t *testing.T) {
	keys := LookupKeys(cache.TagCollect, "shelter")
	if len(keys) != 2 || keys[0].Name != "collect_object_shelter" || keys[1].Name != "collect_retrieve_shelter" {
		t.Errorf("unexpected keys %v", keys)
	}
	for _, k := range keys {
		if k.Tag != cache.TagCollect {
			t.Errorf("key %s owned by %s", k, k.Tag)
		}
	}
}
