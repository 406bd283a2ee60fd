package donations

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-donation-cache/store"
)

// Query parameter names understood by the list operations.
const (
	ParamLimit        = "limit"
	ParamOffset       = "offset"
	ParamName         = "name"
	ParamProblems     = "problems"
	ParamRegions      = "regions"
	ParamOrganization = "organization"
	ParamActive       = "active"
)

func pageFromParams(params url.Values) store.Page {
	limit, _ := strconv.Atoi(params.Get(ParamLimit))
	offset, _ := strconv.Atoi(params.Get(ParamOffset))
	return store.Page{Limit: limit, Offset: offset}.Normalize()
}

// multiValue accepts both repeated parameters and comma separated lists.
func multiValue(params url.Values, name string) []string {
	var out []string
	for _, raw := range params[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func organizationFilter(params url.Values) store.OrganizationFilter {
	return store.OrganizationFilter{
		Name:     strings.TrimSpace(params.Get(ParamName)),
		Problems: multiValue(params, ParamProblems),
		Regions:  multiValue(params, ParamRegions),
		Page:     pageFromParams(params),
	}
}

func boolParam(params url.Values, name string) bool {
	b, _ := strconv.ParseBool(params.Get(name))
	return b
}
