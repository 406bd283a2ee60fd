package donations

import (
	"context"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/goliatone/go-donation-cache/aggregate"
	"github.com/goliatone/go-donation-cache/cache"
	rc "github.com/goliatone/go-donation-cache/repositorycache"
	"github.com/goliatone/go-donation-cache/store"
)

// OrganizationInput creates or updates an organization. Problems and Regions
// are slugs; nil leaves the links of an updated organization untouched.
type OrganizationInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Problems    []string `json:"problems"`
	Regions     []string `json:"regions"`
}

// OrganizationService lists organizations with filters and lets
// administrators curate them.
type OrganizationService struct {
	options
	organizations *store.OrganizationStore
	problems      *store.ReferenceStore[*store.Problem]
	regions       *store.ReferenceStore[*store.Region]
	results       *rc.ResultCache
	aggregates    *aggregate.Cache
}

// NewOrganizationService creates an organization service.
func NewOrganizationService(
	organizations *store.OrganizationStore,
	problems *store.ReferenceStore[*store.Problem],
	regions *store.ReferenceStore[*store.Region],
	results *rc.ResultCache,
	aggregates *aggregate.Cache,
	opts ...Option,
) *OrganizationService {
	return &OrganizationService{
		options:       newOptions(opts),
		organizations: organizations,
		problems:      problems,
		regions:       regions,
		results:       results,
		aggregates:    aggregates,
	}
}

func (s *OrganizationService) writeScopes() []rc.Scope[*store.Organization] {
	return []rc.Scope[*store.Organization]{
		rc.TagScope[*store.Organization](cache.TagOrganization),
		rc.LookupScope(cache.TagOrganization, func(o *store.Organization) string { return o.Slug }),
	}
}

// List returns one page of organizations matching params: name (contains,
// case insensitive), problems and regions (slugs, any of), limit and offset.
func (s *OrganizationService) List(ctx context.Context, params url.Values) ([]*OrganizationView, int, error) {
	records, total, err := rc.ReadList(ctx, s.results, cache.TagOrganization, params, func(ctx context.Context) ([]*store.Organization, int, error) {
		return s.organizations.List(ctx, organizationFilter(params))
	})
	if err != nil {
		return nil, 0, err
	}
	views := make([]*OrganizationView, 0, len(records))
	for _, org := range records {
		v, err := s.view(ctx, org)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, v)
	}
	return views, total, nil
}

// Get returns the organization with slug and its donated total.
func (s *OrganizationService) Get(ctx context.Context, slug string) (*OrganizationView, error) {
	org, err := rc.ReadThrough(ctx, s.results, rc.RetrieveKey(cache.TagOrganization, slug), func(ctx context.Context) (*store.Organization, error) {
		return s.organizations.GetBySlug(ctx, slug)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, org)
}

// Create stores a new organization linked to the given problems and regions.
func (s *OrganizationService) Create(ctx context.Context, in OrganizationInput) (*OrganizationView, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	problemIDs, regionIDs, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	org := &store.Organization{
		Slug:        Slugify(in.Name),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
	}
	created, err := rc.Run(ctx, s.results.Invalidator(), func(ctx context.Context) (*store.Organization, error) {
		return s.organizations.Create(ctx, org, problemIDs, regionIDs)
	}, s.writeScopes()...)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, created)
}

// Update changes the organization with slug.
func (s *OrganizationService) Update(ctx context.Context, slug string, in OrganizationInput) (*OrganizationView, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	org, err := s.organizations.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	problemIDs, regionIDs, err := s.resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	org.Name = strings.TrimSpace(in.Name)
	org.Description = in.Description
	org.Problems, org.Regions = nil, nil

	updated, err := rc.Run(ctx, s.results.Invalidator(), func(ctx context.Context) (*store.Organization, error) {
		return s.organizations.Update(ctx, org, problemIDs, regionIDs)
	}, s.writeScopes()...)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, updated)
}

func (s *OrganizationService) validate(in *OrganizationInput) error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Required),
	)
}

// resolve maps slugs to ids. nil slices stay nil so Update keeps links.
func (s *OrganizationService) resolve(ctx context.Context, in OrganizationInput) ([]uuid.UUID, []uuid.UUID, error) {
	problemIDs, err := resolveSlugs(ctx, s.problems, in.Problems)
	if err != nil {
		return nil, nil, referenceError(err, "problems", ErrUnknownReference)
	}
	regionIDs, err := resolveSlugs(ctx, s.regions, in.Regions)
	if err != nil {
		return nil, nil, referenceError(err, "regions", ErrUnknownReference)
	}
	return problemIDs, regionIDs, nil
}

func resolveSlugs[T store.Record](ctx context.Context, refs *store.ReferenceStore[T], slugs []string) ([]uuid.UUID, error) {
	if slugs == nil {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(slugs))
	for _, slug := range slugs {
		record, err := refs.GetBySlug(ctx, slug)
		if err != nil {
			return nil, err
		}
		ids = append(ids, record.GetID())
	}
	return ids, nil
}

func (s *OrganizationService) view(ctx context.Context, org *store.Organization) (*OrganizationView, error) {
	sum, err := s.aggregates.GetOrCompute(ctx, aggregate.KindOrganization, org.ID, aggregate.MetricSumAmount)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "sum of organization %s", org.Slug)
	}
	return &OrganizationView{Organization: org, SumAmount: sum.Int()}, nil
}
