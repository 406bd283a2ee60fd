package donations

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-donation-cache/aggregate"
	"github.com/goliatone/go-donation-cache/cache"
	"github.com/goliatone/go-donation-cache/notify"
	rc "github.com/goliatone/go-donation-cache/repositorycache"
	"github.com/goliatone/go-donation-cache/store"
)

// CollectInput creates a collect. Organization and Occasion are slugs.
type CollectInput struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Organization   string     `json:"organization"`
	Occasion       string     `json:"occasion"`
	RequiredAmount *int64     `json:"required_amount"`
	URLVideo       *string    `json:"url_video"`
	CloseDatetime  *time.Time `json:"close_datetime"`

	UserID uuid.UUID `json:"-"`
	Email  string    `json:"-"`
}

// CollectUpdate changes the non-nil fields of a collect.
type CollectUpdate struct {
	Name           *string    `json:"name"`
	Description    *string    `json:"description"`
	RequiredAmount *int64     `json:"required_amount"`
	URLVideo       *string    `json:"url_video"`
	CloseDatetime  *time.Time `json:"close_datetime"`
}

// CollectService manages collects. Reads are cached under the collect tag;
// every write drops that tag.
type CollectService struct {
	options
	collects      *store.CollectStore
	organizations *store.OrganizationStore
	occasions     *store.ReferenceStore[*store.Occasion]
	results       *rc.ResultCache
	aggregates    *aggregate.Cache
}

// NewCollectService creates a collect service.
func NewCollectService(
	collects *store.CollectStore,
	organizations *store.OrganizationStore,
	occasions *store.ReferenceStore[*store.Occasion],
	results *rc.ResultCache,
	aggregates *aggregate.Cache,
	opts ...Option,
) *CollectService {
	return &CollectService{
		options:       newOptions(opts),
		collects:      collects,
		organizations: organizations,
		occasions:     occasions,
		results:       results,
		aggregates:    aggregates,
	}
}

func (s *CollectService) writeScopes() []rc.Scope[*store.Collect] {
	return []rc.Scope[*store.Collect]{
		rc.TagScope[*store.Collect](cache.TagCollect),
		rc.LookupScope(cache.TagCollect, func(c *store.Collect) string { return c.Slug }),
	}
}

func (s *CollectService) validateInput(in *CollectInput) error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Required),
		validation.Field(&in.Organization, validation.Required),
		validation.Field(&in.Occasion, validation.Required),
		validation.Field(&in.RequiredAmount, optionalAmountRules()...),
		validation.Field(&in.URLVideo, videoURLRule()),
		validation.Field(&in.CloseDatetime, closeDateRule(s.now())),
	)
}

func (s *CollectService) validateUpdate(in *CollectUpdate) error {
	return validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&in.RequiredAmount, optionalAmountRules()...),
		validation.Field(&in.URLVideo, videoURLRule()),
		validation.Field(&in.CloseDatetime, closeDateRule(s.now())),
	)
}

// Create validates in, stores a new active collect, drops the collect tag
// and notifies the creator.
func (s *CollectService) Create(ctx context.Context, in CollectInput) (*CollectView, error) {
	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	org, err := s.organizations.GetBySlug(ctx, in.Organization)
	if err != nil {
		return nil, referenceError(err, "organization", ErrUnknownOrganization)
	}
	occasion, err := s.occasions.GetBySlug(ctx, in.Occasion)
	if err != nil {
		return nil, referenceError(err, "occasion", ErrUnknownOccasion)
	}

	collect := &store.Collect{
		Slug:           Slugify(in.Name),
		Name:           strings.TrimSpace(in.Name),
		Description:    in.Description,
		OrganizationID: org.ID,
		OccasionID:     occasion.ID,
		UserID:         in.UserID,
		RequiredAmount: in.RequiredAmount,
		CloseDatetime:  in.CloseDatetime,
	}
	if in.URLVideo != nil && *in.URLVideo != "" {
		normalized, _ := NormalizeVideoURL(*in.URLVideo)
		collect.URLVideo = &normalized
	}

	created, err := rc.Run(ctx, s.results.Invalidator(), func(ctx context.Context) (*store.Collect, error) {
		return s.collects.Create(ctx, collect)
	}, s.writeScopes()...)
	if err != nil {
		return nil, err
	}

	s.logger.Info("collect created",
		zap.String("collect_id", created.ID.String()),
		zap.String("slug", created.Slug),
	)
	s.notify(ctx, notify.Message{
		Subject:    notify.SubjectCollectCreated,
		Body:       fmt.Sprintf("Collect %q created.", created.Name),
		Recipients: recipients(in.Email),
		Key:        created.ID.String(),
		CreatedAt:  s.now().UTC(),
	})

	return s.view(ctx, created)
}

// Update applies in to the collect with slug. Only its creator may change it.
func (s *CollectService) Update(ctx context.Context, slug string, userID uuid.UUID, in CollectUpdate) (*CollectView, error) {
	if err := s.validateUpdate(&in); err != nil {
		return nil, err
	}

	current, err := s.collects.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, ErrNotOwner
	}

	if in.Name != nil {
		current.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		current.Description = *in.Description
	}
	if in.RequiredAmount != nil {
		current.RequiredAmount = in.RequiredAmount
	}
	if in.URLVideo != nil {
		if *in.URLVideo == "" {
			current.URLVideo = nil
		} else {
			normalized, _ := NormalizeVideoURL(*in.URLVideo)
			current.URLVideo = &normalized
		}
	}
	if in.CloseDatetime != nil {
		current.CloseDatetime = in.CloseDatetime
	}

	updated, err := rc.Run(ctx, s.results.Invalidator(), func(ctx context.Context) (*store.Collect, error) {
		return s.collects.Update(ctx, current)
	}, s.writeScopes()...)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, updated)
}

// Close deactivates the collect. Closed collects keep their payments and
// stay readable.
func (s *CollectService) Close(ctx context.Context, slug string, userID uuid.UUID) error {
	current, err := s.collects.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if current.UserID != userID {
		return ErrNotOwner
	}
	_, err = rc.Run(ctx, s.results.Invalidator(), func(ctx context.Context) (*store.Collect, error) {
		return s.collects.Close(ctx, slug)
	}, s.writeScopes()...)
	return err
}

// Get returns the collect with slug and its aggregates.
func (s *CollectService) Get(ctx context.Context, slug string) (*CollectView, error) {
	collect, err := rc.ReadThrough(ctx, s.results, rc.RetrieveKey(cache.TagCollect, slug), func(ctx context.Context) (*store.Collect, error) {
		return s.collects.GetBySlug(ctx, slug)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, collect)
}

// List returns one page of collects for params and the total count. The page
// is cached under the normalized params.
func (s *CollectService) List(ctx context.Context, params url.Values) ([]*CollectView, int, error) {
	records, total, err := rc.ReadList(ctx, s.results, cache.TagCollect, params, func(ctx context.Context) ([]*store.Collect, int, error) {
		filter := store.CollectFilter{
			ActiveOnly: boolParam(params, ParamActive),
			Page:       pageFromParams(params),
		}
		if slug := params.Get(ParamOrganization); slug != "" {
			org, err := s.organizations.GetBySlug(ctx, slug)
			if errors.Is(err, store.ErrNotFound) {
				return []*store.Collect{}, 0, nil
			}
			if err != nil {
				return nil, 0, err
			}
			filter.OrganizationID = org.ID
		}
		return s.collects.List(ctx, filter)
	})
	if err != nil {
		return nil, 0, err
	}

	views := make([]*CollectView, 0, len(records))
	for _, c := range records {
		v, err := s.view(ctx, c)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, v)
	}
	return views, total, nil
}

func (s *CollectService) view(ctx context.Context, c *store.Collect) (*CollectView, error) {
	sum, err := s.aggregates.GetOrCompute(ctx, aggregate.KindCollect, c.ID, aggregate.MetricSumAmount)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "sum of collect %s", c.Slug)
	}
	donors, err := s.aggregates.GetOrCompute(ctx, aggregate.KindCollect, c.ID, aggregate.MetricDonorCount)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "donors of collect %s", c.Slug)
	}
	return &CollectView{Collect: c, SumAmount: sum.Int(), DonorCount: donors.N}, nil
}

func (o options) notify(ctx context.Context, msg notify.Message) {
	if err := o.notifier.Notify(ctx, msg); err != nil {
		o.logger.Warn("notification not sent",
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
	}
}

func recipients(email string) []string {
	if email == "" {
		return nil
	}
	return []string{email}
}

// referenceError turns a missing referenced record into a field error.
func referenceError(err error, field string, missing error) error {
	if errors.Is(err, store.ErrNotFound) {
		return validation.Errors{field: missing}
	}
	return err
}
