package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-donation-cache/payments"
)

// Organization is a non-profit publishing collects.
type Organization struct {
	bun.BaseModel `bun:"table:organizations,alias:o"`

	ID          uuid.UUID `bun:"id,pk,type:varchar(36)" json:"id"`
	Slug        string    `bun:"slug,unique,notnull" json:"slug"`
	Name        string    `bun:"name,unique,notnull" json:"name"`
	Description string    `bun:"description,notnull" json:"description"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`

	Problems []Problem `bun:"m2m:organization_problems,join:Organization=Problem" json:"problems,omitempty"`
	Regions  []Region  `bun:"m2m:organization_regions,join:Organization=Region" json:"regions,omitempty"`
}

// Collect is a fundraising campaign. It is closed by clearing IsActive and is
// never deleted while payments reference it.
type Collect struct {
	bun.BaseModel `bun:"table:collects,alias:c"`

	ID             uuid.UUID  `bun:"id,pk,type:varchar(36)" json:"id"`
	Slug           string     `bun:"slug,unique,notnull" json:"slug"`
	Name           string     `bun:"name,unique,notnull" json:"name"`
	Description    string     `bun:"description,notnull" json:"description"`
	OrganizationID uuid.UUID  `bun:"organization_id,type:varchar(36),notnull" json:"organization_id"`
	OccasionID     uuid.UUID  `bun:"occasion_id,type:varchar(36),notnull" json:"occasion_id"`
	UserID         uuid.UUID  `bun:"user_id,type:varchar(36),notnull" json:"user_id"`
	IsActive       bool       `bun:"is_active,notnull" json:"is_active"`
	RequiredAmount *int64     `bun:"required_amount" json:"required_amount,omitempty"`
	URLVideo       *string    `bun:"url_video" json:"url_video,omitempty"`
	CloseDatetime  *time.Time `bun:"close_datetime" json:"close_datetime,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Payment is a donation to a collect.
type Payment struct {
	bun.BaseModel `bun:"table:payments,alias:p"`

	ID         uuid.UUID       `bun:"id,pk,type:varchar(36)" json:"id"`
	CollectID  uuid.UUID       `bun:"collect_id,type:varchar(36),notnull" json:"collect_id"`
	UserID     uuid.UUID       `bun:"user_id,type:varchar(36),notnull" json:"user_id"`
	Amount     int64           `bun:"amount,notnull" json:"amount"`
	Comment    string          `bun:"comment" json:"comment,omitempty"`
	Status     payments.Status `bun:"status,notnull" json:"status"`
	ExternalID string          `bun:"external_id" json:"external_id,omitempty"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Occasion is the reason a collect was started.
type Occasion struct {
	bun.BaseModel `bun:"table:occasions,alias:oc"`

	ID   uuid.UUID `bun:"id,pk,type:varchar(36)" json:"id"`
	Slug string    `bun:"slug,unique,notnull" json:"slug"`
	Name string    `bun:"name,unique,notnull" json:"name"`
}

// Problem is a cause an organization works on.
type Problem struct {
	bun.BaseModel `bun:"table:problems,alias:pr"`

	ID   uuid.UUID `bun:"id,pk,type:varchar(36)" json:"id"`
	Slug string    `bun:"slug,unique,notnull" json:"slug"`
	Name string    `bun:"name,unique,notnull" json:"name"`
}

// Region is a place an organization operates in.
type Region struct {
	bun.BaseModel `bun:"table:regions,alias:r"`

	ID   uuid.UUID `bun:"id,pk,type:varchar(36)" json:"id"`
	Slug string    `bun:"slug,unique,notnull" json:"slug"`
	Name string    `bun:"name,unique,notnull" json:"name"`
}

// DefaultCover is a stock cover offered for new collects.
type DefaultCover struct {
	bun.BaseModel `bun:"table:default_covers,alias:dc"`

	ID   uuid.UUID `bun:"id,pk,type:varchar(36)" json:"id"`
	Slug string    `bun:"slug,unique,notnull" json:"slug"`
	Name string    `bun:"name,unique,notnull" json:"name"`
}

// OrganizationProblem links organizations and problems.
type OrganizationProblem struct {
	bun.BaseModel `bun:"table:organization_problems,alias:op"`

	OrganizationID uuid.UUID     `bun:"organization_id,pk,type:varchar(36)"`
	Organization   *Organization `bun:"rel:belongs-to,join:organization_id=id"`
	ProblemID      uuid.UUID     `bun:"problem_id,pk,type:varchar(36)"`
	Problem        *Problem      `bun:"rel:belongs-to,join:problem_id=id"`
}

// OrganizationRegion links organizations and regions.
type OrganizationRegion struct {
	bun.BaseModel `bun:"table:organization_regions,alias:orr"`

	OrganizationID uuid.UUID     `bun:"organization_id,pk,type:varchar(36)"`
	Organization   *Organization `bun:"rel:belongs-to,join:organization_id=id"`
	RegionID       uuid.UUID     `bun:"region_id,pk,type:varchar(36)"`
	Region         *Region       `bun:"rel:belongs-to,join:region_id=id"`
}

// Record is implemented by every model addressed by id and slug.
type Record interface {
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	GetSlug() string
}

func (m *Organization) GetID() uuid.UUID { return m.ID }
func (m *Organization) SetID(id uuid.UUID) { m.ID = id }
func (m *Organization) GetSlug() string { return m.Slug }
func (m *Collect) GetID() uuid.UUID { return m.ID }
func (m *Collect) SetID(id uuid.UUID) { m.ID = id }
func (m *Collect) GetSlug() string { return m.Slug }
func (m *Occasion) GetID() uuid.UUID { return m.ID }
func (m *Occasion) SetID(id uuid.UUID) { m.ID = id }
func (m *Occasion) GetSlug() string { return m.Slug }
func (m *Problem) GetID() uuid.UUID { return m.ID }
func (m *Problem) SetID(id uuid.UUID) { m.ID = id }
func (m *Problem) GetSlug() string { return m.Slug }
func (m *Region) GetID() uuid.UUID { return m.ID }
func (m *Region) SetID(id uuid.UUID) { m.ID = id }
func (m *Region) GetSlug() string { return m.Slug }
func (m *DefaultCover) GetID() uuid.UUID { return m.ID }
func (m *DefaultCover) SetID(id uuid.UUID) { m.ID = id }
func (m *DefaultCover) GetSlug() string { return m.Slug }
