package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/almarpuit/site/internal/domain"
)

type sectionModel struct {
	bun.BaseModel `bun:"table:sections"`

	ID        string    `bun:"id,pk"`
	Key       string    `bun:"key,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (m sectionModel) toDomain() domain.Section {
	return domain.Section{ID: m.ID, Key: m.Key, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

type translationModel struct {
	bun.BaseModel `bun:"table:translations"`

	ID        string    `bun:"id,pk"`
	SectionID string    `bun:"section_id,notnull,unique:translations_section_key"`
	Key       string    `bun:"key,notnull,unique:translations_section_key"`
	ET        string    `bun:"et,notnull,default:''"`
	EN        string    `bun:"en,notnull,default:''"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (m translationModel) toDomain() domain.Translation {
	return domain.Translation{
		ID:        m.ID,
		SectionID: m.SectionID,
		Key:       m.Key,
		ET:        m.ET,
		EN:        m.EN,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type imageModel struct {
	bun.BaseModel `bun:"table:images"`

	ID        string    `bun:"id,pk"`
	SectionID string    `bun:"section_id,notnull,unique:images_section_key"`
	Key       string    `bun:"key,notnull,unique:images_section_key"`
	URL       string    `bun:"url,notnull"`
	AltText   *string   `bun:"alt_text"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (m imageModel) toDomain() domain.Image {
	return domain.Image{
		ID:        m.ID,
		SectionID: m.SectionID,
		Key:       m.Key,
		URL:       m.URL,
		AltText:   m.AltText,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type milestoneModel struct {
	bun.BaseModel `bun:"table:milestone_cards"`

	ID            string    `bun:"id,pk"`
	SectionID     string    `bun:"section_id,notnull"`
	Label         string    `bun:"label,notnull"`
	DescriptionET string    `bun:"description_et,notnull,default:''"`
	DescriptionEN string    `bun:"description_en,notnull,default:''"`
	SortOrder     int       `bun:"sort_order,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func (m milestoneModel) toDomain() domain.MilestoneCard {
	return domain.MilestoneCard{
		ID:            m.ID,
		SectionID:     m.SectionID,
		Label:         m.Label,
		DescriptionET: m.DescriptionET,
		DescriptionEN: m.DescriptionEN,
		SortOrder:     m.SortOrder,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

type requirementModel struct {
	bun.BaseModel `bun:"table:product_requirements"`

	ID        string        `bun:"id,pk"`
	SectionID string        `bun:"section_id,notnull,unique"`
	TitleET   string        `bun:"title_et,notnull,default:''"`
	TitleEN   string        `bun:"title_en,notnull,default:''"`
	Items     []domain.Text `bun:"items,type:jsonb,notnull"`
	CreatedAt time.Time     `bun:"created_at,notnull"`
	UpdatedAt time.Time     `bun:"updated_at,notnull"`
}

func (m requirementModel) toDomain() domain.ProductRequirement {
	items := m.Items
	if items == nil {
		items = []domain.Text{}
	}
	return domain.ProductRequirement{
		ID:        m.ID,
		SectionID: m.SectionID,
		TitleET:   m.TitleET,
		TitleEN:   m.TitleEN,
		Items:     items,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type settingModel struct {
	bun.BaseModel `bun:"table:settings"`

	Key       string          `bun:"key,pk"`
	Value     json.RawMessage `bun:"value,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

var schemaModels = []any{
	(*sectionModel)(nil),
	(*translationModel)(nil),
	(*imageModel)(nil),
	(*milestoneModel)(nil),
	(*requirementModel)(nil),
	(*settingModel)(nil),
}
