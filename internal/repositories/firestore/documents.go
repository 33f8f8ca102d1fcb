package firestore

import (
	"strings"
	"time"

	"github.com/almarpuit/site/internal/domain"
)

type sectionDocument struct {
	Key       string    `firestore:"key"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type translationDocument struct {
	SectionID string    `firestore:"sectionId"`
	Key       string    `firestore:"key"`
	ET        string    `firestore:"et"`
	EN        string    `firestore:"en"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type imageDocument struct {
	SectionID string    `firestore:"sectionId"`
	Key       string    `firestore:"key"`
	URL       string    `firestore:"url"`
	AltText   *string   `firestore:"altText"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type milestoneDocument struct {
	SectionID     string    `firestore:"sectionId"`
	Label         string    `firestore:"label"`
	DescriptionET string    `firestore:"descriptionEt"`
	DescriptionEN string    `firestore:"descriptionEn"`
	SortOrder     int       `firestore:"sortOrder"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

type requirementDocument struct {
	SectionID string         `firestore:"sectionId"`
	TitleET   string         `firestore:"titleEt"`
	TitleEN   string         `firestore:"titleEn"`
	Items     []itemDocument `firestore:"items"`
	CreatedAt time.Time      `firestore:"createdAt"`
	UpdatedAt time.Time      `firestore:"updatedAt"`
}

type itemDocument struct {
	ET string `firestore:"et"`
	EN string `firestore:"en"`
}

type settingDocument struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// pairID derives the document id that makes (sectionID, key) unique. A slash
// would split the document path, so it is replaced.
func pairID(sectionID, key string) string {
	return sectionID + "__" + strings.ReplaceAll(key, "/", "_")
}

func itemsToDocument(items []domain.Text) []itemDocument {
	out := make([]itemDocument, len(items))
	for i, item := range items {
		out[i] = itemDocument{ET: item.ET, EN: item.EN}
	}
	return out
}

func itemsFromDocument(items []itemDocument) []domain.Text {
	out := make([]domain.Text, len(items))
	for i, item := range items {
		out[i] = domain.Text{ET: item.ET, EN: item.EN}
	}
	return out
}
