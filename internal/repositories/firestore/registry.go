// Package firestore implements repositories.Registry on Cloud Firestore.
// Real-time listeners provide the change feed.
package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/almarpuit/site/internal/platform/firestore"
	"github.com/almarpuit/site/internal/repositories"
)

const (
	sectionsCollection     = "sections"
	translationsCollection = "translations"
	imagesCollection       = "images"
	milestonesCollection   = "milestone_cards"
	requirementsCollection = "product_requirements"
	settingsCollection     = "settings"
)

// Registry is a repositories.Registry backed by Firestore.
type Registry struct {
	provider *pfirestore.Provider
	now      func() time.Time
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wraps the provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires firestore provider")
	}
	return &Registry{provider: provider, now: time.Now}, nil
}

func (r *Registry) Close(context.Context) error { return r.provider.Close() }

func (r *Registry) Sections() repositories.SectionRepository         { return sectionRepo{r} }
func (r *Registry) Translations() repositories.TranslationRepository { return translationRepo{r} }
func (r *Registry) Images() repositories.ImageRepository             { return imageRepo{r} }
func (r *Registry) Milestones() repositories.MilestoneRepository     { return milestoneRepo{r} }
func (r *Registry) Requirements() repositories.RequirementRepository { return requirementRepo{r} }
func (r *Registry) Settings() repositories.SettingsRepository        { return settingsRepo{r} }
func (r *Registry) Changes() repositories.ChangeFeed                 { return changeFeed{r} }
func (r *Registry) Health() repositories.HealthRepository            { return r }

// Ping reads a document to prove the client can reach Firestore. A missing
// document is a healthy answer.
func (r *Registry) Ping(ctx context.Context) error {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(settingsCollection).Doc("_health").Get(ctx)
	if err != nil {
		wrapped := pfirestore.WrapError("health.ping", err)
		if repositories.IsNotFound(wrapped) {
			return nil
		}
		return wrapped
	}
	return nil
}

func (r *Registry) client(ctx context.Context) (*firestore.Client, error) {
	return r.provider.Client(ctx)
}

func (r *Registry) timestamp() time.Time {
	return r.now().UTC()
}

// touch bumps the section's updatedAt inside a transaction.
func touch(tx *firestore.Transaction, client *firestore.Client, sectionID string, at time.Time) error {
	return tx.Update(client.Collection(sectionsCollection).Doc(sectionID), []firestore.Update{
		{Path: "updatedAt", Value: at},
	})
}
