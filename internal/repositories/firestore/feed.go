package firestore

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/almarpuit/site/internal/domain"
)

// changeFeed maps repositories.ChangeFeed onto Firestore snapshot listeners.
type changeFeed struct{ r *Registry }

var tableCollections = map[domain.Table]string{
	domain.TableSections:     sectionsCollection,
	domain.TableTranslations: translationsCollection,
	domain.TableImages:       imagesCollection,
	domain.TableMilestones:   milestonesCollection,
	domain.TableRequirements: requirementsCollection,
	domain.TableSettings:     settingsCollection,
}

// Subscribe starts a listener that outlives ctx's cancellation; call the
// returned function to stop it. The initial snapshot is not delivered.
func (f changeFeed) Subscribe(ctx context.Context, table domain.Table, filter string, fn func(domain.Change)) (func(), error) {
	collection, ok := tableCollections[table]
	if !ok {
		return nil, errors.New("firestore: unknown table " + string(table))
	}
	client, err := f.r.client(ctx)
	if err != nil {
		return nil, err
	}

	q := client.Collection(collection).Query
	if filter != "" {
		switch table {
		case domain.TableSections, domain.TableSettings:
			q = q.Where(firestore.DocumentID, "==", client.Collection(collection).Doc(filter))
		default:
			q = q.Where("sectionId", "==", filter)
		}
	}

	listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	it := q.Snapshots(listenCtx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		first := true
		for {
			snap, err := it.Next()
			if err != nil {
				if !errors.Is(err, iterator.Done) && status.Code(err) != codes.Canceled && listenCtx.Err() == nil {
					// The listener is gone; tell the subscriber so it refetches.
					fn(resyncChange(table, filter, f.r.timestamp()))
				}
				return
			}
			if first {
				first = false
				continue
			}
			for _, change := range snap.Changes {
				fn(toChange(table, change, f.r.timestamp()))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			it.Stop()
			wg.Wait()
		})
	}, nil
}

func toChange(table domain.Table, change firestore.DocumentChange, at time.Time) domain.Change {
	out := domain.Change{Table: table, Op: domain.ChangeUpdate, At: at}
	switch change.Kind {
	case firestore.DocumentAdded:
		out.Op = domain.ChangeInsert
	case firestore.DocumentRemoved:
		out.Op = domain.ChangeDelete
	}
	data := change.Doc.Data()
	switch table {
	case domain.TableSections:
		out.SectionID = change.Doc.Ref.ID
		out.Key, _ = data["key"].(string)
	case domain.TableSettings:
		out.Key = change.Doc.Ref.ID
	default:
		out.SectionID, _ = data["sectionId"].(string)
	}
	return out
}

func resyncChange(table domain.Table, filter string, at time.Time) domain.Change {
	out := domain.Change{Table: table, Op: domain.ChangeUpdate, At: at}
	if table == domain.TableSettings {
		out.Key = filter
	} else {
		out.SectionID = filter
	}
	return out
}
