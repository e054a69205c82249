package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/steamcity/iot-platform/internal/docstore"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides CRUD over one collection of documents addressed by
// their business id. It holds no state besides the store handle and is
// safe for concurrent use.
type Registry struct {
	kind   Kind
	store  docstore.Store
	logger Logger
	now    func() docstore.Time
}

// New creates a registry serving kind from store.
func New(kind Kind, store docstore.Store) *Registry {
	return &Registry{
		kind:   kind,
		store:  store,
		logger: noopLogger{},
		now:    docstore.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Kind returns the entity kind served.
func (r *Registry) Kind() Kind {
	return r.kind
}

// List returns the documents matching the kind's filter parameters present
// in query. Parameters that are absent or empty do not constrain the result.
func (r *Registry) List(ctx context.Context, query url.Values) ([]docstore.Document, error) {
	f := docstore.NewFilter()
	for _, p := range r.kind.Filters {
		f.EqIfSet(p.Field, query.Get(p.Param))
	}

	docs, err := r.store.Find(ctx, r.kind.Collection, f, docstore.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", r.kind.Collection, err)
	}
	return docs, nil
}

// Get returns the document with the given business id.
func (r *Registry) Get(ctx context.Context, id string) (docstore.Document, error) {
	doc, err := r.store.FindOne(ctx, r.kind.Collection, byID(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, r.kind.notFound()
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", r.kind.Collection, id, err)
	}
	return doc, nil
}

// Create validates and stores a new document, stamping created_at and
// updated_at. The stored document is returned.
func (r *Registry) Create(ctx context.Context, doc docstore.Document) (docstore.Document, error) {
	if r.kind.missingRequired(doc) {
		return nil, &Error{Err: ErrValidation, Message: r.kind.RequiredMessage}
	}

	_, err := r.store.FindOne(ctx, r.kind.Collection, docstore.NewFilter().Eq("id", doc["id"]))
	switch {
	case err == nil:
		return nil, r.kind.duplicate()
	case !errors.Is(err, docstore.ErrNotFound):
		return nil, fmt.Errorf("checking %s id: %w", r.kind.Collection, err)
	}

	doc = doc.Without(docstore.IDField)
	r.kind.fillAliases(doc)
	now := r.now()
	doc["created_at"] = now
	doc["updated_at"] = now

	stored, err := r.store.Insert(ctx, r.kind.Collection, doc)
	if errors.Is(err, docstore.ErrDuplicate) {
		// Lost a race with a concurrent create of the same id.
		return nil, r.kind.duplicate()
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", r.kind.Collection, err)
	}

	r.logger.Info("document created", "collection", r.kind.Collection, "id", doc["id"])
	return stored, nil
}

// Update merges patch into the document with the given id and returns the
// result. The id, _id and created_at fields cannot be changed; updated_at
// is refreshed. Nothing is created when the id is unknown.
func (r *Registry) Update(ctx context.Context, id string, patch docstore.Document) (docstore.Document, error) {
	patch = patch.Without("id", docstore.IDField, "created_at")
	r.kind.fillAliases(patch)
	patch["updated_at"] = r.now()

	doc, err := r.store.Update(ctx, r.kind.Collection, byID(id), patch)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, r.kind.notFound()
	}
	if err != nil {
		return nil, fmt.Errorf("updating %s %s: %w", r.kind.Collection, id, err)
	}

	r.logger.Debug("document updated", "collection", r.kind.Collection, "id", id)
	return doc, nil
}

// Delete removes the document with the given id.
func (r *Registry) Delete(ctx context.Context, id string) error {
	n, err := r.store.Delete(ctx, r.kind.Collection, byID(id))
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", r.kind.Collection, id, err)
	}
	if n == 0 {
		return r.kind.notFound()
	}

	r.logger.Info("document deleted", "collection", r.kind.Collection, "id", id)
	return nil
}

func byID(id string) *docstore.Filter {
	return docstore.NewFilter().Eq("id", id)
}
