package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
)

// Document is a decoded snapshot together with its ID and server timestamps.
type Document[T any] struct {
	ID         string
	Data       T
	CreateTime time.Time
	UpdateTime time.Time
}

// QueryBuilder narrows a collection query: filters, ordering, offset, limit.
type QueryBuilder func(query firestore.Query) firestore.Query

// Collection is a typed view over one top-level collection. Documents are
// decoded with DataTo into T, so T carries the firestore struct tags.
type Collection[T any] struct {
	provider *Provider
	name     string
}

func NewCollection[T any](provider *Provider, name string) *Collection[T] {
	return &Collection[T]{provider: provider, name: strings.TrimSpace(name)}
}

// Name is the collection path, also used as the prefix of wrapped error ops.
func (c *Collection[T]) Name() string { return c.name }

// Ref returns the reference for id, for use inside transactions.
func (c *Collection[T]) Ref(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if strings.TrimSpace(id) == "" {
		return nil, WrapError(c.name+".ref", errors.New("document id is required"))
	}
	coll, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}
	return coll.Doc(id), nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (Document[T], error) {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return Document[T]{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return Document[T]{}, WrapError(c.name+".get", err)
	}
	return c.Decode(snap)
}

// Set overwrites the document stored under id.
func (c *Collection[T]) Set(ctx context.Context, id string, value T) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, value)
	return WrapError(c.name+".set", err)
}

// Query collects every document the built query returns.
func (c *Collection[T]) Query(ctx context.Context, build QueryBuilder) ([]Document[T], error) {
	var out []Document[T]
	err := c.Stream(ctx, build, func(doc Document[T]) error {
		out = append(out, doc)
		return nil
	})
	return out, err
}

// Stream decodes documents one at a time; an error from fn stops iteration and is returned as is.
func (c *Collection[T]) Stream(ctx context.Context, build QueryBuilder, fn func(Document[T]) error) error {
	query, err := c.query(ctx, build)
	if err != nil {
		return err
	}
	docs := query.Documents(ctx)
	defer docs.Stop()
	for {
		snap, err := docs.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return WrapError(c.name+".query", err)
		}
		doc, err := c.Decode(snap)
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}

// Count runs a server-side COUNT aggregation, so no documents are transferred.
func (c *Collection[T]) Count(ctx context.Context, build QueryBuilder) (int, error) {
	query, err := c.query(ctx, build)
	if err != nil {
		return 0, err
	}
	result, err := query.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, WrapError(c.name+".count", err)
	}
	value, ok := result["total"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("%s.count: unexpected aggregation result %T", c.name, result["total"])
	}
	return int(value.GetIntegerValue()), nil
}

func (c *Collection[T]) Decode(snap *firestore.DocumentSnapshot) (Document[T], error) {
	var data T
	if err := snap.DataTo(&data); err != nil {
		return Document[T]{}, fmt.Errorf("decode %s/%s: %w", c.name, snap.Ref.ID, err)
	}
	return Document[T]{ID: snap.Ref.ID, Data: data, CreateTime: snap.CreateTime, UpdateTime: snap.UpdateTime}, nil
}

func (c *Collection[T]) query(ctx context.Context, build QueryBuilder) (firestore.Query, error) {
	coll, err := c.ref(ctx)
	if err != nil {
		return firestore.Query{}, err
	}
	if build == nil {
		return coll.Query, nil
	}
	return build(coll.Query), nil
}

func (c *Collection[T]) ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c == nil || c.provider == nil || c.name == "" {
		return nil, errors.New("firestore: collection not configured")
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}
