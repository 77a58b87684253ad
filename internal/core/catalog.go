package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	iofs "io/fs"

	"epdcore/internal/docstore"
	"epdcore/pkg/domain"
)

// Catalog is the product lookup collaborator backed by the persistent
// store, with an optional document store holding raw EPD source payloads
// keyed by product URI. Unknown URIs are hydrated from their source
// document on first access.
type Catalog struct {
	store domain.PersistentStore
	docs  docstore.Store
}

var _ ProductResolver = (*Catalog)(nil)

// NewCatalog constructs a catalog. docs may be nil, in which case lookup
// never falls back to source documents.
func NewCatalog(store domain.PersistentStore, docs docstore.Store) *Catalog {
	return &Catalog{store: store, docs: docs}
}

// ProductByURI resolves a stored product by its "<source>.<epdID>" URI.
// When the product is not yet persisted and a document store is
// configured, the raw EPD document under that URI is parsed and imported
// as a new product snapshot.
func (c *Catalog) ProductByURI(ctx context.Context, uri string) (Product, error) {
	if _, _, ok := domain.SplitURI(uri); !ok {
		return Product{}, fmt.Errorf("invalid product uri %q", uri)
	}
	if product, ok := c.store.GetProductByURI(uri); ok {
		return product, nil
	}
	if c.docs == nil {
		return Product{}, fmt.Errorf("product with uri %s not found", uri)
	}
	data, err := docstore.ReadDocument(ctx, c.docs, uri)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return Product{}, fmt.Errorf("product with uri %s not found", uri)
		}
		return Product{}, fmt.Errorf("load source document for %s: %w", uri, err)
	}
	epd := ParseEPD(data)
	if epd == nil {
		return Product{}, fmt.Errorf("source document for %s is not a valid epd", uri)
	}
	return c.ConvertEPDToProduct(ctx, *epd)
}

// ConvertEPDToProduct persists an inline EPD as a product snapshot. The
// operation deduplicates on EPD identity (id, version, source, metadata
// overrides): an existing matching snapshot is returned untouched.
func (c *Catalog) ConvertEPDToProduct(ctx context.Context, epd EPD) (Product, error) {
	if epd.ID == "" {
		return Product{}, fmt.Errorf("epd is missing an id")
	}
	var product Product
	_, err := c.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, existing := range tx.Snapshot().ListProducts() {
			if existing.SnapshotMatches(epd) {
				product = existing
				return nil
			}
		}
		snapshot := epd
		created, err := tx.CreateProduct(Product{
			Name:         epd.Name,
			DeclaredUnit: epd.DeclaredUnit,
			EPDID:        epd.ID,
			EPDVersion:   epd.Version,
			SourceName:   epd.Source.Name,
			SourceURL:    epd.Source.URL,
			EPD:          &snapshot,
		})
		if err != nil {
			return err
		}
		product = created
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

// ImportDocument stores a raw EPD document under the given product URI
// so later lookups can hydrate it. The document must parse as an EPD.
func (c *Catalog) ImportDocument(ctx context.Context, uri string, data []byte) (docstore.Info, error) {
	if c.docs == nil {
		return docstore.Info{}, fmt.Errorf("no document store configured")
	}
	if _, _, ok := domain.SplitURI(uri); !ok {
		return docstore.Info{}, fmt.Errorf("invalid product uri %q", uri)
	}
	if ParseEPD(data) == nil {
		return docstore.Info{}, fmt.Errorf("document for %s is not a valid epd", uri)
	}
	return c.docs.Put(ctx, uri, bytes.NewReader(data), docstore.PutOptions{ContentType: "application/json"})
}
