package garment

import (
	"github.com/wabenzi/prethrift/internal/db"
	"github.com/wabenzi/prethrift/internal/domain/attribute"
)

// buildIndex declares the catalog schema: one tag field per attribute
// family, brand and price for structured filters, and an HNSW vector field
// per embedding modality.
func buildIndex(vectorDim int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	b := db.NewIndex(indexName()).Prefix(garmentPrefix())

	for _, family := range attribute.Families() {
		b.Tag(string(family))
	}

	// Brand values carry commas ("Dolce & Gabbana, Inc"), so tags split on |.
	b.TagSeparated(fieldBrand, "|")
	b.Numeric(fieldPrice)

	b.VectorHNSW(fieldTextVec, "text_vec", vectorDim, hnsw.M, hnsw.EFConstruct)
	b.VectorHNSW(fieldImageVec, "image_vec", vectorDim, hnsw.M, hnsw.EFConstruct)

	return b.Build()
}
