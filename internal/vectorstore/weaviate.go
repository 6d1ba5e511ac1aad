// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/knowlib/knowlib/internal/embedding"
	"github.com/knowlib/knowlib/internal/payload"
)

// Tracer for vector store operations.
var storeTracer = otel.Tracer("knowlib.vectorstore")

// Prometheus metrics for store operations.
var (
	storeSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "knowlib_vectorstore_search_duration_seconds",
		Help:    "Time spent on vector similarity searches",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	storeUpsertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "knowlib_vectorstore_upserts_total",
		Help: "Total points upserted, batched and single",
	})

	storeDeletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "knowlib_vectorstore_deletes_total",
		Help: "Total delete operations by scope",
	}, []string{"scope"})
)

// ClassName is the Weaviate class the core's content chunks live in.
const ClassName = "KnowlibChunk"

// chunkFields lists every property requested on a Get query.
var chunkFields = []graphql.Field{
	{Name: "contentId"},
	{Name: "filePath"},
	{Name: "section"},
	{Name: "chunkIndex"},
	{Name: "chunkTotal"},
	{Name: "contentHash"},
	{Name: "taxonomyFullPath"},
	{Name: "taxonomyLevel1"},
	{Name: "taxonomyLevel2"},
	{Name: "contentType"},
	{Name: "classificationConfidence"},
	{Name: "classificationTier"},
	{Name: "sourceURL"},
	{Name: "extractionMethod"},
	{Name: "version"},
	{
		Name: "_additional",
		Fields: []graphql.Field{
			{Name: "id"},
			{Name: "certainty"},
			{Name: "vector"},
		},
	},
}

// WeaviateStore implements Store against a Weaviate collection. The
// chunk payload is flattened onto camelCase class properties: contentId,
// filePath, taxonomyLevel1/2, contentType, contentHash, chunkIndex,
// chunkTotal and the rest listed in chunkClass.
type WeaviateStore struct {
	client     *weaviate.Client
	dimensions int
	logger     *slog.Logger
}

// NewWeaviateStore wraps an already-constructed Weaviate client and
// initializes the collection: the KnowlibChunk class is created if it
// does not exist yet. Any unexpected error during init propagates; a
// store whose collection cannot be ensured is unusable.
func NewWeaviateStore(ctx context.Context, client *weaviate.Client, dimensions int, logger *slog.Logger) (*WeaviateStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := EnsureSchema(ctx, client); err != nil {
		return nil, err
	}
	return &WeaviateStore{client: client, dimensions: dimensions, logger: logger}, nil
}

var _ Store = (*WeaviateStore)(nil)

// chunkClass returns the KnowlibChunk schema: Vectorizer "none" (vectors
// are supplied by the embedding provider, never computed by Weaviate
// itself) with IndexFilterable set on every property except section,
// sourceURL, extractionMethod and version.
func chunkClass() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ClassName,
		Description: "A chunk of extracted Markdown content with taxonomy classification.",
		Vectorizer:  "none",
		InvertedIndexConfig: &models.InvertedIndexConfig{
			IndexTimestamps: true,
		},
		Properties: []*models.Property{
			{
				Name:            "contentId",
				DataType:        []string{"text"},
				Description:     "Opaque unique id for this chunk.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "filePath",
				DataType:        []string{"text"},
				Description:     "Library-relative path of the source file.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:        "section",
				DataType:    []string{"text"},
				Description: "Heading immediately preceding this chunk.",
			},
			{
				Name:            "chunkIndex",
				DataType:        []string{"int"},
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "chunkTotal",
				DataType:        []string{"int"},
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "contentHash",
				DataType:        []string{"text"},
				Description:     "Stable hash over chunk text, used for dedup.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "taxonomyFullPath",
				DataType:        []string{"text"},
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "taxonomyLevel1",
				DataType:        []string{"text"},
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "taxonomyLevel2",
				DataType:        []string{"text"},
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "contentType",
				DataType:        []string{"text"},
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "classificationConfidence",
				DataType:        []string{"number"},
				IndexFilterable: indexFilterable,
			},
			{
				Name:            "classificationTier",
				DataType:        []string{"text"},
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "relatedIds",
				DataType:        []string{"text[]"},
				Description:     "Target content ids of this chunk's relationships.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:     "sourceURL",
				DataType: []string{"text"},
			},
			{
				Name:     "extractionMethod",
				DataType: []string{"text"},
			},
			{
				Name:     "version",
				DataType: []string{"text"},
			},
		},
	}
}

// EnsureSchema creates the KnowlibChunk class if it does not already
// exist. Any unexpected error propagates rather than being swallowed;
// a collection that cannot be initialized is fatal to startup.
func EnsureSchema(ctx context.Context, client *weaviate.Client) error {
	class := chunkClass()

	_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
	if err == nil {
		return nil
	}

	if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("creating %s schema: %w", class.Class, err)
	}
	return nil
}

func propsFromPayload(p payload.Payload) map[string]interface{} {
	relatedIds := make([]string, 0, len(p.Relationships))
	for _, r := range p.Relationships {
		relatedIds = append(relatedIds, r.TargetID)
	}
	return map[string]interface{}{
		"relatedIds":               relatedIds,
		"contentId":                p.ContentID,
		"filePath":                 p.FilePath,
		"section":                  p.Section,
		"chunkIndex":               p.ChunkIndex,
		"chunkTotal":               p.ChunkTotal,
		"contentHash":              p.ContentHash,
		"taxonomyFullPath":         p.Taxonomy.FullPath,
		"taxonomyLevel1":           p.Taxonomy.Level1,
		"taxonomyLevel2":           p.Taxonomy.Level2,
		"contentType":              string(p.ContentType),
		"classificationConfidence": p.Classification.Confidence,
		"classificationTier":       string(p.Classification.TierUsed),
		"sourceURL":                p.Provenance.SourceURL,
		"extractionMethod":         p.Provenance.ExtractionMethod,
		"version":                  p.Provenance.Version,
	}
}

func toVec32(vec embedding.Vector) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}

func (s *WeaviateStore) Upsert(ctx context.Context, id string, vec embedding.Vector, p payload.Payload) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid payload for %s: %w", id, err)
	}
	_, err := s.client.Data().Creator().
		WithClassName(ClassName).
		WithID(id).
		WithVector(toVec32(vec)).
		WithProperties(propsFromPayload(p)).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("upserting point %s: %w", id, err)
	}
	storeUpsertsTotal.Inc()
	return nil
}

func (s *WeaviateStore) UpsertBatch(ctx context.Context, items []Point) error {
	if len(items) == 0 {
		return nil
	}

	ctx, span := storeTracer.Start(ctx, "vectorstore.UpsertBatch",
		trace.WithAttributes(attribute.Int("batch.size", len(items))),
	)
	defer span.End()

	objects := make([]*models.Object, len(items))
	for i, it := range items {
		if err := it.Payload.Validate(); err != nil {
			return fmt.Errorf("invalid payload for %s: %w", it.ID, err)
		}
		objects[i] = &models.Object{
			Class:      ClassName,
			ID:         strfmt.UUID(mustUUID(it.ID)),
			Vector:     toVec32(it.Vector),
			Properties: propsFromPayload(it.Payload),
		}
	}

	result, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return fmt.Errorf("batch upsert failed: %w", err)
	}

	for _, obj := range result {
		if obj.Result != nil && obj.Result.Errors != nil {
			s.logger.Warn("batch upsert item failed", "id", obj.ID)
		}
	}
	storeUpsertsTotal.Add(float64(len(items)))
	return nil
}

func whereForFilter(f SearchFilter) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	add := func(path, value string) {
		if value == "" {
			return
		}
		operands = append(operands, filters.Where().
			WithPath([]string{path}).
			WithOperator(filters.Equal).
			WithValueString(value))
	}
	add("taxonomyLevel1", f.TaxonomyLevel1)
	add("taxonomyLevel2", f.TaxonomyLevel2)
	add("contentType", string(f.ContentType))
	add("filePath", f.FilePath)
	if f.RelatedTo != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"relatedIds"}).
			WithOperator(filters.ContainsAny).
			WithValueText(f.RelatedTo))
	}

	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

type getResponse struct {
	Get map[string][]map[string]interface{} `json:"Get"`
}

func (s *WeaviateStore) Search(ctx context.Context, queryVec embedding.Vector, n int, filter SearchFilter) ([]SearchResult, error) {
	ctx, span := storeTracer.Start(ctx, "vectorstore.Search",
		trace.WithAttributes(attribute.Int("search.limit", n)),
	)
	defer span.End()
	start := time.Now()
	defer func() { storeSearchDuration.Observe(time.Since(start).Seconds()) }()

	nearVec := s.client.GraphQL().NearVectorArgBuilder().WithVector(toVec32(queryVec))

	builder := s.client.GraphQL().Get().
		WithClassName(ClassName).
		WithFields(chunkFields...).
		WithNearVector(nearVec).
		WithLimit(n)

	if where := whereForFilter(filter); where != nil {
		builder = builder.WithWhere(where)
	}

	resp, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("vector search error: %s", resp.Errors[0].Message)
	}

	return parseResults(resp)
}

func (s *WeaviateStore) SearchByTaxonomy(ctx context.Context, path string, limit int, withVectors bool) ([]SearchResult, error) {
	where := filters.Where().
		WithPath([]string{"taxonomyFullPath"}).
		WithOperator(filters.Like).
		WithValueString(path + "*")

	builder := s.client.GraphQL().Get().
		WithClassName(ClassName).
		WithFields(chunkFields...).
		WithWhere(where).
		WithLimit(limit)

	resp, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("taxonomy search failed: %w", err)
	}

	results, err := parseResults(resp)
	if err != nil {
		return nil, err
	}
	if !withVectors {
		for i := range results {
			results[i].Vector = nil
		}
	}
	return results, nil
}

func (s *WeaviateStore) IterByTaxonomy(ctx context.Context, path string, batchSize int) (*ScrollCursor, error) {
	return NewScrollCursor(batchSize, func(offset, limit int) ([]SearchResult, error) {
		where := filters.Where().
			WithPath([]string{"taxonomyFullPath"}).
			WithOperator(filters.Like).
			WithValueString(path + "*")

		builder := s.client.GraphQL().Get().
			WithClassName(ClassName).
			WithFields(chunkFields...).
			WithWhere(where).
			WithLimit(limit).
			WithOffset(offset)

		resp, err := builder.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("taxonomy scroll failed: %w", err)
		}
		return parseResults(resp)
	}), nil
}

func (s *WeaviateStore) Delete(ctx context.Context, id string) error {
	err := s.client.Data().Deleter().WithClassName(ClassName).WithID(mustUUID(id)).Do(ctx)
	if err != nil {
		return fmt.Errorf("deleting point %s: %w", id, err)
	}
	storeDeletesTotal.WithLabelValues("point").Inc()
	return nil
}

func (s *WeaviateStore) DeleteByFile(ctx context.Context, path string) error {
	where := filters.Where().
		WithPath([]string{"filePath"}).
		WithOperator(filters.Equal).
		WithValueString(path)

	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(ClassName).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("deleting by file %s: %w", path, err)
	}
	storeDeletesTotal.WithLabelValues("file").Inc()
	return nil
}

func (s *WeaviateStore) UpdatePayload(ctx context.Context, id string, partial PartialPayload) error {
	props := map[string]interface{}{}
	if partial.Classification != nil {
		props["classificationConfidence"] = partial.Classification.Confidence
		props["classificationTier"] = string(partial.Classification.TierUsed)
	}
	if partial.Taxonomy != nil {
		props["taxonomyFullPath"] = partial.Taxonomy.FullPath
		props["taxonomyLevel1"] = partial.Taxonomy.Level1
		props["taxonomyLevel2"] = partial.Taxonomy.Level2
	}
	if partial.ContentType != nil {
		props["contentType"] = string(*partial.ContentType)
	}
	if partial.Relationships != nil {
		relatedIds := make([]string, 0, len(*partial.Relationships))
		for _, rel := range *partial.Relationships {
			relatedIds = append(relatedIds, rel.TargetID)
		}
		props["relatedIds"] = relatedIds
	}

	err := s.client.Data().Updater().
		WithClassName(ClassName).
		WithID(mustUUID(id)).
		WithProperties(props).
		WithMerge().
		Do(ctx)
	if err != nil {
		return fmt.Errorf("updating payload %s: %w", id, err)
	}
	return nil
}

func (s *WeaviateStore) FindDuplicates(ctx context.Context, contentHash string) ([]SearchResult, error) {
	where := filters.Where().
		WithPath([]string{"contentHash"}).
		WithOperator(filters.Equal).
		WithValueString(contentHash)

	resp, err := s.client.GraphQL().Get().
		WithClassName(ClassName).
		WithFields(chunkFields...).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("find duplicates failed: %w", err)
	}
	return parseResults(resp)
}

func (s *WeaviateStore) Stats(ctx context.Context) (Stats, error) {
	agg, err := s.client.GraphQL().Aggregate().
		WithClassName(ClassName).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}}).
		Do(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats query failed: %w", err)
	}

	total := extractAggregateCount(agg)
	return Stats{
		TotalPoints: total,
		Indexed:     total,
		Dimensions:  s.dimensions,
		Status:      "ready",
	}, nil
}

func extractAggregateCount(resp *models.GraphQLResponse) int {
	if resp == nil {
		return 0
	}
	get, ok := resp.Data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0
	}
	list, ok := get[ClassName].([]interface{})
	if !ok || len(list) == 0 {
		return 0
	}
	first, ok := list[0].(map[string]interface{})
	if !ok {
		return 0
	}
	meta, ok := first["meta"].(map[string]interface{})
	if !ok {
		return 0
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0
	}
	return int(count)
}

func parseResults(resp *models.GraphQLResponse) ([]SearchResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	get, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	objects, ok := get[ClassName].([]interface{})
	if !ok {
		return nil, nil
	}

	results := make([]SearchResult, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		results = append(results, resultFromMap(m))
	}
	return results, nil
}

func resultFromMap(m map[string]interface{}) SearchResult {
	str := func(k string) string { s, _ := m[k].(string); return s }
	num := func(k string) float64 { f, _ := m[k].(float64); return f }

	p := payload.Payload{
		ContentID:   str("contentId"),
		FilePath:    str("filePath"),
		Section:     str("section"),
		ChunkIndex:  int(num("chunkIndex")),
		ChunkTotal:  int(num("chunkTotal")),
		ContentHash: str("contentHash"),
		Taxonomy: payload.Taxonomy{
			FullPath: str("taxonomyFullPath"),
			Level1:   str("taxonomyLevel1"),
			Level2:   str("taxonomyLevel2"),
		},
		ContentType: payload.ContentType(str("contentType")),
		Classification: payload.Classification{
			Confidence: num("classificationConfidence"),
			TierUsed:   payload.ClassificationTier(str("classificationTier")),
		},
		Provenance: payload.Provenance{
			SourceFile:       str("filePath"),
			SourceURL:        str("sourceURL"),
			ExtractionMethod: str("extractionMethod"),
			Version:          str("version"),
		},
	}

	sr := SearchResult{ID: p.ContentID, Payload: p}
	if additional, ok := m["_additional"].(map[string]interface{}); ok {
		if id, ok := additional["id"].(string); ok && id != "" {
			sr.ID = id
		}
		if certainty, ok := additional["certainty"].(float64); ok {
			sr.Score = certainty
		}
		if vecRaw, ok := additional["vector"].([]interface{}); ok {
			vec := make(embedding.Vector, len(vecRaw))
			for i, v := range vecRaw {
				f, _ := v.(float64)
				vec[i] = float32(f)
			}
			sr.Vector = vec
		}
	}
	return sr
}

// mustUUID passes through ids that are already content ids; Weaviate
// accepts any UUID-shaped string as an object id, and content ids are
// always minted as uuid.NewString() by payload.New.
func mustUUID(id string) string {
	return id
}
