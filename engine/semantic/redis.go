package semantic

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/WessleyAI/wayfarer/engine/domain"
	"github.com/WessleyAI/wayfarer/pkg/fn"
	"github.com/WessleyAI/wayfarer/pkg/similarity"
	"github.com/redis/go-redis/v9"
)

// RedisIndex stores vectors as RedisJSON documents and searches them with
// RediSearch KNN queries.
type RedisIndex struct {
	client    *redis.Client
	prefix    string
	indexName string
}

var _ Index = (*RedisIndex)(nil)

type redisDocument struct {
	ID        string            `json:"id"`
	Namespace string            `json:"namespace"`
	Embedding []float64         `json:"embedding"`
	Metadata  map[string]string `json:"metadata"`
}

// parseRedisURL parses a redis:// or rediss:// URL, or a bare host:port.
func parseRedisURL(connectionString string) (*redis.Options, error) {
	if !strings.HasPrefix(connectionString, "redis://") && !strings.HasPrefix(connectionString, "rediss://") {
		return &redis.Options{Addr: connectionString}, nil
	}
	parsedURL, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("semantic: invalid redis url: %w", err)
	}
	opts := &redis.Options{Addr: parsedURL.Host}
	if parsedURL.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if parsedURL.User != nil {
		opts.Username = parsedURL.User.Username()
		if password, ok := parsedURL.User.Password(); ok {
			opts.Password = password
		}
	}
	if dbStr := strings.TrimPrefix(parsedURL.Path, "/"); dbStr != "" {
		db, err := strconv.Atoi(dbStr)
		if err != nil {
			return nil, fmt.Errorf("semantic: invalid redis db %q", dbStr)
		}
		opts.DB = db
	}
	return opts, nil
}

// NewRedisIndex connects to Redis and verifies the connection.
// Documents live under "<indexName>:" keys.
func NewRedisIndex(ctx context.Context, connectionString, indexName string) (*RedisIndex, error) {
	opts, err := parseRedisURL(connectionString)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, domain.NewProviderError("redis", "connect", err)
	}
	return newRedisIndex(client, indexName), nil
}

func newRedisIndex(client *redis.Client, indexName string) *RedisIndex {
	return &RedisIndex{client: client, prefix: indexName + ":", indexName: indexName}
}

func (r *RedisIndex) docKey(namespace, id string) string {
	return r.prefix + namespace + ":" + id
}

// EnsureCollection creates the search index; an existing index is kept.
func (r *RedisIndex) EnsureCollection(ctx context.Context, dims int) error {
	_, err := r.client.FTCreate(ctx, r.indexName, &redis.FTCreateOptions{
		OnJSON: true,
		Prefix: []any{r.prefix},
	},
		&redis.FieldSchema{
			FieldName: "$.namespace",
			As:        payloadNamespace,
			FieldType: redis.SearchFieldTypeTag,
		},
		&redis.FieldSchema{
			FieldName: "$.embedding",
			As:        "embedding",
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{
				HNSWOptions: &redis.FTHNSWOptions{
					Type:           "FLOAT64",
					Dim:            dims,
					DistanceMetric: "COSINE",
				},
			},
		},
	).Result()
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return domain.NewProviderError("redis", "create index "+r.indexName, err)
	}
	return nil
}

// Upsert writes one JSON document per record.
func (r *RedisIndex) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for _, rec := range records {
		doc := redisDocument{
			ID:        rec.ID,
			Namespace: namespace,
			Embedding: toFloat64(rec.Vector),
			Metadata:  rec.Metadata,
		}
		pipe.JSONSet(ctx, r.docKey(namespace, rec.ID), "$", doc)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.NewProviderError("redis", fmt.Sprintf("upsert %d documents", len(records)), err)
	}
	return nil
}

// Count scans the namespace's key space.
func (r *RedisIndex) Count(ctx context.Context, namespace string) (int, error) {
	pattern := r.prefix + namespace + ":*"
	var count int
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, domain.NewProviderError("redis", "count", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// DeleteNamespace removes every document in a namespace.
func (r *RedisIndex) DeleteNamespace(ctx context.Context, namespace string) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+namespace+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return domain.NewProviderError("redis", "delete namespace "+namespace, err)
	}
	for _, batch := range fn.Chunk(keys, 100) {
		if err := r.client.Del(ctx, batch...).Err(); err != nil {
			return domain.NewProviderError("redis", "delete namespace "+namespace, err)
		}
	}
	return nil
}

// Search runs a KNN query restricted to the namespace tag.
func (r *RedisIndex) Search(ctx context.Context, vec domain.Vector, topK int, namespace string) ([]domain.Match, error) {
	if len(vec) == 0 {
		return nil, domain.NewValidationError("vector", "", domain.ErrEmptyInput)
	}
	if topK <= 0 {
		topK = 1
	}
	res, err := r.client.FTSearchWithArgs(ctx, r.indexName, knnQuery(namespace, topK), &redis.FTSearchOptions{
		Return: []redis.FTSearchReturn{
			{FieldName: "vector_distance"},
			{FieldName: "$.id", As: "id"},
			{FieldName: "$.metadata", As: "metadata"},
		},
		DialectVersion: 2,
		Params:         map[string]any{"vec": floatsToBytes(toFloat64(vec))},
	}).Result()
	if err != nil {
		return nil, domain.NewProviderError("redis", "search", err)
	}
	return matchesFromDocs(res.Docs), nil
}

func knnQuery(namespace string, topK int) string {
	filter := "*"
	if namespace != "" {
		filter = "(@" + payloadNamespace + ":{" + escapeTag(namespace) + "})"
	}
	return fmt.Sprintf("%s=>[KNN %d @embedding $vec AS vector_distance]", filter, topK)
}

// escapeTag escapes RediSearch tag punctuation.
func escapeTag(s string) string {
	var b strings.Builder
	for _, c := range s {
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// matchesFromDocs converts cosine distances to similarities, best first.
// Documents with an unparsable distance are skipped.
func matchesFromDocs(docs []redis.Document) []domain.Match {
	matches := make([]domain.Match, 0, len(docs))
	for _, doc := range docs {
		distance, err := strconv.ParseFloat(doc.Fields["vector_distance"], 64)
		if err != nil {
			continue
		}
		m := domain.Match{ID: doc.Fields["id"], Score: float32(similarity.Distance(distance))}
		if m.ID == "" {
			m.ID = doc.ID
		}
		if raw := doc.Fields["metadata"]; raw != "" {
			// Malformed metadata leaves the map nil; the decision layer defaults it.
			_ = json.Unmarshal([]byte(raw), &m.Metadata)
		}
		matches = append(matches, m)
	}
	slices.SortStableFunc(matches, func(a, b domain.Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return matches
}

func toFloat64(v domain.Vector) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func floatsToBytes(fs []float64) []byte {
	buf := make([]byte, len(fs)*8)
	for i, f := range fs {
		binary.LittleEndian.PutUint64(buf[i*8:(i+1)*8], math.Float64bits(f))
	}
	return buf
}

// Close closes the Redis connection.
func (r *RedisIndex) Close() error { return r.client.Close() }
