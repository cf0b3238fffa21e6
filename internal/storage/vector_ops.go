package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, db *sql.DB, queryVector []float32, system string, threshold float64, limit int) ([]VectorResult, error) {
	// Use optimized SQL-based search when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, db, queryVector, system, threshold, limit)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, db, queryVector, system, threshold, limit)
}

// searchVectorOptimized uses the sqlite-vec extension to compute cosine
// distance at the database layer. Distance is converted to similarity
// (1 - distance) to match the fallback path. Pages stored with the all-zero
// sentinel vector produce a NaN similarity and fail the threshold comparison,
// so they never surface.
func searchVectorOptimized(ctx context.Context, db *sql.DB, queryVector []float32, system string, threshold float64, limit int) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}
	queryBlob := serializeVector(queryVector)

	query := "SELECT " + pageColumns + `,
			1.0 - vec_distance_cosine(p.embedding, ?) AS similarity
		FROM pages p
		WHERE p.embedding IS NOT NULL
		AND (1.0 - vec_distance_cosine(p.embedding, ?)) >= ?
	`
	args := []interface{}{queryBlob, queryBlob, threshold}
	if system != "" {
		query += " AND p.system = ?"
		args = append(args, system)
	}
	query += " ORDER BY similarity DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		result, err := scanVectorResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

// searchVectorFallback performs vector search using Go-based cosine
// similarity computation. Used when sqlite-vec is not available (purego
// builds). Zero-vector pages (ingested without an embedding service) are
// skipped.
func searchVectorFallback(ctx context.Context, db *sql.DB, queryVector []float32, system string, threshold float64, limit int) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}

	query := "SELECT " + pageColumns + " FROM pages p WHERE p.embedding IS NOT NULL"
	var args []interface{}
	if system != "" {
		query += " AND p.system = ?"
		args = append(args, system)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]VectorResult, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		if len(page.Embedding) != len(queryVector) {
			continue // dimension mismatch, skip
		}
		similarity := cosineSimilarity(queryVector, page.Embedding)
		if similarity == 0 {
			continue // zero vector sentinel or orthogonal, never a match
		}
		if similarity < threshold {
			continue
		}
		candidates = append(candidates, VectorResult{Page: *page, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Sort by similarity descending and return top K
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if limit > len(candidates) {
		limit = len(candidates)
	}
	return candidates[:limit], nil
}

// searchText performs BM25 full-text search using FTS5
func searchText(ctx context.Context, db *sql.DB, query, system string, limit int) ([]TextResult, error) {
	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, fmt.Errorf("empty search query")
	}

	sqlQuery := "SELECT " + pageColumns + `,
			bm25(pages_fts) AS score
		FROM pages_fts
		INNER JOIN pages p ON p.rowid = pages_fts.rowid
		WHERE pages_fts MATCH ?
	`
	args := []interface{}{sanitized}
	if system != "" {
		sqlQuery += " AND p.system = ?"
		args = append(args, system)
	}

	// BM25 scores are negative, lower is better
	sqlQuery += " ORDER BY score LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0)
	for rows.Next() {
		result, err := scanTextResult(rows)
		if err != nil {
			return nil, err
		}
		// Convert BM25 score (negative, lower is better) to a positive
		// normalized score in (0, 1]
		result.Rank = 1.0 / (1.0 + math.Abs(result.Rank)/50.0)
		results = append(results, *result)
	}
	return results, rows.Err()
}

// scanTextResult scans pageColumns plus a trailing score column.
func scanTextResult(rows *sql.Rows) (*TextResult, error) {
	var result TextResult
	var tagsJSON string
	var summary sql.NullString
	var embedding []byte
	err := rows.Scan(
		&result.ID, &result.DocumentID, &result.DocumentName, &result.PageNumber, &result.System,
		&tagsJSON, &summary, &result.Content, &embedding, &result.CreatedAt, &result.Rank)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &result.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	result.Summary = summary.String
	if len(embedding) > 0 {
		result.Embedding = deserializeVector(embedding)
	}
	return &result, nil
}

// scanVectorResult scans pageColumns plus a trailing similarity column.
func scanVectorResult(rows *sql.Rows) (*VectorResult, error) {
	var result VectorResult
	var tagsJSON string
	var summary sql.NullString
	var embedding []byte
	err := rows.Scan(
		&result.ID, &result.DocumentID, &result.DocumentName, &result.PageNumber, &result.System,
		&tagsJSON, &summary, &result.Content, &embedding, &result.CreatedAt, &result.Similarity)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &result.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	result.Summary = summary.String
	if len(embedding) > 0 {
		result.Embedding = deserializeVector(embedding)
	}
	return &result, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FTS5 operator pattern for escaping Boolean operators
var ftsOperatorPattern = regexp.MustCompile(`\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSQuery sanitizes a search query for FTS5 to prevent injection
// attacks. Escapes special FTS5 operators and characters.
func sanitizeFTSQuery(query string) string {
	if query == "" {
		return ""
	}

	replacer := strings.NewReplacer(
		`"`, `\"`, // Quote
		`*`, `\*`, // Wildcard
		`(`, `\(`, // Grouping
		`)`, `\)`, // Grouping
	)
	escaped := replacer.Replace(query)

	escaped = ftsOperatorPattern.ReplaceAllStringFunc(escaped, func(match string) string {
		return `\` + match
	})

	return escaped
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
