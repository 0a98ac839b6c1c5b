// internal/recordstore/elastic.go
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "community-assistant/internal/common/errors"
	"community-assistant/internal/models"
)

// ElasticQueryLog indexes exchanges in Elasticsearch so that similar past
// queries can be searched across instances.
type ElasticQueryLog struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticQueryLog(client *elasticsearch.Client, index string) *ElasticQueryLog {
	return &ElasticQueryLog{client: client, index: index}
}

func (l *ElasticQueryLog) Append(ctx context.Context, e models.QueryLogEntry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index: l.index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return apperrors.NewSearchFailedError(l.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewSearchFailedError(l.index, fmt.Errorf("index request failed: %s", res.Status()))
	}
	return nil
}

func (l *ElasticQueryLog) RecentSuccessful(ctx context.Context, since time.Time, minConfidence float64, limit int) ([]models.QueryLogEntry, error) {
	query := map[string]interface{}{
		"size": limit,
		"sort": []interface{}{
			map[string]interface{}{"timestamp": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"range": map[string]interface{}{"timestamp": map[string]interface{}{"gte": since.UTC().Format(time.RFC3339)}}},
					map[string]interface{}{"range": map[string]interface{}{"confidence": map[string]interface{}{"gte": minConfidence}}},
				},
				"must_not": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"source": string(models.SourceFallback)}},
				},
			},
		},
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source models.QueryLogEntry `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := l.search(ctx, query, &r); err != nil {
		return nil, err
	}

	out := make([]models.QueryLogEntry, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (l *ElasticQueryLog) Stats(ctx context.Context, since time.Time, failBelow float64) (models.QueryStats, error) {
	query := map[string]interface{}{
		"size":             0,
		"track_total_hits": true,
		"query": map[string]interface{}{
			"range": map[string]interface{}{"timestamp": map[string]interface{}{"gte": since.UTC().Format(time.RFC3339)}},
		},
		"aggs": map[string]interface{}{
			"failed": map[string]interface{}{
				"filter": map[string]interface{}{
					"range": map[string]interface{}{"confidence": map[string]interface{}{"lt": failBelow}},
				},
			},
		},
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			Failed struct {
				DocCount int64 `json:"doc_count"`
			} `json:"failed"`
		} `json:"aggregations"`
	}
	if err := l.search(ctx, query, &r); err != nil {
		return models.QueryStats{}, err
	}
	return models.QueryStats{Total: r.Hits.Total.Value, Failed: r.Aggregations.Failed.DocCount}, nil
}

func (l *ElasticQueryLog) search(ctx context.Context, query map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(query)
	if err != nil {
		return err
	}
	req := esapi.SearchRequest{
		Index: []string{l.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, l.client)
	if err != nil {
		return apperrors.NewSearchFailedError(l.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewSearchFailedError(l.index, fmt.Errorf("search query failed: %s", res.Status()))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return apperrors.NewSearchFailedError(l.index, err)
	}
	return nil
}
