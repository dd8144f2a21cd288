package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Machina123/FieldGameRestApi/internal/models"
)

// IndexGame stores the game document so it can be found by title or
// description. Called after the game row is committed.
func IndexGame(ctx context.Context, es *elasticsearch.Client, index string, game *models.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("search: json.Marshal failed: %w", err)
	}

	res, err := es.Index(
		index,
		bytes.NewReader(data),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(fmt.Sprint(game.ID)),
	)
	if err != nil {
		return fmt.Errorf("search: index failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search: index error: %s", res.Status())
	}
	return nil
}

func Games(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []models.Game, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: query failed: %w", err)
	}

	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: query error: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Game `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	games := make([]models.Game, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		games[i] = hit.Source
	}
	return r.Hits.Total.Value, games, nil
}
