// Package search mirrors appended registrations into Elasticsearch and
// queries them back.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	repo "github.com/oksasatya/go-registration-form/internal/domain/repository"
)

const requestTimeout = 3 * time.Second

// Hit is one search result. Passwords are never indexed.
type Hit struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserIndex reads and writes the users index.
type UserIndex struct {
	ES     *elasticsearch.Client
	Index  string
	Logger *logrus.Logger
}

func NewUserIndex(es *elasticsearch.Client, index string, logger *logrus.Logger) *UserIndex {
	return &UserIndex{ES: es, Index: index, Logger: logger}
}

func (x *UserIndex) enabled() bool {
	return x != nil && x.ES != nil && x.Index != ""
}

// Put indexes u under its ID.
func (x *UserIndex) Put(ctx context.Context, u *entity.UserRecord) error {
	if !x.enabled() {
		return nil
	}
	b, err := json.Marshal(Hit{ID: u.ID, FullName: u.FullName, Email: u.Email, CreatedAt: u.CreatedAt})
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: x.Index, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, x.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("index user %s: %s", u.ID, res.Status())
	}
	return nil
}

// Search runs a multi_match over email and full name.
func (x *UserIndex) Search(ctx context.Context, q string, size int) ([]Hit, error) {
	if !x.enabled() {
		return []Hit{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "fullName"},
			},
		},
		"size": size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := x.ES.Search(
		x.ES.Search.WithContext(c),
		x.ES.Search.WithIndex(x.Index),
		x.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("search users: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source Hit `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// IndexingRepository indexes every appended record. Index failures are
// logged and never fail the append.
type IndexingRepository struct {
	Next  repo.UserRepository
	Index *UserIndex
}

func NewIndexingRepository(next repo.UserRepository, index *UserIndex) *IndexingRepository {
	return &IndexingRepository{Next: next, Index: index}
}

func (r *IndexingRepository) Append(ctx context.Context, u *entity.UserRecord) error {
	if err := r.Next.Append(ctx, u); err != nil {
		return err
	}
	if err := r.Index.Put(context.WithoutCancel(ctx), u); err != nil && r.Index.Logger != nil {
		r.Index.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
	}
	return nil
}

var _ repo.UserRepository = (*IndexingRepository)(nil)
