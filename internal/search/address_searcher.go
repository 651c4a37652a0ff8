package search

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/address-lookup/internal/lookup"
	"github.com/address-lookup/internal/normalizer"
	"github.com/address-lookup/internal/parser"
)

// ErrEmptyQuery is returned for a query that normalizes to nothing.
var ErrEmptyQuery = errors.New("search: empty query")

// Config cấu hình cho Meilisearch
type Config struct {
	Host      string
	APIKey    string
	IndexName string
	Timeout   time.Duration
	Limit     int
}

// Document is one address as stored in the index.
type Document struct {
	ID                  string `json:"id"`
	Street              string `json:"street"`
	HouseNumber         int    `json:"house_number"`
	HouseNumberAddition string `json:"house_number_addition"`
	Postcode            string `json:"postcode"`
	City                string `json:"city"`
	Province            string `json:"province,omitempty"`
	Text                string `json:"text"`
}

// NewDocument builds the index document for addr.
func NewDocument(addr lookup.Address) Document {
	addition := ""
	if addr.HouseNumberAddition != nil {
		addition = *addr.HouseNumberAddition
	}
	province := ""
	if addr.Province != nil {
		province = *addr.Province
	}
	doc := Document{
		Street:              addr.Street,
		HouseNumber:         addr.HouseNumber,
		HouseNumberAddition: addition,
		Postcode:            strings.ToUpper(strings.ReplaceAll(addr.Postcode, " ", "")),
		City:                addr.City,
		Province:            province,
	}
	doc.ID = documentID(doc)
	doc.Text = normalizer.NormalizeQuery(doc.Line())
	return doc
}

// documentID is unique per postcode, number and addition. Meilisearch ids
// only allow letters, digits, '-' and '_'.
func documentID(d Document) string {
	id := d.Postcode + "-" + strconv.Itoa(d.HouseNumber)
	if d.HouseNumberAddition != "" {
		id += "-" + d.HouseNumberAddition
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

// Line is "Dorpsstraat 10 B 1234AB Utrecht".
func (d Document) Line() string {
	return strings.Join(strings.Fields(strings.Join([]string{
		d.Street, strconv.Itoa(d.HouseNumber), d.HouseNumberAddition, d.Postcode, d.City,
	}, " ")), " ")
}

// Address converts the document back to an address.
func (d Document) Address() lookup.Address {
	addr := lookup.Address{
		Street:      d.Street,
		HouseNumber: d.HouseNumber,
		Postcode:    d.Postcode,
		City:        d.City,
	}
	if d.HouseNumberAddition != "" {
		addition := d.HouseNumberAddition
		addr.HouseNumberAddition = &addition
	}
	if d.Province != "" {
		province := d.Province
		addr.Province = &province
	}
	return addr
}

// Hit is a ranked search result.
type Hit struct {
	Document
	Score float64 `json:"score"`
}

// AddressSearcher searches the address index.
type AddressSearcher struct {
	client    *ClientWrapper
	logger    *zap.Logger
	indexName string
	timeout   time.Duration
	limit     int
}

// NewAddressSearcher tạo mới AddressSearcher với Meilisearch client
func NewAddressSearcher(cfg Config, logger *zap.Logger) (*AddressSearcher, error) {
	client := NewClientWrapper(cfg.Host, cfg.APIKey)
	if err := client.Healthy(); err != nil {
		return nil, fmt.Errorf("connect meilisearch: %w", err)
	}
	if cfg.IndexName == "" {
		cfg.IndexName = "addresses"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &AddressSearcher{
		client:    client,
		logger:    logger,
		indexName: cfg.IndexName,
		timeout:   cfg.Timeout,
		limit:     cfg.Limit,
	}, nil
}

// Search looks q up and returns at most limit hits, best first. Meilisearch
// returns a candidate window twice as large; the final order comes from Rank.
func (s *AddressSearcher) Search(q parser.Query, filter string, limit int) ([]Hit, error) {
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	start := time.Now()
	resp, err := s.client.SearchIndex(s.indexName, string(q), filter, int64(limit*2))
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}

	docs := parseHits(resp)
	hits := Rank(string(q), docs)
	if len(hits) > limit {
		hits = hits[:limit]
	}

	s.logger.Debug("address search",
		zap.String("query", string(q)),
		zap.Int("candidates", len(docs)),
		zap.Int("returned", len(hits)),
		zap.Duration("took", time.Since(start)))
	return hits, nil
}

// parseHits reads the documents out of a search response.
func parseHits(resp *meilisearch.SearchResponse) []Document {
	docs := make([]Document, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		m, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		doc := Document{
			ID:                  stringField(m, "id"),
			Street:              stringField(m, "street"),
			HouseNumberAddition: stringField(m, "house_number_addition"),
			Postcode:            stringField(m, "postcode"),
			City:                stringField(m, "city"),
			Province:            stringField(m, "province"),
			Text:                stringField(m, "text"),
		}
		if n, ok := m["house_number"].(float64); ok {
			doc.HouseNumber = int(n)
		}
		docs = append(docs, doc)
	}
	return docs
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

// BuildIndex applies the index settings and waits for them to take effect.
func (s *AddressSearcher) BuildIndex() error {
	index := s.client.cli.Index(s.indexName)

	task, err := index.UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: []string{"street", "text", "city", "postcode"},
		FilterableAttributes: []string{"postcode", "city", "province"},
		SortableAttributes:   []string{"house_number"},
		RankingRules:         []string{"words", "typo", "proximity", "attribute", "sort", "exactness"},
		Synonyms: map[string][]string{
			"str":  {"straat"},
			"ln":   {"laan"},
			"pln":  {"plein"},
			"gr":   {"gracht"},
			"dhr":  {"de heer"},
			"sint": {"st"},
		},
		TypoTolerance: &meilisearch.TypoTolerance{
			Enabled: true,
			MinWordSizeForTypos: meilisearch.MinWordSizeForTypos{
				OneTypo:  4,
				TwoTypos: 8,
			},
			DisableOnAttributes: []string{"postcode"},
		},
	})
	if err != nil {
		return fmt.Errorf("update index settings: %w", err)
	}
	if err := s.client.WaitForTask(task.TaskUID, s.timeout); err != nil {
		return err
	}

	s.logger.Info("address index configured", zap.String("index", s.indexName), zap.Int64("task_uid", task.TaskUID))
	return nil
}

// Seed adds docs to the index in batches.
func (s *AddressSearcher) Seed(docs []Document, batchSize int) error {
	if len(docs) == 0 {
		return errors.New("seed: no documents")
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	index := s.client.cli.Index(s.indexName)
	for i := 0; i < len(docs); i += batchSize {
		end := min(i+batchSize, len(docs))

		task, err := index.AddDocuments(docs[i:end], "id")
		if err != nil {
			return fmt.Errorf("add documents %d-%d: %w", i, end, err)
		}
		if err := s.client.WaitForTask(task.TaskUID, s.timeout); err != nil {
			return err
		}

		s.logger.Info("seeded batch",
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int64("task_uid", task.TaskUID))
	}

	s.logger.Info("seed finished", zap.Int("total_documents", len(docs)))
	return nil
}
