package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/resale_cart/internal/models"
)

type ESConfig struct {
	URL      string
	User     string
	Password string
}

func NewESClient(ctx context.Context, cfg ESConfig) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}
	return client, nil
}

// ElasticCatalog reads listings from the search index the catalog service maintains.
type ElasticCatalog struct {
	es    *elasticsearch.Client
	index string
}

func NewElasticCatalog(es *elasticsearch.Client, index string) *ElasticCatalog {
	return &ElasticCatalog{es: es, index: index}
}

type esDoc struct {
	ID     string         `json:"_id"`
	Found  bool           `json:"found"`
	Source models.Product `json:"_source"`
}

func (c *ElasticCatalog) CheckAvailable(ctx context.Context, productID uint) (Availability, error) {
	res, err := c.es.Get(c.index, strconv.FormatUint(uint64(productID), 10), c.es.Get.WithContext(ctx))
	if err != nil {
		return Availability{}, fmt.Errorf("es get product %d: %w", productID, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return Availability{}, ErrProductNotFound
	}
	if res.IsError() {
		return Availability{}, fmt.Errorf("es get product %d: %s", productID, res.Status())
	}

	var doc esDoc
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return Availability{}, fmt.Errorf("decode product %d: %w", productID, err)
	}
	if !doc.Found {
		return Availability{}, ErrProductNotFound
	}
	doc.Source.ID = productID
	return availabilityOf(doc.Source), nil
}

func (c *ElasticCatalog) Products(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	out := make(map[uint]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	docIDs := make([]string, len(ids))
	for i, id := range ids {
		docIDs[i] = strconv.FormatUint(uint64(id), 10)
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]any{"ids": docIDs}); err != nil {
		return nil, err
	}

	res, err := c.es.Mget(&buf, c.es.Mget.WithIndex(c.index), c.es.Mget.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("es mget products: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("es mget products: %s", res.Status())
	}

	var r struct {
		Docs []esDoc `json:"docs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode mget: %w", err)
	}
	for _, d := range r.Docs {
		if !d.Found {
			continue
		}
		id, err := strconv.ParseUint(d.ID, 10, 64)
		if err != nil {
			continue
		}
		d.Source.ID = uint(id)
		out[d.Source.ID] = d.Source
	}
	return out, nil
}
