// Package es wraps the elasticsearch client used for the search read-model.
// Documents indexed here are derivable from the database, so callers treat
// indexing failures as log-worthy, never as operation failures.
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/fundwit/go-commons/types"
)

var (
	activeClient *elasticsearch.Client

	IndexFunc = Index
)

// StartESClient connects to the address list in ES_ADDRESS (comma separated,
// default http://127.0.0.1:9200).
func StartESClient() error {
	address := os.Getenv("ES_ADDRESS")
	if address == "" {
		address = "http://127.0.0.1:9200"
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: strings.Split(address, ",")})
	if err != nil {
		return err
	}
	activeClient = client
	return nil
}

func Index(index string, id types.ID, doc interface{}) error {
	if activeClient == nil {
		return errors.New("es client is not started")
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id.String(),
		Body:       bytes.NewReader(buf.Bytes()),
		Refresh:    "true",
	}
	res, err := req.Do(context.Background(), activeClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index document %s/%s: %s", index, id, res.Status())
	}
	return nil
}
