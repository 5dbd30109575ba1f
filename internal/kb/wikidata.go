package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/agenthands/cobalt/internal/cache"
	"github.com/agenthands/cobalt/internal/core/model"
)

const (
	instanceOfProperty = "P31"
	subclassOfProperty = "P279"

	// maxDirectTypes bounds the per-candidate type fetch; most entities
	// carry one or two instance-of claims.
	maxDirectTypes = 3

	wikidataTimeout = 15 * time.Second
	userAgent       = "cobalt-entity-linker/1.0"
)

// WikidataClient implements Searcher and Hierarchy against a Wikidata-style
// wbsearchentities/wbgetentities API. Responses are memoized by request URL
// when a cache is supplied.
type WikidataClient struct {
	endpoint string
	language string
	client   *http.Client
	cache    cache.Cache
}

func NewWikidataClient(endpoint, language string, c cache.Cache) *WikidataClient {
	return &WikidataClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		language: language,
		client:   &http.Client{Timeout: wikidataTimeout},
		cache:    c,
	}
}

type wbSearchResponse struct {
	Search []struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
	} `json:"search"`
}

type wbEntitiesResponse struct {
	Entities map[string]wbEntity `json:"entities"`
}

type wbEntity struct {
	Labels map[string]struct {
		Value string `json:"value"`
	} `json:"labels"`
	Claims map[string][]wbClaim `json:"claims"`
}

type wbClaim struct {
	Mainsnak struct {
		Datavalue struct {
			Value struct {
				ID string `json:"id"`
			} `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

// Search queries wbsearchentities and enriches each hit with its direct
// types. The type hint does not reach the API; it only feeds disambiguation
// scoring downstream. Type fetches are best effort.
func (w *WikidataClient) Search(ctx context.Context, label string, _ model.EntityType, limit int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("action", "wbsearchentities")
	params.Set("format", "json")
	params.Set("language", w.language)
	params.Set("uselang", w.language)
	params.Set("type", "item")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("search", label)

	body, err := w.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var resp wbSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	candidates := make([]Candidate, 0, len(resp.Search))
	for _, hit := range resp.Search {
		c := Candidate{ID: hit.ID, Label: hit.Label, Description: hit.Description}
		if types, err := w.directTypes(ctx, hit.ID); err == nil {
			c.Types = types
		}
		candidates = append(candidates, c)
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

// Parents returns the subclass-of targets of a type, labeled.
func (w *WikidataClient) Parents(ctx context.Context, typeID string) ([]model.TypeRef, error) {
	ids, err := w.claimTargets(ctx, typeID, subclassOfProperty, 0)
	if err != nil {
		return nil, err
	}
	return w.label(ctx, ids)
}

func (w *WikidataClient) directTypes(ctx context.Context, id string) ([]model.TypeRef, error) {
	ids, err := w.claimTargets(ctx, id, instanceOfProperty, maxDirectTypes)
	if err != nil {
		return nil, err
	}
	return w.label(ctx, ids)
}

// claimTargets extracts the item targets of one property's claims. A max
// of 0 means unbounded.
func (w *WikidataClient) claimTargets(ctx context.Context, id, property string, max int) ([]string, error) {
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("format", "json")
	params.Set("ids", id)
	params.Set("props", "claims")

	body, err := w.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var resp wbEntitiesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse claims response: %w", err)
	}

	var ids []string
	for _, claim := range resp.Entities[id].Claims[property] {
		target := claim.Mainsnak.Datavalue.Value.ID
		if target == "" {
			continue
		}
		ids = append(ids, target)
		if max > 0 && len(ids) >= max {
			break
		}
	}
	return ids, nil
}

// label resolves identifiers to TypeRefs. An identifier without a label in
// the configured language keeps its raw ID as label.
func (w *WikidataClient) label(ctx context.Context, ids []string) ([]model.TypeRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("action", "wbgetentities")
	params.Set("format", "json")
	params.Set("ids", strings.Join(ids, "|"))
	params.Set("props", "labels")
	params.Set("languages", w.language)

	body, err := w.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var resp wbEntitiesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse labels response: %w", err)
	}

	refs := make([]model.TypeRef, 0, len(ids))
	for _, id := range ids {
		ref := model.TypeRef{ID: id, Label: id}
		if l, ok := resp.Entities[id].Labels[w.language]; ok && l.Value != "" {
			ref.Label = l.Value
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (w *WikidataClient) get(ctx context.Context, params url.Values) ([]byte, error) {
	requestURL := w.endpoint + "/w/api.php?" + params.Encode()

	key := ""
	if w.cache != nil {
		key = cache.Key("kb", requestURL)
		if cached, ok := w.cache.Get(ctx, key); ok {
			return []byte(cached), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge-base request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("knowledge-base returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if w.cache != nil {
		_ = w.cache.Set(ctx, key, string(body))
	}
	return body, nil
}
