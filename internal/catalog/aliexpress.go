package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	logx "promobot/pkg/logx"
)

// Union Open Platform (SG endpoint).
const defaultBaseURL = "https://api-sg.aliexpress.com/sync"

// queryKeywords drive the per-keyword product queries; together they cover
// the accepted categories.
var queryKeywords = []string{"RTX", "Ryzen", "Gabinete", "Teclado Mecânico", "Funko", "LED"}

type ClientConfig struct {
	AppKey     string
	AppSecret  string
	TrackingID string
	BaseURL    string        // default: Union Open Platform SG endpoint
	Timeout    time.Duration // per API call
}

// Client is the real catalog adapter. Every public method is best-effort:
// transport, parse and auth errors are logged and absorbed by falling back
// to the synthetic source or the local link transformation.
type Client struct {
	cfg      ClientConfig
	http     *http.Client
	log      logx.Logger
	fallback *Synthetic
}

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:      cfg,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log.With(logx.String("component", "catalog")),
		fallback: NewSynthetic(cfg.TrackingID, nil),
	}
}

func (c *Client) Fetch(ctx context.Context, limit int) []Offer {
	if c.cfg.AppKey == "" || c.cfg.AppSecret == "" {
		// Keep the bot functional during setup.
		return c.fallback.Fetch(ctx, limit)
	}

	want := limit * 2
	if want < 50 {
		want = 50
	}
	records, err := c.queryProducts(ctx, want)
	if err != nil {
		c.log.Error("catalog query failed, using synthetic batch", logx.Err(err))
		return c.fallback.Fetch(ctx, limit)
	}

	offers := make([]Offer, 0, len(records))
	for _, rec := range records {
		o, err := normalizeRecord(rec)
		if err != nil {
			c.log.Warn("skipping malformed catalog record", logx.Err(err))
			continue
		}
		offers = append(offers, o)
	}
	offers = dedupeByID(offers, limit)
	if len(offers) == 0 {
		return c.fallback.Fetch(ctx, limit)
	}
	return offers
}

// Available is a lightweight availability check placeholder.
func (c *Client) Available(context.Context, Offer) bool { return true }

func (c *Client) GenerateAffiliateLink(ctx context.Context, o Offer) string {
	// A promotional URL from the API is already affiliated.
	if hasAffiliateMarkers(o.ProductURL) {
		return o.ProductURL
	}
	if c.cfg.AppKey != "" && c.cfg.AppSecret != "" {
		link, err := c.generateLink(ctx, o.ProductURL)
		if err == nil && link != "" {
			return link
		}
		if err != nil {
			c.log.Warn("affiliate link generation failed, using fallback short link",
				logx.String("product_id", o.ProductID), logx.Err(err))
		}
	}
	return fallbackAffiliateLink(o.ProductURL, c.cfg.TrackingID)
}

// ---- API plumbing ----

// sign computes the TOP-style MD5 signature:
// MD5(secret + concat(sorted k+v) + secret), upper hex.
func (c *Client) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(c.cfg.AppSecret)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params.Get(k))
	}
	b.WriteString(c.cfg.AppSecret)

	sum := md5.Sum([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func (c *Client) apiCall(ctx context.Context, method string, biz map[string]any) (map[string]any, error) {
	param, err := json.Marshal(biz)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("app_key", c.cfg.AppKey)
	form.Set("method", method)
	form.Set("sign_method", "md5")
	form.Set("timestamp", time.Now().UTC().Format("2006-01-02 15:04:05"))
	form.Set("format", "json")
	form.Set("v", "2.0")
	form.Set("param", string(param))
	form.Set("sign", c.sign(form))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http %d", method, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", method, err)
	}
	return out, nil
}

// queryProducts runs one product query per keyword and concatenates the
// raw records. Individual keyword failures are logged and skipped; an
// error is returned only when every keyword fails.
func (c *Client) queryProducts(ctx context.Context, limit int) ([]map[string]any, error) {
	var records []map[string]any
	failures := 0
	for _, kw := range queryKeywords {
		res, err := c.apiCall(ctx, "aliexpress.affiliate.product.query", map[string]any{
			"keywords":        kw,
			"target_language": "pt_BR",
			"target_currency": "BRL",
			"page_size":       20,
			"sort":            "SALE_PRICE_ASC",
			"tracking_id":     c.cfg.TrackingID,
		})
		if err != nil {
			c.log.Warn("product query failed", logx.String("keyword", kw), logx.Err(err))
			failures++
			continue
		}
		records = append(records, extractProducts(res)...)
	}
	if failures == len(queryKeywords) {
		return nil, errors.New("all product queries failed")
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// extractProducts walks the known response shapes for product.query.
func extractProducts(res map[string]any) []map[string]any {
	data := firstMap(res, "aliexpress_affiliate_product_query_response", "resp")
	if data == nil {
		data = res
	}
	inner := data["result"]
	if inner == nil {
		inner = data["products"]
	}

	var list []any
	switch x := inner.(type) {
	case map[string]any:
		list, _ = x["products"].([]any)
		if list == nil {
			// one more nesting level seen in the wild
			if m, ok := x["products"].(map[string]any); ok {
				list, _ = m["product"].([]any)
			}
		}
	case []any:
		list = x
	}

	out := make([]map[string]any, 0, len(list))
	for _, it := range list {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func (c *Client) generateLink(ctx context.Context, productURL string) (string, error) {
	res, err := c.apiCall(ctx, "aliexpress.affiliate.link.generate", map[string]any{
		"promotion_link_type": "SHORT_LINK",
		"source_values":       []string{productURL},
		"tracking_id":         c.cfg.TrackingID,
	})
	if err != nil {
		return "", err
	}

	data := firstMap(res, "aliexpress_affiliate_link_generate_response", "resp")
	if data == nil {
		data = res
	}
	links := firstMap(data, "resp_result", "promotion_links")

	var arr []any
	if links != nil {
		arr, _ = links["promotion_links"].([]any)
		if arr == nil {
			arr, _ = links["links"].([]any)
		}
	} else {
		arr, _ = data["promotion_links"].([]any)
	}
	if len(arr) == 0 {
		return "", errors.New("link.generate: empty response")
	}
	first, ok := arr[0].(map[string]any)
	if !ok {
		return "", errors.New("link.generate: unexpected shape")
	}
	for _, k := range []string{"promotion_link", "short_link_url", "url"} {
		if s, ok := first[k].(string); ok && s != "" {
			return s, nil
		}
	}
	return "", errors.New("link.generate: no link field")
}

func firstMap(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok {
			return v
		}
	}
	return nil
}
