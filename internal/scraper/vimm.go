package scraper

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/xxxsen/eversd/internal/model"

	"github.com/k3a/html2text"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const (
	vimmName        = "vimm"
	vimmVaultPath   = "/vault/"
	maxPageBodySize = 4 << 20
)

var vaultIDRe = regexp.MustCompile(`^\d+$`)

// VimmFetcher reads game pages of the vimm.net vault.
type VimmFetcher struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

type VimmOption func(f *VimmFetcher)

// WithHTTPClient replaces the http client, mostly for tests.
func WithHTTPClient(c *http.Client) VimmOption {
	return func(f *VimmFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

func NewVimmFetcher(baseURL, userAgent string, timeout time.Duration, opts ...VimmOption) *VimmFetcher {
	f := &VimmFetcher{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *VimmFetcher) Name() string { return vimmName }

// PageURL turns a vault id or url into the page address.
func (f *VimmFetcher) PageURL(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if vaultIDRe.MatchString(identifier) {
		return f.baseURL + vimmVaultPath + identifier, nil
	}
	u, err := url.Parse(identifier)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is neither a vault id nor an http url", ErrBadIdentifier, identifier)
	}
	return u.String(), nil
}

func (f *VimmFetcher) Fetch(ctx context.Context, identifier string) (*model.ScrapedInfo, error) {
	pageURL, err := f.PageURL(identifier)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("url", pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", pageURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", pageURL, err)
	}
	info, err := ParseVimmPage(body)
	if err != nil {
		logger.Warn("parse vimm page failed", zap.Error(err))
		return nil, err
	}
	logger.Debug("vimm page parsed", zap.String("title", info.Title), zap.String("platform", info.Platform))
	return info, nil
}

// ParseVimmPage extracts the game fields of a vault page. The title is
// stored base64 encoded in the data-v attribute of the heading canvas.
func ParseVimmPage(page []byte) (*model.ScrapedInfo, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	info := &model.ScrapedInfo{}

	for _, h2 := range findAll(doc, func(n *html.Node) bool { return isElement(n, "h2") }) {
		canvas := findFirst(h2, func(n *html.Node) bool { return isElement(n, "canvas") && hasAttr(n, "data-v") })
		if canvas == nil {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(attr(canvas, "data-v"))
		if err != nil {
			return nil, fmt.Errorf("decode title: %w", err)
		}
		info.Title = strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
		break
	}

	if n := findFirst(doc, func(n *html.Node) bool { return isElement(n, "div") && hasClass(n, "sectionTitle") }); n != nil {
		info.Platform = nodeText(n)
	}

	if table := findFirst(doc, func(n *html.Node) bool { return isElement(n, "table") && hasClass(n, "cellpadding1") }); table != nil {
		for _, row := range findAll(table, func(n *html.Node) bool { return isElement(n, "tr") }) {
			cells := findAll(row, func(n *html.Node) bool { return isElement(n, "td") })
			if len(cells) < 2 {
				continue
			}
			key := strings.ToLower(nodeText(cells[0]))
			value := nodeText(cells[len(cells)-1])
			switch {
			case strings.Contains(key, "year"):
				info.ReleaseDate = value
			case strings.Contains(key, "developer"):
				info.Developer = value
			case strings.Contains(key, "publisher"):
				info.Publisher = value
			case strings.Contains(key, "genre"):
				info.Genre = value
			}
		}
	}

	if *info == (model.ScrapedInfo{}) {
		return nil, ErrNoData
	}
	return info, nil
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if match(node) {
			out = append(out, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			traverse(child)
		}
	}
	traverse(root)
	return out
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if all := findAll(root, match); len(all) > 0 {
		return all[0]
	}
	return nil
}

// nodeText renders the children of n and flattens them to plain text.
func nodeText(n *html.Node) string {
	var b bytes.Buffer
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if err := html.Render(&b, child); err != nil {
			return ""
		}
	}
	return strings.Join(strings.Fields(html2text.HTML2TextWithOptions(b.String(), html2text.WithLinksInnerText())), " ")
}
