package initiator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
)

// Navigator moves the buyer between pages.
type Navigator interface {
	// Submit performs the full-page form post to the gateway.
	Submit(ctx context.Context, form gateway.Form) error
	BackToCheckout(ctx context.Context, source Source) error
	OrderHistory(ctx context.Context, orderID string) error
}

// PageNavigator writes the auto-submitting gateway page to a file for the
// buyer to open, and prints the other moves to out.
type PageNavigator struct {
	path string
	out  io.Writer
}

func NewPageNavigator(path string, out io.Writer) *PageNavigator {
	return &PageNavigator{path: path, out: out}
}

func (n *PageNavigator) Submit(_ context.Context, form gateway.Form) error {
	f, err := os.OpenFile(n.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("initiator: open payment page: %w", err)
	}
	if err := form.Render(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("initiator: write payment page: %w", err)
	}
	_, _ = fmt.Fprintf(n.out, "Open %s in a browser to continue to the payment gateway.\n", n.path)
	return nil
}

func (n *PageNavigator) BackToCheckout(_ context.Context, source Source) error {
	_, _ = fmt.Fprintf(n.out, "Returning to %s checkout.\n", source)
	return nil
}

func (n *PageNavigator) OrderHistory(_ context.Context, orderID string) error {
	_, _ = fmt.Fprintf(n.out, "Order %s is already paid. See your order history.\n", orderID)
	return nil
}

const maxFormHops = 5

var errNoForm = errors.New("initiator: page has no form to submit")

// BrowserNavigator plays the part of the buyer's browser: it posts the
// gateway form, keeps submitting the auto-submit forms it gets back and stops
// at the first redirect, which is the landing page.
type BrowserNavigator struct {
	client *http.Client

	mu      sync.Mutex
	landing *url.URL
	visits  []string
}

// NewBrowserNavigator uses hc, or a default client, without following
// redirects.
func NewBrowserNavigator(hc *http.Client) *BrowserNavigator {
	c := &http.Client{}
	if hc != nil {
		cp := *hc
		c = &cp
	}
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &BrowserNavigator{client: c}
}

// Landing is where the last Submit ended.
func (n *BrowserNavigator) Landing() *url.URL {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.landing
}

// Visits lists every non-form page the navigator was sent to.
func (n *BrowserNavigator) Visits() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.visits...)
}

func (n *BrowserNavigator) Submit(ctx context.Context, form gateway.Form) error {
	for hop := 0; hop < maxFormHops; hop++ {
		next, landing, err := n.post(ctx, form)
		if err != nil {
			return err
		}
		if landing != nil {
			n.mu.Lock()
			n.landing = landing
			n.mu.Unlock()
			return nil
		}
		form = next
	}
	return fmt.Errorf("initiator: gave up after %d form submissions", maxFormHops)
}

func (n *BrowserNavigator) BackToCheckout(_ context.Context, source Source) error {
	n.visit("checkout:" + string(source))
	return nil
}

func (n *BrowserNavigator) OrderHistory(_ context.Context, orderID string) error {
	n.visit("orders:" + orderID)
	return nil
}

func (n *BrowserNavigator) visit(page string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.visits = append(n.visits, page)
}

// post submits form and returns either the next form to submit or the
// landing URL of a redirect.
func (n *BrowserNavigator) post(ctx context.Context, form gateway.Form) (gateway.Form, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, form.Action, strings.NewReader(form.Fields.Values().Encode()))
	if err != nil {
		return gateway.Form{}, nil, fmt.Errorf("initiator: build form post: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return gateway.Form{}, nil, fmt.Errorf("initiator: post form to %s: %w", form.Action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc, err := resp.Location()
		if err != nil {
			return gateway.Form{}, nil, fmt.Errorf("initiator: redirect without location: %w", err)
		}
		return gateway.Form{}, loc, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return gateway.Form{}, nil, fmt.Errorf("initiator: %s answered %d: %s", form.Action, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	next, err := parseForm(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gateway.Form{}, nil, err
	}
	if next.Action, err = resolve(req.URL, next.Action); err != nil {
		return gateway.Form{}, nil, err
	}
	return next, nil, nil
}

// parseForm reads the first form of an HTML page.
func parseForm(r io.Reader) (gateway.Form, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return gateway.Form{}, fmt.Errorf("initiator: parse page: %w", err)
	}

	var form *html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if form != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "form" {
			form = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)
	if form == nil {
		return gateway.Form{}, errNoForm
	}

	out := gateway.Form{Action: attr(form, "action"), Fields: gateway.Fields{}}
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			if name := attr(n, "name"); name != "" {
				out.Fields[name] = attr(n, "value")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(form)
	return out, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("initiator: bad form action %q: %w", ref, err)
	}
	return base.ResolveReference(u).String(), nil
}
