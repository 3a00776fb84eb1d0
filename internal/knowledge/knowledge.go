// Package knowledge lets the bot read web pages once, distill them into
// short facts, and recall those facts per guild.
package knowledge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"tika/pkg/tika"
)

// PluginName is the guild store plugin document holding learned knowledge.
const PluginName = "knowledge_base"

const (
	learnedURLsKey = "learned_urls"
	factsKey       = "facts"

	defaultFetchTimeout = 15 * time.Second
	defaultMaxBodyBytes = 2 << 20
	defaultUserAgent    = "tika-bot/1.0 (+knowledge fetcher)"

	// fallbackFactLimit bounds facts produced without a distiller.
	fallbackFactLimit = 400
)

// Distiller reduces scraped page text to one short remembered fact.
type Distiller interface {
	DistillFact(ctx context.Context, sourceURL, pageText string) (string, error)
}

// Service fetches pages, extracts their visible text, and stores distilled
// facts in the guild document store. Every URL is fetched at most once per
// guild.
type Service struct {
	store     tika.GuildStore
	logger    *slog.Logger
	client    *http.Client
	distiller Distiller

	maxBodyBytes int64
	userAgent    string

	guildMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithHTTPClient overrides the fetch client.
func WithHTTPClient(client *http.Client) ServiceOption {
	return func(s *Service) {
		if client != nil {
			s.client = client
		}
	}
}

// WithDistiller sets the fact distiller. A configured distiller is
// authoritative: learning fails when it errors or produces no fact, and
// nothing is persisted. Without one, a bounded page excerpt stands in.
func WithDistiller(distiller Distiller) ServiceOption {
	return func(s *Service) {
		if distiller != nil {
			s.distiller = distiller
		}
	}
}

// WithMaxBodyBytes bounds how much of a fetched page is read.
func WithMaxBodyBytes(limit int64) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.maxBodyBytes = limit
		}
	}
}

// NewService creates a knowledge service backed by store.
func NewService(store tika.GuildStore, logger *slog.Logger, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("new knowledge service: nil store")
	}
	if logger == nil {
		logger = slog.Default()
	}

	service := &Service{
		store:        store,
		logger:       logger,
		client:       &http.Client{Timeout: defaultFetchTimeout},
		maxBodyBytes: defaultMaxBodyBytes,
		userAgent:    defaultUserAgent,
		locks:        make(map[int64]*sync.Mutex),
	}
	for _, option := range options {
		option(service)
	}

	return service, nil
}

// LearnFromURL fetches one page and remembers a distilled fact for the guild.
//
// learned reports whether the URL is part of the guild's knowledge after the
// call: a URL that was already read returns (true, "", nil) without a network
// request, so an empty fact on success means nothing new was stored. A
// corrupt knowledge document is an error so learning never overwrites
// unreadable state.
func (s *Service) LearnFromURL(ctx context.Context, guildID int64, rawURL string) (learned bool, fact string, err error) {
	pageURL, err := normalizePageURL(rawURL)
	if err != nil {
		return false, "", fmt.Errorf("learn from url: %w", err)
	}

	lock := s.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	document, err := s.store.Read(guildID, PluginName)
	if err != nil {
		return false, "", fmt.Errorf("learn from url %s: %w", pageURL, err)
	}

	learnedURLs := decodeStrings(document, learnedURLsKey)
	for _, known := range learnedURLs {
		if known == pageURL {
			return true, "", nil
		}
	}

	pageText, err := s.fetchPageText(ctx, pageURL)
	if err != nil {
		return false, "", fmt.Errorf("learn from url %s: %w", pageURL, err)
	}

	fact, err = s.distillFact(ctx, pageURL, pageText)
	if err != nil {
		return false, "", fmt.Errorf("learn from url %s: %w", pageURL, err)
	}
	if fact == "" {
		return false, "", fmt.Errorf("learn from url %s: page had no usable text", pageURL)
	}

	document[learnedURLsKey] = appendString(document, learnedURLsKey, pageURL)
	document[factsKey] = appendString(document, factsKey, fact)
	if err := s.store.Write(guildID, PluginName, document); err != nil {
		return false, "", fmt.Errorf("learn from url %s: %w", pageURL, err)
	}

	s.logger.Info("learned new fact",
		"guild_id", guildID,
		"url", pageURL,
		"fact_length", len(fact),
	)

	return true, fact, nil
}

// Facts returns the guild's remembered facts in learning order.
func (s *Service) Facts(guildID int64) ([]string, error) {
	document, err := s.store.Read(guildID, PluginName)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}

	return decodeStrings(document, factsKey), nil
}

// LearnedURLs returns the guild's already-read URLs in learning order.
func (s *Service) LearnedURLs(guildID int64) ([]string, error) {
	document, err := s.store.Read(guildID, PluginName)
	if err != nil {
		return nil, fmt.Errorf("list learned urls: %w", err)
	}

	return decodeStrings(document, learnedURLsKey), nil
}

// Forget deletes the guild's entire knowledge document.
func (s *Service) Forget(guildID int64) error {
	lock := s.guildLock(guildID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Delete(guildID, PluginName); err != nil {
		return fmt.Errorf("forget knowledge: %w", err)
	}

	return nil
}

// fetchPageText downloads one page and extracts its visible text.
func (s *Service) fetchPageText(ctx context.Context, pageURL string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("User-Agent", s.userAgent)
	request.Header.Set("Accept", "text/html")

	response, err := s.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", fmt.Errorf("fetch page: unexpected status %d", response.StatusCode)
	}
	contentType := response.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return "", fmt.Errorf("fetch page: unsupported content type %q", contentType)
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, s.maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read page body: %w", err)
	}

	if strings.Contains(contentType, "text/plain") {
		return collapseWhitespace(string(body)), nil
	}

	return extractVisibleText(body)
}

// distillFact produces the fact to remember. A configured distiller is
// authoritative: its error or an empty result fails the learn. Only when no
// distiller is configured does a bounded page excerpt stand in.
func (s *Service) distillFact(ctx context.Context, pageURL, pageText string) (string, error) {
	if s.distiller == nil {
		excerpt := strings.TrimSpace(pageText)
		if len(excerpt) > fallbackFactLimit {
			excerpt = strings.TrimSpace(excerpt[:fallbackFactLimit]) + "…"
		}

		return excerpt, nil
	}

	fact, err := s.distiller.DistillFact(ctx, pageURL, pageText)
	if err != nil {
		s.logger.Warn("fact distillation failed",
			"url", pageURL,
			"error", err,
		)

		return "", fmt.Errorf("distill fact: %w", err)
	}
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return "", fmt.Errorf("distill fact: no usable fact in page")
	}

	return fact, nil
}

func (s *Service) guildLock(guildID int64) *sync.Mutex {
	s.guildMu.Lock()
	defer s.guildMu.Unlock()

	lock, exists := s.locks[guildID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[guildID] = lock
	}

	return lock
}

// normalizePageURL validates and canonicalizes one page URL.
func normalizePageURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("empty url")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("url has no host")
	}
	parsed.Fragment = ""

	return parsed.String(), nil
}

// extractVisibleText parses HTML and returns its visible text with collapsed
// whitespace. Script, style, and noscript subtrees are skipped.
func extractVisibleText(body []byte) (string, error) {
	root, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	builder := &strings.Builder{}
	var walk func(node *html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch node.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if node.Type == html.TextNode {
			text := strings.TrimSpace(node.Data)
			if text != "" {
				if builder.Len() > 0 {
					builder.WriteByte(' ')
				}
				builder.WriteString(text)
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(root)

	return collapseWhitespace(builder.String()), nil
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func decodeStrings(document tika.Document, key string) []string {
	rawValues, _ := document[key].([]any)
	values := make([]string, 0, len(rawValues))
	for _, raw := range rawValues {
		value, ok := raw.(string)
		if !ok {
			continue
		}
		values = append(values, value)
	}

	return values
}

func appendString(document tika.Document, key, value string) []any {
	existing, _ := document[key].([]any)

	return append(existing, value)
}
