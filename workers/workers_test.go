package workers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tcg-companion/alerts"
	"tcg-companion/config"
	"tcg-companion/models"
	"tcg-companion/tcgplayer"
	"tcg-companion/testutil"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
func i64ptr(v int64) *int64   { return &v }

var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

// standing is one row of a fake results table.
type standing struct {
	Place      string
	PlayerSlug string // empty renders the name without a profile link
	PlayerName string
	DeckName   string
	DeckListID string // empty renders no list link
}

// limitlessSite serves listing, results and deck-list pages from in-memory fixtures.
type limitlessSite struct {
	mu          sync.Mutex
	total       int // tournaments in the listing
	perPage     int
	standings   map[string][]standing
	decklists   map[string]string
	failResults map[string]int // tournament id -> remaining 503s
	requests    map[string]int
}

func newLimitlessSite() *limitlessSite {
	return &limitlessSite{
		perPage:     100,
		standings:   map[string][]standing{},
		decklists:   map[string]string{},
		failResults: map[string]int{},
		requests:    map[string]int{},
	}
}

func (s *limitlessSite) hit(key string) {
	s.mu.Lock()
	s.requests[key]++
	s.mu.Unlock()
}

func (s *limitlessSite) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

func (s *limitlessSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tournaments", func(w http.ResponseWriter, r *http.Request) {
		s.hit("listing")
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		maxPages := (s.total + s.perPage - 1) / s.perPage
		first := (page-1)*s.perPage + 1
		n := min(s.perPage, s.total-first+1)
		fmt.Fprint(w, listingHTML(first, max(n, 0), maxPages))
	})
	mux.HandleFunc("GET /tournaments/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s.hit("results/" + id)
		s.mu.Lock()
		fail := s.failResults[id]
		if fail > 0 {
			s.failResults[id]--
		}
		s.mu.Unlock()
		if fail > 0 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		rows, ok := s.standings[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, resultsHTML(rows))
	})
	mux.HandleFunc("GET /decks/list/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		s.hit("decklist/" + id)
		body, ok := s.decklists[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	})
	return mux
}

func listingHTML(first, n, maxPages int) string {
	var b strings.Builder
	b.WriteString("<html><body><table>")
	for i := first; i < first+n; i++ {
		fmt.Fprintf(&b, `<tr data-date="2025-02-%02d" data-name="Regionals %d" data-players="%d">`+
			`<td>d</td><td>c</td><td><a href="/tournaments/%d">Regionals %d</a></td><td>%d</td>`+
			`<td><a href="/players/p%d">Player %d</a></td></tr>`,
			i%28+1, i, 10+i, i, i, 10+i, i, i)
	}
	b.WriteString("</table>")
	fmt.Fprintf(&b, `<ul class="pagination" data-max="%d"></ul></body></html>`, maxPages)
	return b.String()
}

func resultsHTML(rows []standing) string {
	var b strings.Builder
	b.WriteString("<html><body><table><tr><th>#</th><th>Name</th><th>Deck</th><th></th></tr>")
	for _, r := range rows {
		list := ""
		if r.DeckListID != "" {
			list = fmt.Sprintf(`<a href="/decks/list/%s">list</a>`, r.DeckListID)
		}
		player := r.PlayerName
		if r.PlayerSlug != "" {
			player = fmt.Sprintf(`<a href="/players/%s">%s</a>`, r.PlayerSlug, r.PlayerName)
		}
		fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td><a href="/decks/1">%s</a></td><td>%s</td></tr>`,
			r.Place, player, r.DeckName, list)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

// decklistHTML renders a leader column followed by a main-deck column of "CODE:count" entries.
func decklistHTML(leader string, cards ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="decklist">`)
	fmt.Fprintf(&b, `<div class="decklist-column"><div class="decklist-column-heading">Leader</div><a data-code="%s" data-count="1">x</a></div>`, leader)
	b.WriteString(`<div class="decklist-column"><div class="decklist-column-heading">Character</div>`)
	for _, c := range cards {
		code, n, _ := strings.Cut(c, ":")
		fmt.Fprintf(&b, `<a data-code="%s" data-count="%s">x</a>`, code, n)
	}
	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

// tcgAPI is a fake TCGplayer API over an in-memory catalog.
type tcgAPI struct {
	mu       sync.Mutex
	ids      []int64
	products map[int64]string
	pricing  []map[string]any
	pricingN int
}

func (a *tcgAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /catalog/categories/68/search", func(w http.ResponseWriter, r *http.Request) {
		var req tcgplayer.SearchRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		a.mu.Lock()
		ids := a.ids
		a.mu.Unlock()
		page := []int64{}
		if req.Offset < len(ids) {
			page = ids[req.Offset:min(req.Offset+req.Limit, len(ids))]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "totalItems": len(ids), "results": page})
	})
	mux.HandleFunc("GET /catalog/products/{ids}", func(w http.ResponseWriter, r *http.Request) {
		results := []json.RawMessage{}
		for _, raw := range strings.Split(r.PathValue("ids"), ",") {
			id, _ := strconv.ParseInt(raw, 10, 64)
			a.mu.Lock()
			body, ok := a.products[id]
			a.mu.Unlock()
			if ok {
				results = append(results, json.RawMessage(body))
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "results": results})
	})
	mux.HandleFunc("GET /pricing/product/{ids}", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.pricingN++
		results := a.pricing
		a.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "results": results})
	})
	return mux
}

func (a *tcgAPI) setCatalog(ids ...int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = ids
	a.products = map[int64]string{}
	for _, id := range ids {
		a.products[id] = fmt.Sprintf(`{"productId":%d,"name":"Card %d","cleanName":"Card %d","categoryId":68,"groupId":1,`+
			`"extendedData":[{"name":"CardType","value":"Character"},{"name":"Number","value":"OP01-%03d"}]}`, id, id, id, id%1000)
	}
}

type env struct {
	db     *gorm.DB
	site   *limitlessSite
	api    *tcgAPI
	runner *Runner
	sleeps []time.Duration
	clock  time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{db: testutil.NewDB(t), site: newLimitlessSite(), api: &tcgAPI{}, clock: testNow}

	siteSrv := httptest.NewServer(e.site.handler())
	t.Cleanup(siteSrv.Close)
	apiSrv := httptest.NewServer(e.api.handler())
	t.Cleanup(apiSrv.Close)

	cfg := config.Default()
	cfg.Limitless.BaseURL = siteSrv.URL
	cfg.Sync.Delay = 0
	cfg.Sync.PageSize = 2
	cfg.Sync.PriceBatch = 100

	now := func() time.Time { return e.clock }
	e.runner = NewRunner(Deps{
		DB:     e.db,
		Config: cfg,
		TCGplayer: tcgplayer.NewClient(tcgplayer.Config{BaseURL: apiSrv.URL, HTTPClient: apiSrv.Client()},
			tcgplayer.StaticToken("test-token")),
		Evaluator: alerts.NewEvaluator(alerts.WithClock(now)),
		Retry:     &RetryPolicy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		Now:       now,
		Sleep: func(ctx context.Context, d time.Duration) error {
			e.sleeps = append(e.sleeps, d)
			return ctx.Err()
		},
	})
	return e
}

func (e *env) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := e.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (e *env) seedCards(t *testing.T, codes ...string) map[string]uint {
	t.Helper()
	ids := map[string]uint{}
	for _, code := range codes {
		c := models.Card{Code: code, Name: code}
		require.NoError(t, e.db.Create(&c).Error)
		ids[code] = c.ID
	}
	return ids
}

// seedTournament inserts a limitless tournament whose results live on the fake site.
func (e *env) seedTournament(t *testing.T, sourceID string, daysAgo int) models.Tournament {
	t.Helper()
	var src models.TournamentSource
	require.NoError(t, e.db.Where(models.TournamentSource{Slug: models.SourceLimitless}).
		Attrs(models.TournamentSource{Name: "Limitless TCG"}).FirstOrCreate(&src).Error)

	date := testNow.AddDate(0, 0, -daysAgo)
	tr := models.Tournament{
		SourceID:           src.ID,
		SourceTournamentID: sourceID,
		Name:               "Regionals " + sourceID,
		EventDate:          &date,
		TournamentURL:      e.runner.cfg.Limitless.BaseURL + "/tournaments/" + sourceID,
		Status:             models.TournamentStatusCompleted,
	}
	require.NoError(t, e.db.Create(&tr).Error)
	return tr
}
