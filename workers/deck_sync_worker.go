package workers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tcg-companion/models"
	"tcg-companion/reconcile"
	"tcg-companion/resolver"
	"tcg-companion/scraper"
)

type DeckSyncOptions struct {
	Limit int // tournaments to process, newest first; 0 uses SYNC_DECK_LIMIT
}

type DeckSyncSummary struct {
	RunID       string `json:"run_id"`
	Tournaments int    `json:"tournaments"`
	Results     int    `json:"results"`
	Created     int    `json:"created"`
	Updated     int    `json:"updated"`
	Skipped     int    `json:"skipped"`
	DecksBuilt  int    `json:"decks_built"`
	Unresolved  int    `json:"unresolved_cards"`
}

// SourceDeckRef is the idempotency key of a tournament placement. The deck-list id alone
// repeats across tournaments, so the tournament, player and standing are folded in.
func SourceDeckRef(sourceTournamentID, deckListID, playerName string, standing *int) string {
	player := slug.Make(playerName)
	if player == "" {
		player = "unknown"
	}
	place := "na"
	if standing != nil {
		place = strconv.Itoa(*standing)
	}
	return fmt.Sprintf("limitless-%s-%s-%s-%s", sourceTournamentID, deckListID, player, place)
}

// LegacySourceDeckRef is the key format used before refs were made tournament specific.
func LegacySourceDeckRef(deckListID string) string {
	return "limitless-" + deckListID
}

func deckUniqueURL(deckListID string) string {
	return "limitless-" + deckListID
}

// SyncLimitlessTournamentDecks imports standings and deck lists for the most recent
// Limitless tournaments. Rows without a deck list are skipped, unknown card codes are
// dropped, and decks that were already built are never rebuilt.
func (r *Runner) SyncLimitlessTournamentDecks(ctx context.Context, opts DeckSyncOptions) (DeckSyncSummary, error) {
	release, err := r.acquire(PipelineDecks)
	if err != nil {
		return DeckSyncSummary{}, err
	}
	defer release()

	start := time.Now()
	sum, err := r.syncDecks(ctx, opts)
	observe(PipelineDecks, start, false, err)

	metrics := reconcile.Result{Created: sum.Created, Updated: sum.Updated, Skipped: sum.Skipped}
	countEntities(PipelineDecks, metrics)

	if err != nil {
		r.log.Error().Err(err).Str("run_id", sum.RunID).Msg("❌ [SYNC] deck sync failed")
		return sum, err
	}
	r.log.Info().
		Str("run_id", sum.RunID).
		Int("tournaments", sum.Tournaments).
		Int("created", sum.Created).
		Int("updated", sum.Updated).
		Int("skipped", sum.Skipped).
		Int("decks_built", sum.DecksBuilt).
		Int("unresolved", sum.Unresolved).
		Msg("✅ [SYNC] tournament decks synced")
	return sum, nil
}

type placement struct {
	tournament models.Tournament
	row        scraper.ResultRow
	ref        string
	list       *scraper.DeckList

	// resolved from list before the write transaction
	leaderID *uint
	cards    []models.DeckCard
}

func (r *Runner) syncDecks(ctx context.Context, opts DeckSyncOptions) (DeckSyncSummary, error) {
	sum := DeckSyncSummary{RunID: newRunID()}
	db := r.db.WithContext(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = r.cfg.Sync.DeckLimit
	}

	var source models.TournamentSource
	if err := db.Where("slug = ?", models.SourceLimitless).First(&source).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sum, fmt.Errorf("no limitless tournaments yet, run the tournament sync first")
		}
		return sum, err
	}

	q := db.Where("source_id = ? AND tournament_url <> ''", source.ID).
		Order("event_date IS NULL, event_date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var tournaments []models.Tournament
	if err := q.Find(&tournaments).Error; err != nil {
		return sum, fmt.Errorf("failed to load tournaments: %w", err)
	}

	client, err := r.limitlessClient(sum.RunID)
	if err != nil {
		return sum, err
	}

	store := &deckStore{resolver: resolver.NewCache(r.db), runner: r}
	first := true
	pace := func() error {
		if first {
			first = false
			return nil
		}
		return r.sleep(ctx, r.cfg.Sync.Delay)
	}

	for _, t := range tournaments {
		if err := pace(); err != nil {
			return sum, err
		}
		rows, err := Retry(ctx, r.retry, "limitless standings", func() ([]scraper.ResultRow, error) {
			return client.FetchTournamentResultRows(ctx, t.TournamentURL)
		})
		if err != nil {
			return sum, fmt.Errorf("tournament %s: %w", t.SourceTournamentID, err)
		}
		sum.Tournaments++
		sum.Results += len(rows)

		var batch []placement
		for _, row := range rows {
			if row.DeckListURL == "" || row.DeckListID == "" {
				sum.Skipped++
				continue
			}
			p := placement{
				tournament: t,
				row:        row,
				ref:        SourceDeckRef(t.SourceTournamentID, row.DeckListID, row.PlayerName, row.Standing),
			}

			built, err := store.hasDeck(db, p)
			if err != nil {
				return sum, err
			}
			if !built {
				if err := pace(); err != nil {
					return sum, err
				}
				list, err := Retry(ctx, r.retry, "limitless deck list", func() (scraper.DeckList, error) {
					return client.FetchDeckList(ctx, row.DeckListURL)
				})
				if err != nil {
					return sum, fmt.Errorf("deck list %s: %w", row.DeckListID, err)
				}
				p.list = &list
				if err := store.resolve(ctx, &p); err != nil {
					return sum, err
				}
			}
			batch = append(batch, p)
		}

		if len(batch) == 0 {
			continue
		}

		// one transaction per placement so every deck rebuild is atomic on its own
		noDelay := time.Duration(0)
		res, err := reconcile.Run[placement](ctx, r.db, singlePage(batch), store, reconcile.Options{
			PageSize:  reconcile.MaxPageSize,
			ChunkSize: 1,
			Delay:     &noDelay,
			Now:       r.now,
		})
		sum.Created += res.Created
		sum.Updated += res.Updated
		sum.Skipped += res.Skipped
		if err != nil {
			return sum, fmt.Errorf("tournament %s: %w", t.SourceTournamentID, err)
		}
	}

	sum.DecksBuilt = store.built
	sum.Unresolved = store.unresolved
	return sum, nil
}

// singlePage serves items as one final page.
func singlePage[T any](items []T) reconcile.Source[T] {
	return reconcile.SourceFunc[T](func(context.Context, reconcile.PageRequest) (reconcile.PageResult[T], error) {
		return reconcile.PageResult[T]{Items: items, Last: true}, nil
	})
}

type deckStore struct {
	resolver   resolver.CardIDResolver
	runner     *Runner
	built      int
	unresolved int
}

func (s *deckStore) Key(p placement) string { return p.ref }

// findPlacement looks a placement up by its ref, then by the legacy ref within the same
// tournament.
func findPlacement(tx *gorm.DB, p placement) (models.TournamentDeck, error) {
	var td models.TournamentDeck
	if err := tx.Where("source_deck_ref = ?", p.ref).Limit(1).Find(&td).Error; err != nil || td.ID != 0 {
		return td, err
	}
	err := tx.Where("source_deck_ref = ? AND tournament_id = ?", LegacySourceDeckRef(p.row.DeckListID), p.tournament.ID).
		Limit(1).Find(&td).Error
	return td, err
}

func (s *deckStore) hasDeck(db *gorm.DB, p placement) (bool, error) {
	td, err := findPlacement(db, p)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", p.ref, err)
	}
	return td.DeckID != nil, nil
}

func (s *deckStore) Upsert(tx *gorm.DB, p placement, stamp time.Time) (reconcile.Outcome, error) {
	existing, err := findPlacement(tx, p)
	if err != nil {
		return reconcile.OutcomeSkipped, err
	}

	playerID, err := upsertPlayer(tx, p.row)
	if err != nil {
		return reconcile.OutcomeSkipped, err
	}

	td := models.TournamentDeck{
		TournamentID:  p.tournament.ID,
		DeckID:        existing.DeckID,
		LeaderCardID:  existing.LeaderCardID,
		PlayerID:      playerID,
		PlayerName:    p.row.PlayerName,
		Standing:      p.row.Standing,
		DeckSourceURL: p.row.DeckListURL,
		ArchetypeName: p.row.DeckName,
		SourceDeckRef: p.ref,
	}

	if td.DeckID == nil && p.list != nil {
		deckID, leaderID, err := s.buildDeck(tx, p)
		if err != nil {
			return reconcile.OutcomeSkipped, err
		}
		td.DeckID = &deckID
		td.LeaderCardID = leaderID
	}

	if existing.ID == 0 {
		if err := tx.Create(&td).Error; err != nil {
			return reconcile.OutcomeSkipped, err
		}
		return reconcile.OutcomeCreated, nil
	}

	// a legacy match is migrated to the composite ref here
	if err := tx.Model(&existing).Select(
		"deck_id", "leader_card_id", "player_id", "player_name", "standing",
		"deck_source_url", "archetype_name", "source_deck_ref",
	).Updates(&td).Error; err != nil {
		return reconcile.OutcomeSkipped, err
	}
	return reconcile.OutcomeUpdated, nil
}

func upsertPlayer(tx *gorm.DB, row scraper.ResultRow) (*uint, error) {
	id := row.PlayerID()
	if id == "" {
		return nil, nil
	}
	player := models.Player{
		Source:         models.SourceLimitless,
		SourcePlayerID: id,
		Name:           row.PlayerName,
		ProfileURL:     row.PlayerURL,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "source_player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "profile_url", "updated_at"}),
	}).Create(&player).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert player %s: %w", id, err)
	}
	if err := tx.Where("source = ? AND source_player_id = ?", player.Source, id).First(&player).Error; err != nil {
		return nil, err
	}
	return &player.ID, nil
}

// resolve maps the list's card codes to catalog IDs. Unknown codes are dropped.
func (s *deckStore) resolve(ctx context.Context, p *placement) error {
	if p.list.LeaderCode != "" {
		id, err := s.resolver.Resolve(ctx, p.list.LeaderCode)
		if err != nil {
			return err
		}
		p.leaderID = id
	}
	p.cards = make([]models.DeckCard, 0, len(p.list.Cards))
	for _, c := range p.list.Cards {
		id, err := s.resolver.Resolve(ctx, c.Code)
		if err != nil {
			return err
		}
		if id == nil {
			s.unresolved++
			continue
		}
		p.cards = append(p.cards, models.DeckCard{CardID: *id, Quantity: c.Quantity, Section: c.Section})
	}
	return nil
}

// buildDeck finds or creates the deck for the placement's list and replaces its cards.
func (s *deckStore) buildDeck(tx *gorm.DB, p placement) (uint, *uint, error) {
	leaderID := p.leaderID
	cards := append([]models.DeckCard(nil), p.cards...)

	name := p.row.DeckName
	if name == "" {
		name = p.row.PlayerName + "'s deck"
	}
	deck := models.Deck{
		Name:         name,
		UniqueURL:    deckUniqueURL(p.row.DeckListID),
		Source:       models.SourceLimitless,
		LeaderCardID: leaderID,
		IsPublic:     true,
	}
	if err := tx.Where("unique_url = ?", deck.UniqueURL).
		Assign(models.Deck{Name: deck.Name, LeaderCardID: leaderID, Source: deck.Source}).
		FirstOrCreate(&deck).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to save deck %s: %w", deck.UniqueURL, err)
	}

	// full replace: the list is rewritten as a whole, never diffed
	if err := tx.Where("deck_id = ?", deck.ID).Delete(&models.DeckCard{}).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to clear deck %d cards: %w", deck.ID, err)
	}
	for i := range cards {
		cards[i].DeckID = deck.ID
	}
	if len(cards) > 0 {
		if err := tx.Create(&cards).Error; err != nil {
			return 0, nil, fmt.Errorf("failed to write deck %d cards: %w", deck.ID, err)
		}
	}
	s.built++
	return deck.ID, leaderID, nil
}
