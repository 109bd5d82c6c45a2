package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"pairwise/internal/config"
	"pairwise/internal/content"
	"pairwise/internal/domain"
	"pairwise/internal/events"
	"pairwise/internal/logging"
	"pairwise/internal/metrics"
	"pairwise/internal/repo"
	"pairwise/internal/rotation"
	"pairwise/internal/tokens"
)

var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrGroupClosed         = errors.New("group is closed")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotSupervisor       = errors.New("only the group supervisor may do this")
	ErrLockTimeout         = errors.New("group is busy")
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Tokens  *tokens.Allocator
	Content *content.Dispenser
	Log     *zap.Logger
	Metrics metrics.Collector
	Now     func() time.Time

	locks   *xsync.Map[string, chan struct{}]
	tokenMu *sync.Mutex
}

// New wires an engine over db. The token pool and prompt categories come
// from cfg; persisted content and the token cursor are loaded by Restore.
func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default("pairwise")
	}
	words := cfg.Tokens.Words
	if len(words) == 0 {
		words = tokens.DefaultWords
	}
	categories := cfg.Content.Categories
	if len(categories) == 0 {
		categories = content.DefaultCategories
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Tokens: tokens.New(words...),
		Content: content.NewDispenser(content.NewCatalog(), content.Options{
			Fallbacks: categories,
			Default:   cfg.Content.Default,
		}),
		Log:     zap.NewNop(),
		Metrics: metrics.Nop{},
		Now:     time.Now,
		locks:   xsync.NewMap[string, chan struct{}](),
		tokenMu: &sync.Mutex{},
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *zap.Logger {
	return logging.OrNop(e.Log)
}

func (e Engine) metrics() metrics.Collector {
	if e.Metrics == nil {
		return metrics.Nop{}
	}
	return e.Metrics
}

// lockGroup serialises mutations of one group. It waits until the group is
// free or ctx is done.
func (e Engine) lockGroup(ctx context.Context, token string) (func(), error) {
	ch, _ := e.locks.LoadOrStore(token, make(chan struct{}, 1))
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, token, ctx.Err())
	}
}

// Restore loads the content catalog and the token cursor from the database.
// An empty catalog is seeded from config, or the built-in prompts.
func (e Engine) Restore(ctx context.Context) error {
	n, err := e.Repo.CountContent(ctx)
	if err != nil {
		return fmt.Errorf("count content: %w", err)
	}
	if n == 0 {
		if err := e.seedContent(ctx); err != nil {
			return err
		}
	}
	items, err := e.Repo.ListContent(ctx)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	e.Content.Catalog().Replace(items)

	cursor, err := e.Repo.TokenCursor(ctx)
	if err != nil {
		return fmt.Errorf("load token cursor: %w", err)
	}
	e.Tokens.Restore(cursor)
	e.log().Debug("engine state restored", zap.Int("content_items", len(items)), zap.Int("token_cursor", cursor))
	return nil
}

func (e Engine) seedContent(ctx context.Context) error {
	var seeds []domain.ContentItem
	if e.Config != nil {
		for _, s := range e.Config.Content.Items {
			seeds = append(seeds, domain.ContentItem{Text: s.Text, Tags: s.Tags})
		}
	}
	if len(seeds) == 0 {
		seeds = content.DefaultItems()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := e.stamp()
	for _, s := range seeds {
		s.ID = 0
		if _, err := e.Repo.InsertContentTx(ctx, tx, s, now); err != nil {
			return fmt.Errorf("seed content: %w", err)
		}
	}
	return tx.Commit()
}

// AllocateToken hands out the next token from the circular pool and
// persists the cursor.
func (e Engine) AllocateToken(ctx context.Context) (string, error) {
	e.tokenMu.Lock()
	defer e.tokenMu.Unlock()
	tok, err := e.allocateLocked(ctx)
	if err != nil {
		return "", err
	}
	e.metrics().TokenDispensed(false)
	return tok, nil
}

// allocateLocked advances the pool and persists the cursor. On a failed save
// the cursor is put back, so memory never runs ahead of the database.
func (e Engine) allocateLocked(ctx context.Context) (string, error) {
	prev := e.Tokens.Cursor()
	tok := e.Tokens.Next()
	if err := e.Repo.SaveTokenCursor(ctx, e.Tokens.Cursor()); err != nil {
		e.Tokens.Restore(prev)
		return "", fmt.Errorf("save token cursor: %w", err)
	}
	return tok, nil
}

// TokenStats reports the pool size and position.
func (e Engine) TokenStats() domain.TokenStats {
	return e.Tokens.Stats()
}

// CreateGroupOptions are parameters for opening a group.
type CreateGroupOptions struct {
	SupervisorID string
	// SupervisorParticipates overrides rounds.supervisor_participates.
	SupervisorParticipates *bool
}

// CreateGroup opens a group under a freshly allocated token. A token already
// held by another group is suffixed -2, -3 and so on.
func (e Engine) CreateGroup(ctx context.Context, opts CreateGroupOptions) (domain.Group, error) {
	opts.SupervisorID = strings.TrimSpace(opts.SupervisorID)
	if opts.SupervisorID == "" {
		return domain.Group{}, errors.New("supervisor id is required")
	}
	participates := e.Config != nil && e.Config.Rounds.SupervisorParticipates
	if opts.SupervisorParticipates != nil {
		participates = *opts.SupervisorParticipates
	}
	// Held until commit so two creations cannot claim the same suffix.
	e.tokenMu.Lock()
	defer e.tokenMu.Unlock()
	base, err := e.allocateLocked(ctx)
	if err != nil {
		return domain.Group{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Group{}, err
	}
	defer tx.Rollback()

	var lookupErr error
	token := tokens.Disambiguate(base, func(candidate string) bool {
		taken, err := e.Repo.TokenTaken(ctx, tx, candidate)
		if err != nil && lookupErr == nil {
			lookupErr = err
		}
		return taken
	})
	if lookupErr != nil {
		return domain.Group{}, fmt.Errorf("check token: %w", lookupErr)
	}
	g := domain.Group{
		Token:                  token,
		SupervisorID:           opts.SupervisorID,
		SupervisorParticipates: participates,
		Participants:           []domain.Participant{},
		NextJoinOrder:          1,
		CreatedAt:              e.stamp(),
	}
	if err := e.Repo.InsertGroupTx(ctx, tx, g); err != nil {
		return domain.Group{}, fmt.Errorf("insert group: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.GroupCreated, g.Token, "group", g.Token, opts.SupervisorID, events.EventPayload{
		"supervisor_participates": participates,
	}); err != nil {
		return domain.Group{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Group{}, err
	}
	e.metrics().TokenDispensed(token != base)
	e.metrics().GroupsChanged(1)
	e.log().Info("group created", zap.String("group", g.Token), zap.String("supervisor", g.SupervisorID))
	return g, nil
}

func (e Engine) GetGroup(ctx context.Context, token string) (domain.Group, error) {
	g, err := e.Repo.GetGroup(ctx, token)
	if err != nil {
		return g, groupErr(token, err)
	}
	return g, nil
}

func (e Engine) ListGroups(ctx context.Context, includeClosed bool) ([]domain.Group, error) {
	return e.Repo.ListGroups(ctx, includeClosed)
}

func groupErr(token string, err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrGroupNotFound, token)
	}
	return err
}

func requireSupervisor(g domain.Group, actorID string) error {
	if actorID != g.SupervisorID {
		return fmt.Errorf("%w: %s", ErrNotSupervisor, g.Token)
	}
	return nil
}

// mutate runs fn on the current group state inside a transaction while the
// group lock is held.
func (e Engine) mutate(ctx context.Context, token string, fn func(tx *sql.Tx, g domain.Group) error) error {
	unlock, err := e.lockGroup(ctx, token)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	g, err := e.Repo.GetGroupTx(ctx, tx, token)
	if err != nil {
		return groupErr(token, err)
	}
	if err := fn(tx, g); err != nil {
		return err
	}
	return tx.Commit()
}

// JoinGroup adds a participant to an open group. Ids and join order are
// handed out from one per-group sequence and never reused.
func (e Engine) JoinGroup(ctx context.Context, token, name string) (domain.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Guest"
	}
	var p domain.Participant
	err := e.mutate(ctx, token, func(tx *sql.Tx, g domain.Group) error {
		if g.Closed() {
			return fmt.Errorf("%w: %s", ErrGroupClosed, token)
		}
		seq := g.NextJoinOrder
		if seq < 1 {
			seq = 1
		}
		p = domain.Participant{
			ID:         seq,
			GroupToken: g.Token,
			Name:       name,
			JoinOrder:  seq,
			JoinedAt:   e.stamp(),
		}
		if err := e.Repo.InsertParticipantTx(ctx, tx, p); err != nil {
			return fmt.Errorf("insert participant: %w", err)
		}
		g.NextJoinOrder = seq + 1
		if err := e.Repo.UpdateGroupTx(ctx, tx, g); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.ParticipantJoined, g.Token, "participant", fmt.Sprint(p.ID), name, events.EventPayload{
			"name":       name,
			"join_order": p.JoinOrder,
		})
	})
	if err != nil {
		return domain.Participant{}, err
	}
	e.log().Info("participant joined", zap.String("group", token), zap.Int64("participant", p.ID))
	return p, nil
}

// LeaveGroup removes a participant at their own request.
func (e Engine) LeaveGroup(ctx context.Context, token string, participantID int64) error {
	return e.removeParticipant(ctx, token, participantID, "", events.ParticipantLeft)
}

// RemoveParticipant removes a participant on the supervisor's behalf.
func (e Engine) RemoveParticipant(ctx context.Context, token string, participantID int64, actorID string) error {
	return e.removeParticipant(ctx, token, participantID, actorID, events.ParticipantRemoved)
}

func (e Engine) removeParticipant(ctx context.Context, token string, id int64, actorID, evtType string) error {
	err := e.mutate(ctx, token, func(tx *sql.Tx, g domain.Group) error {
		if evtType == events.ParticipantRemoved {
			if err := requireSupervisor(g, actorID); err != nil {
				return err
			}
		}
		p, ok := g.Participant(id)
		if !ok {
			return fmt.Errorf("%w: %d in %s", ErrParticipantNotFound, id, token)
		}
		if err := e.Repo.DeleteParticipantTx(ctx, tx, token, id); err != nil {
			return err
		}
		if actorID == "" {
			actorID = p.Name
		}
		return e.Events.Append(ctx, tx, evtType, token, "participant", fmt.Sprint(id), actorID, events.EventPayload{
			"name":        p.Name,
			"round_count": p.RoundCount,
		})
	})
	if err != nil {
		return err
	}
	e.log().Info("participant left", zap.String("group", token), zap.Int64("participant", id), zap.String("event", evtType))
	return nil
}

// SetSupervisorParticipation toggles whether the supervisor fills odd seats.
func (e Engine) SetSupervisorParticipation(ctx context.Context, token string, participates bool, actorID string) (domain.Group, error) {
	var out domain.Group
	err := e.mutate(ctx, token, func(tx *sql.Tx, g domain.Group) error {
		if err := requireSupervisor(g, actorID); err != nil {
			return err
		}
		if g.Closed() {
			return fmt.Errorf("%w: %s", ErrGroupClosed, token)
		}
		g.SupervisorParticipates = participates
		if err := e.Repo.UpdateGroupTx(ctx, tx, g); err != nil {
			return err
		}
		out = g
		return e.Events.Append(ctx, tx, events.SupervisorChanged, token, "group", token, actorID, events.EventPayload{
			"supervisor_participates": participates,
		})
	})
	return out, err
}

// RunRoundOptions are parameters for running a round.
type RunRoundOptions struct {
	ActorID string
	// WithContent dispenses one prompt per pair.
	WithContent bool
	// Category selects prompts; empty uses rounds.default_category.
	Category string
}

// RunRound computes, records and returns the next round of a group. Nothing
// is written unless the whole round succeeds.
func (e Engine) RunRound(ctx context.Context, token string, opts RunRoundOptions) (domain.RoundResult, error) {
	start := e.now()
	var res domain.RoundResult
	err := e.mutate(ctx, token, func(tx *sql.Tx, g domain.Group) error {
		if err := requireSupervisor(g, opts.ActorID); err != nil {
			return err
		}
		if g.Closed() {
			return fmt.Errorf("%w: %s", ErrGroupClosed, token)
		}
		next, planned, err := PlanRound(g)
		if err != nil {
			return err
		}
		planned.CreatedAt = e.stamp()
		if opts.WithContent {
			category := opts.Category
			if category == "" && e.Config != nil {
				category = e.Config.Rounds.DefaultCategory
			}
			planned.Content = make([]string, len(planned.Pairs))
			for i := range planned.Pairs {
				planned.Content[i] = e.DispenseContent(token, category)
			}
		}
		if err := e.Repo.UpdateGroupTx(ctx, tx, next); err != nil {
			return fmt.Errorf("update group: %w", err)
		}
		for _, p := range next.Participants {
			if err := e.Repo.UpdateParticipantTx(ctx, tx, p); err != nil {
				return fmt.Errorf("update participant %d: %w", p.ID, err)
			}
		}
		if err := e.Repo.InsertRoundTx(ctx, tx, token, planned); err != nil {
			return fmt.Errorf("insert round: %w", err)
		}
		payload := events.EventPayload{
			"round_number":      planned.RoundNumber,
			"pairs":             planned.Pairs,
			"supervisor_paired": planned.SupervisorPaired,
		}
		if planned.SittingOut != nil {
			payload["sitting_out"] = *planned.SittingOut
		}
		if err := e.Events.Append(ctx, tx, events.RoundCompleted, token, "round", fmt.Sprint(planned.RoundNumber), opts.ActorID, payload); err != nil {
			return err
		}
		res = planned
		return nil
	})
	if err != nil {
		e.metrics().RoundRejected(rejectReason(err))
		e.log().Warn("round rejected", zap.String("group", token), zap.Error(err))
		return domain.RoundResult{}, err
	}
	e.metrics().RoundCompleted(len(res.Pairs), res.SupervisorPaired, res.SittingOut != nil, e.now().Sub(start).Seconds())
	e.log().Info("round completed",
		zap.String("group", token),
		zap.Int("round", res.RoundNumber),
		zap.Int("pairs", len(res.Pairs)),
		zap.Bool("supervisor_paired", res.SupervisorPaired))
	return res, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, rotation.ErrNotEnoughParticipants):
		return "not_enough_participants"
	case errors.Is(err, rotation.ErrInvalidRoster):
		return "invalid_roster"
	case errors.Is(err, ErrGroupNotFound):
		return "not_found"
	case errors.Is(err, ErrGroupClosed):
		return "closed"
	case errors.Is(err, ErrNotSupervisor):
		return "forbidden"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	default:
		return "internal"
	}
}

// History returns every round of a group, oldest first.
func (e Engine) History(ctx context.Context, token string) ([]domain.RoundResult, error) {
	if _, err := e.GetGroup(ctx, token); err != nil {
		return nil, err
	}
	return e.Repo.ListRounds(ctx, token)
}

// LatestRound returns the most recent round, or repo.ErrNotFound before the
// first one.
func (e Engine) LatestRound(ctx context.Context, token string) (domain.RoundResult, error) {
	if _, err := e.GetGroup(ctx, token); err != nil {
		return domain.RoundResult{}, err
	}
	return e.Repo.LatestRound(ctx, token)
}

// ExportState returns the persisted-state record of a group.
func (e Engine) ExportState(ctx context.Context, token string) (domain.GroupState, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.GroupState{}, err
	}
	defer tx.Rollback()
	g, err := e.Repo.GetGroupTx(ctx, tx, token)
	if err != nil {
		return domain.GroupState{}, groupErr(token, err)
	}
	history, err := e.Repo.ListRoundsTx(ctx, tx, token)
	if err != nil {
		return domain.GroupState{}, err
	}
	return StateOf(g, history), nil
}

// ImportOptions are parameters for rebuilding a group from its record.
type ImportOptions struct {
	SupervisorID           string
	SupervisorParticipates bool
}

// ImportState rebuilds a group from a persisted-state record under the
// record's token.
func (e Engine) ImportState(ctx context.Context, st domain.GroupState, opts ImportOptions) (domain.Group, error) {
	if strings.TrimSpace(st.Token) == "" {
		return domain.Group{}, errors.New("state token is required")
	}
	if strings.TrimSpace(opts.SupervisorID) == "" {
		return domain.Group{}, errors.New("supervisor id is required")
	}
	if err := checkHistory(st); err != nil {
		return domain.Group{}, err
	}
	now := e.stamp()
	g := domain.Group{
		Token:                  st.Token,
		SupervisorID:           opts.SupervisorID,
		SupervisorParticipates: opts.SupervisorParticipates,
		Rotation:               st.Rotation,
		RoundCounter:           st.RoundCounter,
		NextJoinOrder:          1,
		CreatedAt:              now,
	}
	seen := map[int64]bool{}
	for _, ps := range st.Participants {
		if ps.ID <= 0 || seen[ps.ID] {
			return domain.Group{}, fmt.Errorf("%w: participant id %d", rotation.ErrInvalidRoster, ps.ID)
		}
		seen[ps.ID] = true
		g.Participants = append(g.Participants, domain.Participant{
			ID:         ps.ID,
			GroupToken: st.Token,
			Name:       fmt.Sprintf("participant-%d", ps.ID),
			JoinOrder:  ps.JoinOrder,
			RoundCount: ps.RoundCount,
			LedCounts:  ps.LedCounts,
			JoinedAt:   now,
		})
		if ps.ID >= g.NextJoinOrder {
			g.NextJoinOrder = ps.ID + 1
		}
		if ps.JoinOrder >= g.NextJoinOrder {
			g.NextJoinOrder = ps.JoinOrder + 1
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Group{}, err
	}
	defer tx.Rollback()
	taken, err := e.Repo.TokenTaken(ctx, tx, st.Token)
	if err != nil {
		return domain.Group{}, err
	}
	if taken {
		return domain.Group{}, fmt.Errorf("group %s already exists", st.Token)
	}
	if err := e.Repo.InsertGroupTx(ctx, tx, g); err != nil {
		return domain.Group{}, err
	}
	for _, p := range g.Participants {
		if err := e.Repo.InsertParticipantTx(ctx, tx, domain.Participant{
			ID: p.ID, GroupToken: p.GroupToken, Name: p.Name, JoinOrder: p.JoinOrder, RoundCount: p.RoundCount, JoinedAt: p.JoinedAt,
		}); err != nil {
			return domain.Group{}, err
		}
	}
	for _, p := range g.Participants {
		for follower := range p.LedCounts {
			if !seen[follower] {
				return domain.Group{}, fmt.Errorf("%w: lead count names unknown participant %d", rotation.ErrInvalidRoster, follower)
			}
		}
		if err := e.Repo.UpdateParticipantTx(ctx, tx, p); err != nil {
			return domain.Group{}, err
		}
	}
	for _, r := range st.History {
		if err := e.Repo.InsertRoundTx(ctx, tx, st.Token, r); err != nil {
			return domain.Group{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, events.GroupImported, st.Token, "group", st.Token, opts.SupervisorID, events.EventPayload{
		"participants":  len(g.Participants),
		"round_counter": g.RoundCounter,
	}); err != nil {
		return domain.Group{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Group{}, err
	}
	e.metrics().GroupsChanged(1)
	return e.GetGroup(ctx, st.Token)
}

// checkHistory requires the record's history to be rounds 1..roundCounter in
// order; later rounds are numbered from the counter.
func checkHistory(st domain.GroupState) error {
	if st.RoundCounter < 0 {
		return fmt.Errorf("invalid state: round counter %d", st.RoundCounter)
	}
	if len(st.History) != st.RoundCounter {
		return fmt.Errorf("invalid state: %d rounds in history, round counter %d", len(st.History), st.RoundCounter)
	}
	for i, r := range st.History {
		if r.RoundNumber != i+1 {
			return fmt.Errorf("invalid state: history entry %d has round number %d", i+1, r.RoundNumber)
		}
	}
	return nil
}

// CloseGroup ends a group. Its history is kept; its prompt cursors are
// dropped.
func (e Engine) CloseGroup(ctx context.Context, token, actorID string) (domain.Group, error) {
	var out domain.Group
	err := e.mutate(ctx, token, func(tx *sql.Tx, g domain.Group) error {
		if err := requireSupervisor(g, actorID); err != nil {
			return err
		}
		if g.Closed() {
			return fmt.Errorf("%w: %s", ErrGroupClosed, token)
		}
		ended := e.stamp()
		g.EndedAt = &ended
		if err := e.Repo.UpdateGroupTx(ctx, tx, g); err != nil {
			return err
		}
		out = g
		return e.Events.Append(ctx, tx, events.GroupClosed, token, "group", token, actorID, events.EventPayload{
			"rounds":       g.RoundCounter,
			"participants": len(g.Participants),
		})
	})
	if err != nil {
		return domain.Group{}, err
	}
	e.Content.Reset(token)
	// A closed group takes no further mutations; its lock slot goes with it.
	e.locks.Delete(token)
	e.metrics().GroupsChanged(-1)
	e.log().Info("group closed", zap.String("group", token))
	return out, nil
}

// DispenseContent returns the next prompt for scope and category.
func (e Engine) DispenseContent(scope, category string) string {
	text, source := e.Content.Dispense(scope, category)
	e.metrics().ContentDispensed(string(source))
	return text
}

// AddContent stores a prompt and makes it available to every dispenser
// cursor.
func (e Engine) AddContent(ctx context.Context, text string, tags []string, actorID string) (domain.ContentItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ContentItem{}, errors.New("content text is required")
	}
	clean := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ContentItem{}, err
	}
	defer tx.Rollback()
	item, err := e.Repo.InsertContentTx(ctx, tx, domain.ContentItem{Text: text, Tags: clean}, e.stamp())
	if err != nil {
		return domain.ContentItem{}, fmt.Errorf("insert content: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.ContentAdded, "", "content", fmt.Sprint(item.ID), actorID, events.EventPayload{
		"tags": clean,
	}); err != nil {
		return domain.ContentItem{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ContentItem{}, err
	}
	return e.Content.Catalog().Add(item), nil
}

// ListContent returns the in-memory catalog in id order.
func (e Engine) ListContent() []domain.ContentItem {
	return e.Content.Catalog().Items()
}

// ListEvents returns the newest events, optionally for one group.
func (e Engine) ListEvents(ctx context.Context, token, evtType string, limit int, cursor int64) ([]domain.Event, error) {
	if token != "" {
		if _, err := e.GetGroup(ctx, token); err != nil {
			return nil, err
		}
	}
	return e.Repo.LatestEvents(ctx, limit, cursor, token, evtType)
}
