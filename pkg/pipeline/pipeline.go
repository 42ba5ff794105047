// Package pipeline orchestrates every character data request: resolve the
// character, probe the cache, gate the upstream call, validate, normalize,
// persist, respond. One generic pipeline serves all kinds; per-kind behavior
// is parameterized by freshness window and extra filters.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/cubelab/maple-proxy/pkg/apierr"
	"github.com/cubelab/maple-proxy/pkg/logging"
	"github.com/cubelab/maple-proxy/pkg/ratelimit"
	"github.com/cubelab/maple-proxy/pkg/schema"
	"github.com/cubelab/maple-proxy/pkg/store"
	"github.com/cubelab/maple-proxy/pkg/timeutil"
	"github.com/cubelab/maple-proxy/pkg/upstream"
)

// Cache outcomes recorded per request.
const (
	OutcomeHit    = "hit"
	OutcomeMiss   = "miss"
	OutcomeForced = "forced"
)

// DefaultFreshnessWindow applies to every kind without an override.
const DefaultFreshnessWindow = time.Hour

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Fetcher is the upstream surface the pipeline needs.
type Fetcher interface {
	Fetch(ctx context.Context, endpointKey string, params map[string]string) (json.RawMessage, error)
}

// Config parameterizes freshness windows.
type Config struct {
	// DefaultWindow is the freshness window for kinds without an override.
	DefaultWindow time.Duration

	// KindWindows overrides the window per kind.
	KindWindows map[schema.Kind]time.Duration
}

// Request is one character data request.
type Request struct {
	Kind          schema.Kind
	OCID          string
	CharacterName string
	Date          string
	ForceRefresh  bool
	Extra         map[string]string
}

// Result is a successfully served request.
type Result struct {
	OCID         string
	Data         json.RawMessage
	Message      string
	CacheOutcome string
}

// Pipeline is the shared fetch orchestration. It is safe for concurrent use.
type Pipeline struct {
	store   *store.Store
	client  Fetcher
	limiter ratelimit.Limiter
	norm    *timeutil.Normalizer
	cfg     Config
	logger  zerolog.Logger
}

// New creates a Pipeline.
func New(st *store.Store, client Fetcher, limiter ratelimit.Limiter, norm *timeutil.Normalizer, cfg Config) *Pipeline {
	if cfg.DefaultWindow <= 0 {
		cfg.DefaultWindow = DefaultFreshnessWindow
	}
	return &Pipeline{
		store:   st,
		client:  client,
		limiter: limiter,
		norm:    norm,
		cfg:     cfg,
		logger:  logging.NewLogger("pipeline"),
	}
}

// Window returns the freshness window for a kind.
func (p *Pipeline) Window(kind schema.Kind) time.Duration {
	if w, ok := p.cfg.KindWindows[kind]; ok && w > 0 {
		return w
	}
	return p.cfg.DefaultWindow
}

// Resolve maps a character name to its identity, consulting the store first
// and the upstream on a miss. The discovered identity is persisted before
// returning.
func (p *Pipeline) Resolve(ctx context.Context, name string) (*store.CharacterIdentity, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	identity, err := p.store.GetIdentityByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		return identity, nil
	}

	raw, err := p.gatedFetch(ctx, upstream.EndpointID, map[string]string{"character_name": name})
	if err != nil {
		if apierr.KindOf(err) == apierr.KindNotFound {
			return nil, notFoundError(name)
		}
		return nil, err
	}

	id, err := schema.DecodeCharacterID(raw)
	if err != nil {
		return nil, err
	}

	identity = &store.CharacterIdentity{
		OCID:          id.OCID,
		CharacterName: name,
	}
	if err := p.store.PutIdentity(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// Fetch serves one character data request end to end.
func (p *Pipeline) Fetch(ctx context.Context, req Request) (*Result, error) {
	if !req.Kind.Valid() {
		return nil, apierr.New(apierr.KindNotFound, "").
			WithDetail(fmt.Sprintf("unknown data kind %q", req.Kind))
	}
	if req.Date != "" && !datePattern.MatchString(req.Date) {
		return nil, apierr.New(apierr.KindBadParameter, "").
			WithDetail("date must match YYYY-MM-DD")
	}

	// An explicit ocid wins over a character name.
	ocid := req.OCID
	if ocid == "" {
		if req.CharacterName == "" {
			return nil, apierr.New(apierr.KindBadParameter, "").
				WithDetail("either ocid or character_name is required")
		}
		identity, err := p.Resolve(ctx, req.CharacterName)
		if err != nil {
			return nil, err
		}
		ocid = identity.OCID
	}

	filters := extraFilters(req)
	window := p.Window(req.Kind)

	if !req.ForceRefresh {
		record, err := p.store.GetFresh(ctx, ocid, req.Kind, window, filters)
		if err != nil {
			return nil, err
		}
		if record != nil {
			return &Result{
				OCID:         ocid,
				Data:         record.Payload,
				Message:      "cached",
				CacheOutcome: OutcomeHit,
			}, nil
		}
	} else if stale, _ := p.store.GetAny(ctx, ocid, req.Kind, filters); stale != nil {
		p.logger.Debug().
			Str("ocid", ocid).
			Str("kind", string(req.Kind)).
			Time("captured_at", stale.CapturedAt).
			Msg("Forced refresh bypassing stale record")
	}

	// Every kind hangs off the identity row; make sure it exists before the
	// target fetch. The basic kind fills it in itself below.
	if req.Kind != schema.KindBasic {
		if err := p.ensureIdentity(ctx, ocid, req.Date); err != nil {
			return nil, err
		}
	}

	params := map[string]string{"ocid": ocid}
	if req.Date != "" {
		params["date"] = req.Date
	}
	for k, v := range filters {
		params[k] = v
	}

	raw, err := p.gatedFetch(ctx, endpointKey(req.Kind), params)
	if err != nil {
		return nil, err
	}

	payload, err := schema.Decode(req.Kind, raw)
	if err != nil {
		// A bad upstream payload fails the request but leaves existing
		// cache entries untouched.
		return nil, err
	}

	capturedAt := p.capturedAt(payload)

	if _, err := p.store.Put(ctx, ocid, req.Kind, filters, raw, capturedAt); err != nil {
		if req.ForceRefresh {
			p.logger.Warn().
				Err(err).
				Str("ocid", ocid).
				Str("kind", string(req.Kind)).
				Msg("Forced refresh fetched but not persisted")
			return &Result{
				OCID:         ocid,
				Data:         raw,
				Message:      "fresh, not persisted",
				CacheOutcome: OutcomeForced,
			}, nil
		}
		return nil, err
	}

	if req.Kind == schema.KindBasic {
		if basic, ok := payload.(*schema.CharacterBasic); ok {
			if err := p.store.PutIdentity(ctx, identityFrom(ocid, basic)); err != nil {
				p.logger.Warn().Err(err).Str("ocid", ocid).Msg("Failed to upsert identity from basic")
			}
		}
	}

	outcome := OutcomeMiss
	if req.ForceRefresh {
		outcome = OutcomeForced
	}
	return &Result{
		OCID:         ocid,
		Data:         raw,
		Message:      fmt.Sprintf("fetched %s", req.Kind),
		CacheOutcome: outcome,
	}, nil
}

// ensureIdentity guarantees the identity row for ocid exists, reusing a
// fresh basic record when available and fetching basic otherwise.
func (p *Pipeline) ensureIdentity(ctx context.Context, ocid, date string) error {
	identity, err := p.store.GetIdentityByOCID(ctx, ocid)
	if err != nil {
		return err
	}
	if identity != nil {
		return nil
	}

	var raw json.RawMessage
	record, err := p.store.GetFresh(ctx, ocid, schema.KindBasic, p.Window(schema.KindBasic), nil)
	if err != nil {
		return err
	}
	if record != nil {
		raw = record.Payload
	} else {
		params := map[string]string{"ocid": ocid}
		if date != "" {
			params["date"] = date
		}
		raw, err = p.gatedFetch(ctx, upstream.EndpointBasic, params)
		if err != nil {
			return err
		}
	}

	payload, err := schema.Decode(schema.KindBasic, raw)
	if err != nil {
		return err
	}
	basic := payload.(*schema.CharacterBasic)

	if record == nil {
		if _, err := p.store.Put(ctx, ocid, schema.KindBasic, nil, raw, p.capturedAt(basic)); err != nil {
			return err
		}
	}
	return p.store.PutIdentity(ctx, identityFrom(ocid, basic))
}

// gatedFetch acquires a rate limit token and performs the upstream call.
// The token is refunded only when the call never started.
func (p *Pipeline) gatedFetch(ctx context.Context, endpointKey string, params map[string]string) (json.RawMessage, error) {
	if err := p.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		p.limiter.Refund()
		if err == context.DeadlineExceeded {
			return nil, apierr.Wrap(apierr.KindTimeout, "", err)
		}
		return nil, apierr.Wrap(apierr.KindUnknown, "request cancelled", err)
	}
	return p.client.Fetch(ctx, endpointKey, params)
}

// capturedAt normalizes the payload's own date, falling back to now.
func (p *Pipeline) capturedAt(payload schema.Payload) time.Time {
	if date := payload.CaptureDate(); date != "" {
		return p.norm.ToLocal(date)
	}
	return p.norm.Now()
}

// endpointKey maps a kind to its upstream endpoint key.
func endpointKey(kind schema.Kind) string {
	return string(kind)
}

// extraFilters returns the request's extra filters, adding the grade-5
// selector the V-matrix synthesis path requires. Filters participate in both
// the cache key and the upstream query.
func extraFilters(req Request) map[string]string {
	if req.Kind != schema.KindVMatrix && len(req.Extra) == 0 {
		return nil
	}
	filters := make(map[string]string, len(req.Extra)+1)
	for k, v := range req.Extra {
		filters[k] = v
	}
	if req.Kind == schema.KindVMatrix {
		if _, ok := filters["character_skill_grade"]; !ok {
			filters["character_skill_grade"] = "5"
		}
	}
	return filters
}

func identityFrom(ocid string, basic *schema.CharacterBasic) *store.CharacterIdentity {
	return &store.CharacterIdentity{
		OCID:           ocid,
		CharacterName:  basic.CharacterName,
		WorldName:      basic.WorldName,
		CharacterClass: basic.CharacterClass,
		CharacterLevel: basic.CharacterLevel,
	}
}

func validateName(name string) error {
	if n := utf8.RuneCountInString(name); n < 2 || n > 12 {
		return apierr.New(apierr.KindBadParameter, "").
			WithDetail("character_name must be 2-12 characters")
	}
	return nil
}

func notFoundError(name string) error {
	return apierr.New(apierr.KindNotFound, fmt.Sprintf("'%s' 캐릭터를 찾을 수 없습니다.", name))
}
