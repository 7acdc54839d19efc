package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aosk-dev/nftmedia/internal/domain/model"
	"github.com/aosk-dev/nftmedia/internal/domain/repository"
	"github.com/aosk-dev/nftmedia/internal/infrastructure/metrics"
	"github.com/aosk-dev/nftmedia/internal/mediatype"
)

var (
	// ErrNilNFT is returned when a verification is requested without a registry record.
	ErrNilNFT = errors.New("nft record is required")
)

// VerifyInput carries one verification trigger for an NFT.
type VerifyInput struct {
	// NFT is the registry record whose declared media is verified. Its raw
	// metadata document parses at this boundary; a parse failure suppresses
	// the metadata-driven branches of the triggering contract.
	NFT *model.NFT
	// IsPreview marks a UI context that needs only a thumbnail.
	IsPreview bool
	// IgnoreSizeLimit lifts the binary content download cap.
	IgnoreSizeLimit bool
	// ForceValidate forces a full verification pass regardless of preview mode.
	ForceValidate bool
}

// MediaVerifier orchestrates media verification for wallet NFTs: it reuses
// persisted verdicts, delegates fetching and hashing to the content
// fetcher, and exposes validity, loading, and thumbnail state to the
// rendering layer.
type MediaVerifier interface {
	// Trigger evaluates the triggering contract and returns the current
	// session snapshot. A pass it starts runs asynchronously; the wallet
	// polls until the state settles. Re-invocation with unchanged
	// dependencies never starts a second pass.
	Trigger(ctx context.Context, input VerifyInput) (model.VerificationState, error)

	// Verify evaluates the triggering contract and awaits any pass it
	// starts. Concurrent verifies for the same NFT coalesce.
	Verify(ctx context.Context, input VerifyInput) (model.VerificationState, error)
}

// VerifierConfig holds configuration for MediaVerifier.
type VerifierConfig struct {
	// MaxFileSize caps binary content downloads unless a size-limit bypass
	// or force-validate is requested. Default: 104857600 (100 MiB)
	MaxFileSize int64
}

// DefaultVerifierConfig returns the default configuration.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		MaxFileSize: 100 << 20,
	}
}

type mediaVerifier struct {
	fetcher repository.ContentFetcher
	cache   repository.MediaCacheStore
	bridge  repository.CacheBridge

	maxFileSize int64

	mu       sync.Mutex
	sessions map[string]*verifySession
	sfGroup  singleflight.Group
}

// NewMediaVerifier creates a new MediaVerifier instance.
func NewMediaVerifier(
	fetcher repository.ContentFetcher,
	cache repository.MediaCacheStore,
	bridge repository.CacheBridge,
	cfg VerifierConfig,
) MediaVerifier {
	return &mediaVerifier{
		fetcher:     fetcher,
		cache:       cache,
		bridge:      bridge,
		maxFileSize: cfg.MaxFileSize,
		sessions:    make(map[string]*verifySession),
	}
}

// verifySession holds the UI-facing verification state for one NFT plus
// the bookkeeping that supersedes stale passes. State survives across
// triggers the way it does across renders: only a new pass resets it.
type verifySession struct {
	mu         sync.Mutex
	state      model.VerificationState
	lastKey    string
	generation uint64
	cancel     context.CancelFunc
}

// commit applies fn to the session state unless a newer pass has started
// since generation gen was captured. Reports whether the commit applied.
func (s *verifySession) commit(gen uint64, fn func(st *model.VerificationState)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	fn(&s.state)
	return true
}

// pass carries the transient state of one verification pass. pending is
// the pass-scoped failure reason with overwrite-on-record semantics: the
// last recorded failure wins, and an empty value at finalize means the
// pass verified clean.
type pass struct {
	session *verifySession
	gen     uint64
	input   VerifyInput
	meta    *model.Metadata
	pending string
}

// Trigger implements MediaVerifier.
func (s *mediaVerifier) Trigger(ctx context.Context, input VerifyInput) (model.VerificationState, error) {
	return s.evaluate(ctx, input, true)
}

// Verify implements MediaVerifier.
func (s *mediaVerifier) Verify(ctx context.Context, input VerifyInput) (model.VerificationState, error) {
	if input.NFT == nil {
		return model.VerificationState{}, ErrNilNFT
	}

	result, err, shared := s.sfGroup.Do(input.NFT.ID, func() (any, error) {
		return s.evaluate(ctx, input, false)
	})

	if shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if err != nil {
		return model.VerificationState{}, err
	}
	return result.(model.VerificationState), nil
}

// evaluate applies the triggering contract:
//   - metadata present without error and (preview mode or audio primary
//     content) runs a full pass with that metadata;
//   - else an image primary or force-validate runs a full pass with empty
//     metadata;
//   - else outside preview mode the persisted content verdict is checked
//     without any fetching;
//   - else there is nothing to verify.
//
// Independently of the branch, a persisted content verdict that is already
// valid forces validity; a completing pass may overwrite it.
func (s *mediaVerifier) evaluate(ctx context.Context, input VerifyInput, async bool) (model.VerificationState, error) {
	if input.NFT == nil {
		return model.VerificationState{}, ErrNilNFT
	}

	nftID := input.NFT.ID
	sess := s.session(nftID)

	meta, metaErr := model.ParseMetadata(input.NFT.Metadata)
	if metaErr != nil {
		slog.Warn("failed to parse nft metadata",
			"nft_id", nftID,
			"error", metaErr,
		)
	}

	forceReload, err := s.cache.ForceReload(ctx, nftID)
	if err != nil {
		slog.Warn("force-reload read failed, treating as unset",
			"nft_id", nftID,
			"error", err,
		)
	}

	key := dependencyKey(meta, metaErr, input.NFT.DataURI, input.IgnoreSizeLimit, forceReload, input.ForceValidate)

	sess.mu.Lock()
	if sess.lastKey == key {
		out := sess.state
		sess.mu.Unlock()
		return finishSnapshot(out, input), nil
	}
	sess.lastKey = key
	sess.generation++
	gen := sess.generation
	if sess.cancel != nil {
		// Supersede the in-flight pass; its remaining commits are
		// discarded by the generation guard.
		sess.cancel()
		sess.cancel = nil
	}

	var passMeta *model.Metadata
	runsPass := false
	cacheOnly := false
	switch {
	case meta != nil && metaErr == nil && (input.IsPreview || mediatype.IsAudio(input.NFT.DataURI)):
		passMeta = meta
		runsPass = true
	case mediatype.IsImage(input.NFT.DataURI) || input.ForceValidate:
		passMeta = &model.Metadata{}
		runsPass = true
	case !input.IsPreview:
		cacheOnly = true
	}

	var passCtx context.Context
	var cancel context.CancelFunc
	if runsPass {
		passCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
		sess.cancel = cancel
		// Step 1 of the pass commits here, synchronously, so the caller's
		// snapshot already reflects the run.
		sess.state.Error = ""
		sess.state.IsLoading = true
		sess.state.IsValid = false
	} else if !cacheOnly {
		sess.state.IsLoading = false
		sess.state.IsValid = false
	}
	sess.mu.Unlock()

	if cacheOnly {
		s.checkContentCache(ctx, sess, gen, input)
	}

	s.applyContentShortCircuit(ctx, sess, gen, nftID)

	if runsPass {
		p := &pass{session: sess, gen: gen, input: input, meta: passMeta}
		if async {
			go func() {
				defer cancel()
				s.runPass(passCtx, p)
			}()
		} else {
			s.runPass(passCtx, p)
			cancel()
		}
	}

	return s.snapshot(sess, input), nil
}

// session returns the per-NFT verification session, creating it on first use.
func (s *mediaVerifier) session(nftID string) *verifySession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[nftID]
	if !ok {
		sess = &verifySession{}
		s.sessions[nftID] = sess
	}
	return sess
}

// snapshot returns a copy of the session state adjusted to the output contract.
func (s *mediaVerifier) snapshot(sess *verifySession, input VerifyInput) model.VerificationState {
	sess.mu.Lock()
	out := sess.state
	sess.mu.Unlock()
	return finishSnapshot(out, input)
}

// finishSnapshot applies the output contract: the loading flag only
// surfaces in preview mode and the validate flag echoes the caller's.
func finishSnapshot(out model.VerificationState, input VerifyInput) model.VerificationState {
	if !input.IsPreview {
		out.IsLoading = false
	}
	out.Validate = input.ForceValidate
	return out
}

// dependencyKey fingerprints the reactive inputs of the triggering
// contract. A new pass runs only when the key changes.
func dependencyKey(meta *model.Metadata, metaErr error, dataURI string, ignoreSizeLimit, forceReload, forceValidate bool) string {
	return fmt.Sprintf("%s|%s|%t|%t|%t",
		metadataFingerprint(meta, metaErr),
		dataURI,
		ignoreSizeLimit,
		forceReload,
		forceValidate,
	)
}

func metadataFingerprint(meta *model.Metadata, metaErr error) string {
	if metaErr != nil {
		return "err:" + metaErr.Error()
	}
	if meta == nil {
		return "absent"
	}
	return strings.Join([]string{
		strings.Join(meta.PreviewVideoURIs, ","),
		meta.PreviewVideoHash,
		strings.Join(meta.PreviewImageURIs, ","),
		meta.PreviewImageHash,
	}, "|")
}

// runPass executes verification steps two through six: preconditions, the
// video, image, and binary branches, and finalization. The state reset of
// step one already happened at trigger time.
func (s *mediaVerifier) runPass(ctx context.Context, p *pass) {
	if !s.checkPreconditions(p) {
		return
	}

	videoSucceeded := false
	if p.meta.HasVideoPreview() {
		if done := s.verifyVideoPreviews(ctx, p); done {
			return
		}
		videoSucceeded = p.pending == ""
	}

	if p.meta.HasImagePreview() && !videoSucceeded {
		if done := s.verifyImagePreviews(ctx, p); done {
			return
		}
	}

	if mediatype.IsImage(p.input.NFT.DataURI) || !p.input.IsPreview {
		s.verifyContent(ctx, p)
	}

	s.finalize(p)
}

// checkPreconditions aborts the pass when a preview URI list is declared
// without its matching hash. Reports whether the pass may proceed. All
// remaining branches are skipped on abort, so the processed flag stays
// unset.
func (s *mediaVerifier) checkPreconditions(p *pass) bool {
	var reason string
	switch {
	case p.meta.HasVideoPreview() && p.meta.PreviewVideoHash == "":
		reason = model.ErrMissingPreviewVideoHash.Error()
	case p.meta.HasImagePreview() && p.meta.PreviewImageHash == "":
		reason = model.ErrMissingPreviewImageHash.Error()
	default:
		return true
	}

	applied := p.session.commit(p.gen, func(st *model.VerificationState) {
		st.Error = reason
		st.IsValid = false
		st.IsLoading = false
	})
	countPass(applied, false)
	return false
}

// verifyVideoPreviews resolves the video thumbnail. A persisted video
// reference is authoritative: adopting it ends the pass without
// re-fetching. Returns true when the pass is complete.
func (s *mediaVerifier) verifyVideoPreviews(ctx context.Context, p *pass) bool {
	nftID := p.input.NFT.ID

	cached, err := s.cache.GetThumbnail(ctx, nftID)
	if err != nil {
		slog.Warn("thumbnail cache read failed, treating as miss",
			"nft_id", nftID,
			"error", err,
		)
	}
	if cached != nil && cached.Video != "" {
		applied := p.session.commit(p.gen, func(st *model.VerificationState) {
			st.Thumbnail.Video = model.CachedURIFromRef(cached.Video)
			st.IsValid = true
			st.IsLoading = false
		})
		countPass(applied, true)
		return true
	}

	for _, uri := range p.meta.PreviewVideoURIs {
		if ctx.Err() != nil {
			metrics.VerificationPassesTotal.WithLabelValues(metrics.PassResultSuperseded).Inc()
			return true
		}

		s.noteInvalidURI(p, uri, mediatype.ClassVideo)

		res, err := s.fetcher.Fetch(ctx, repository.FetchRequest{
			URI:          uri,
			Class:        mediatype.ClassVideo,
			ExpectedHash: p.meta.PreviewVideoHash,
			NFTID:        nftID,
		})
		if err != nil {
			p.pending = model.ErrFailedFetchContent.Error()
			continue
		}
		if !res.Valid {
			p.pending = model.ErrThumbnailHashMismatch.Error()
			continue
		}

		s.requestCacheAdjustment(ctx, nftID)

		thumb := uri
		if res.Cached {
			thumb = model.CachedURI(nftID, uri)
			s.persistThumbnailRef(ctx, nftID, func(entry *repository.ThumbnailCacheEntry) {
				entry.Video = model.EncodeCacheRef(nftID, uri)
			})
		}
		p.session.commit(p.gen, func(st *model.VerificationState) {
			st.Thumbnail.Video = thumb
		})
		p.pending = ""
		break
	}

	return false
}

// verifyImagePreviews resolves the image thumbnail. The persisted image
// reference is re-checked before every candidate, not just once: an
// earlier run's cache hit may have persisted it mid-list. Returns true
// when the pass is complete.
func (s *mediaVerifier) verifyImagePreviews(ctx context.Context, p *pass) bool {
	nftID := p.input.NFT.ID

	for _, uri := range p.meta.PreviewImageURIs {
		if ctx.Err() != nil {
			metrics.VerificationPassesTotal.WithLabelValues(metrics.PassResultSuperseded).Inc()
			return true
		}

		cached, err := s.cache.GetThumbnail(ctx, nftID)
		if err != nil {
			slog.Warn("thumbnail cache read failed, treating as miss",
				"nft_id", nftID,
				"error", err,
			)
		}
		if cached != nil && cached.Image != "" {
			applied := p.session.commit(p.gen, func(st *model.VerificationState) {
				st.Thumbnail.Image = model.CachedURIFromRef(cached.Image)
				st.IsValid = true
				st.IsLoading = false
			})
			countPass(applied, true)
			return true
		}

		s.noteInvalidURI(p, uri, mediatype.ClassImage)

		res, err := s.fetcher.Fetch(ctx, repository.FetchRequest{
			URI:          uri,
			Class:        mediatype.ClassImage,
			ExpectedHash: p.meta.PreviewImageHash,
			NFTID:        nftID,
		})
		if err != nil {
			p.pending = model.ErrFailedFetchContent.Error()
			continue
		}
		if !res.Valid {
			p.pending = model.ErrThumbnailHashMismatch.Error()
			continue
		}

		thumb := uri
		if res.Cached {
			thumb = model.CachedURI(nftID, uri)
			s.persistThumbnailRef(ctx, nftID, func(entry *repository.ThumbnailCacheEntry) {
				entry.Image = model.EncodeCacheRef(nftID, uri)
			})
		}
		p.session.commit(p.gen, func(st *model.VerificationState) {
			st.Thumbnail.Image = thumb
		})
		p.pending = ""
		break
	}

	return false
}

// verifyContent resolves the NFT's binary content. A persisted content
// entry is authoritative and adopted without re-verification.
func (s *mediaVerifier) verifyContent(ctx context.Context, p *pass) {
	nftID := p.input.NFT.ID

	entry, err := s.cache.GetContent(ctx, nftID)
	if err != nil {
		slog.Warn("content cache read failed, treating as miss",
			"nft_id", nftID,
			"error", err,
		)
	}
	if entry != nil {
		s.adoptContentEntry(ctx, p, entry)
		return
	}

	maxSize := s.maxFileSize
	if p.input.IgnoreSizeLimit || p.input.ForceValidate {
		maxSize = 0
	}

	res, err := s.fetcher.Fetch(ctx, repository.FetchRequest{
		URI:          p.input.NFT.DataURI,
		Class:        mediatype.ClassBinary,
		ExpectedHash: p.input.NFT.DataHash,
		MaxSize:      maxSize,
		ForceCache:   true,
		NFTID:        nftID,
	})
	if err != nil {
		// Transport failures surface their raw message and leave no
		// content entry behind, so a later pass retries the fetch.
		p.pending = err.Error()
		return
	}

	if !res.Valid {
		p.pending = model.ErrHashMismatch.Error()
	}

	uri := p.input.NFT.DataURI
	newEntry := repository.ContentCacheEntry{
		Valid:    p.pending == "",
		Encoding: res.Encoding,
		Time:     time.Now(),
	}
	thumb := uri
	if res.Cached {
		newEntry.Binary = model.EncodeCacheRef(nftID, uri)
		thumb = model.CachedURI(nftID, uri)
	}

	if err := s.cache.SetContent(ctx, nftID, newEntry); err != nil {
		slog.Warn("failed to persist content entry",
			"nft_id", nftID,
			"error", err,
		)
	}

	if !res.Cached {
		s.requestCacheAdjustment(ctx, nftID)
	}

	p.session.commit(p.gen, func(st *model.VerificationState) {
		st.Thumbnail.Binary = thumb
		st.Encoding = res.Encoding
	})
}

// adoptContentEntry adopts a persisted content verdict: the thumbnail and
// encoding come from the entry, and an invalid verdict surfaces as a hash
// mismatch without refetching.
func (s *mediaVerifier) adoptContentEntry(ctx context.Context, p *pass, entry *repository.ContentCacheEntry) {
	thumb := s.contentThumbnail(ctx, p.input.NFT, entry)
	p.session.commit(p.gen, func(st *model.VerificationState) {
		st.Thumbnail.Binary = thumb
		if entry.Encoding != "" {
			st.Encoding = entry.Encoding
		}
	})
	if !entry.Valid {
		p.pending = model.ErrHashMismatch.Error()
	}
}

// contentThumbnail renders the display reference for a persisted content
// entry. SVG references resolve to inline markup through the cache
// manager; on bridge failure the raw cached reference is kept. An entry
// without a reference falls back to the primary URI.
func (s *mediaVerifier) contentThumbnail(ctx context.Context, nft *model.NFT, entry *repository.ContentCacheEntry) string {
	if entry.Binary == "" {
		return nft.DataURI
	}

	decoded, err := model.DecodeCacheRef(entry.Binary)
	if err != nil {
		slog.Warn("persisted content reference does not decode",
			"nft_id", nft.ID,
			"error", err,
		)
		return entry.Binary
	}
	_, uri := model.SplitCacheRef(decoded)

	if mediatype.Ext(uri) == ".svg" {
		content, err := s.bridge.ResolveSVGContent(ctx, entry.Binary)
		if err != nil {
			slog.Warn("svg resolution failed, falling back to cached reference",
				"nft_id", nft.ID,
				"error", err,
			)
			return model.CachedURIFromRef(entry.Binary)
		}
		return content
	}

	return model.CachedURIFromRef(entry.Binary)
}

// checkContentCache is the no-metadata path: it adopts a persisted content
// verdict without fetching and without touching the loading or processed
// flags. An invalid verdict surfaces transiently; nothing is persisted.
func (s *mediaVerifier) checkContentCache(ctx context.Context, sess *verifySession, gen uint64, input VerifyInput) {
	entry, err := s.cache.GetContent(ctx, input.NFT.ID)
	if err != nil {
		slog.Warn("content cache read failed, treating as miss",
			"nft_id", input.NFT.ID,
			"error", err,
		)
		return
	}
	if entry == nil {
		return
	}

	thumb := s.contentThumbnail(ctx, input.NFT, entry)
	sess.commit(gen, func(st *model.VerificationState) {
		st.Thumbnail.Binary = thumb
		if entry.Encoding != "" {
			st.Encoding = entry.Encoding
		}
		if !entry.Valid {
			st.Error = model.ErrHashMismatch.Error()
		}
	})
}

// applyContentShortCircuit forces validity when the persisted content
// verdict is already valid. Best effort: read failures skip the
// short-circuit rather than degrading the session.
func (s *mediaVerifier) applyContentShortCircuit(ctx context.Context, sess *verifySession, gen uint64, nftID string) {
	entry, err := s.cache.GetContent(ctx, nftID)
	if err != nil || entry == nil || !entry.Valid {
		return
	}
	sess.commit(gen, func(st *model.VerificationState) {
		st.IsValid = true
	})
}

// finalize commits the pass verdict: validity means no failure was
// recorded across any branch.
func (s *mediaVerifier) finalize(p *pass) {
	applied := p.session.commit(p.gen, func(st *model.VerificationState) {
		st.IsValid = p.pending == ""
		st.Error = p.pending
		st.IsLoading = false
		st.IsValidationProcessed = true
	})
	countPass(applied, p.pending == "")
}

// noteInvalidURI records the advisory "Invalid URI" failure for a
// malformed candidate. The fetch is still attempted and its own outcome
// supersedes the advisory.
func (s *mediaVerifier) noteInvalidURI(p *pass, uri string, class mediatype.Class) {
	if mediatype.IsURL(uri) {
		return
	}
	p.pending = model.ErrInvalidURI.Error()
	metrics.FetchAttemptsTotal.WithLabelValues(class.String(), metrics.FetchStatusInvalidURI).Inc()
	slog.Warn("candidate preview uri is not a well-formed url",
		"nft_id", p.input.NFT.ID,
		"uri", uri,
	)
}

// requestCacheAdjustment asks the cache manager to re-enforce its size
// cap across the active cache instances. Fire-and-forget: a bridge
// failure never affects the verdict.
func (s *mediaVerifier) requestCacheAdjustment(ctx context.Context, nftID string) {
	if err := s.bridge.AdjustCacheLimit(ctx, repository.ActiveCacheInstances()); err != nil {
		slog.Warn("cache limit adjustment request failed",
			"nft_id", nftID,
			"error", err,
		)
	}
}

// persistThumbnailRef merges one class reference into the persisted
// thumbnail entry. Store failures degrade to a warning; the in-memory
// state already carries the reference.
func (s *mediaVerifier) persistThumbnailRef(ctx context.Context, nftID string, update func(entry *repository.ThumbnailCacheEntry)) {
	entry, err := s.cache.GetThumbnail(ctx, nftID)
	if err != nil {
		slog.Warn("thumbnail cache read failed before update",
			"nft_id", nftID,
			"error", err,
		)
	}
	if entry == nil {
		entry = &repository.ThumbnailCacheEntry{}
	}
	update(entry)
	entry.Time = time.Now()

	if err := s.cache.SetThumbnail(ctx, nftID, *entry); err != nil {
		slog.Warn("failed to persist thumbnail reference",
			"nft_id", nftID,
			"error", err,
		)
	}
}

// countPass records the terminal metric for a pass.
func countPass(applied, valid bool) {
	switch {
	case !applied:
		metrics.VerificationPassesTotal.WithLabelValues(metrics.PassResultSuperseded).Inc()
	case valid:
		metrics.VerificationPassesTotal.WithLabelValues(metrics.PassResultValid).Inc()
	default:
		metrics.VerificationPassesTotal.WithLabelValues(metrics.PassResultInvalid).Inc()
	}
}

// Compile-time verification that mediaVerifier implements MediaVerifier.
var _ MediaVerifier = (*mediaVerifier)(nil)
