package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"sweeper/internal/immich"
	"sweeper/internal/logging"
	"sweeper/internal/services"
)

// Inspector fetches the remote signals and thumbnail used by the deeper rules.
type Inspector interface {
	GetFaces(ctx context.Context, id string) ([]immich.Face, error)
	GetMLMetadata(ctx context.Context, id string) ([]immich.MetadataEntry, error)
	DownloadThumbnail(ctx context.Context, id string) ([]byte, error)
}

var _ Inspector = (*immich.Client)(nil)

// Evaluator applies the rule families to assets.
type Evaluator struct {
	rules     Rules
	inspector Inspector
	visual    bool
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithInspector enables face, metadata and thumbnail lookups.
func WithInspector(inspector Inspector) Option {
	return func(e *Evaluator) {
		e.inspector = inspector
	}
}

// WithVisualInspection toggles thumbnail decoding.
func WithVisualInspection(enabled bool) Option {
	return func(e *Evaluator) {
		e.visual = enabled
	}
}

// WithLogger sets the logger used for debug traces.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source used for AnalyzedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEvaluator builds an evaluator. Zero-valued rule fields fall back to defaults.
func NewEvaluator(rules Rules, opts ...Option) *Evaluator {
	defaults := DefaultRules()
	if rules.ThumbnailCeiling <= 0 {
		rules.ThumbnailCeiling = defaults.ThumbnailCeiling
	}
	if rules.MinFileSize <= 0 {
		rules.MinFileSize = defaults.MinFileSize
	}
	if rules.MaxFileSize <= 0 {
		rules.MaxFileSize = defaults.MaxFileSize
	}
	if rules.InspectCeiling <= 0 {
		rules.InspectCeiling = defaults.InspectCeiling
	}
	if rules.LineThreshold <= 0 {
		rules.LineThreshold = defaults.LineThreshold
	}
	if rules.UniformRatio <= 0 {
		rules.UniformRatio = defaults.UniformRatio
	}
	e := &Evaluator{
		rules:  rules,
		visual: true,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "classify")
	return e
}

// Rules returns the thresholds in effect.
func (e *Evaluator) Rules() Rules {
	return e.rules
}

type analysis struct {
	verdict  Verdict
	weight   float64
	size     int64
	noSignal bool
	// unscored counts evidence lines excluded from the evidence bonus.
	unscored int
}

func (a *analysis) add(evidence string) {
	a.verdict.Evidence = append(a.verdict.Evidence, evidence)
}

func (a *analysis) fire(weight float64, evidence string) {
	a.weight += weight
	a.add(evidence)
}

// Classify scores an asset. It never fails; lookup problems become evidence.
func (e *Evaluator) Classify(ctx context.Context, asset immich.Asset) Verdict {
	width, height := asset.Dimensions()
	a := &analysis{
		verdict: Verdict{
			AssetID:    asset.ID,
			Filename:   asset.OriginalFileName,
			Path:       asset.OriginalPath,
			FileSize:   asset.Size(),
			MimeType:   asset.MimeType,
			Width:      width,
			Height:     height,
			CreatedAt:  asset.CreatedAt,
			Evidence:   []string{},
			AnalyzedAt: e.now().UTC(),
		},
		size: asset.Size(),
	}

	name := strings.ToLower(strings.TrimSpace(asset.OriginalFileName))
	e.filenameRules(a, name)
	e.pathRules(a, asset.OriginalPath)
	e.dimensionRules(a, width, height)
	e.sizeRules(a)
	e.exifRules(a, asset, name)
	e.remoteSignals(ctx, a, asset)
	if e.shouldInspect(a) {
		e.visualRules(ctx, a, asset.ID)
	}

	v := a.verdict
	v.Category = categorize(v.Flags)
	v.Confidence = e.score(a)
	v.Recommendation = Recommendation(v.Confidence)
	v.Recommendations = recommendations(v.Confidence, v.Flags)
	return v
}

func (e *Evaluator) filenameRules(a *analysis, name string) {
	if name == "" {
		return
	}
	if p, ok := firstMatch(screenshotPatterns, name); ok {
		a.verdict.Flags.Screenshot = true
		a.fire(weightScreenshot, fmt.Sprintf("filename matches screenshot pattern %q", p.source))
	}
	if p, ok := firstMatch(webCachePatterns, name); ok {
		a.verdict.Flags.WebCache = true
		a.fire(weightWebCache, fmt.Sprintf("filename matches web cache pattern %q", p.source))
	}
	if p, ok := firstMatch(recoveryPatterns, name); ok {
		a.verdict.Flags.Recovery = true
		a.fire(weightRecovery, fmt.Sprintf("filename matches recovery pattern %q", p.source))
	}
	if p, ok := firstMatch(duplicatePatterns, name); ok {
		a.verdict.Flags.Duplicate = true
		a.fire(weightDuplicate, fmt.Sprintf("filename matches duplicate pattern %q", p.source))
	}
}

func (e *Evaluator) pathRules(a *analysis, original string) {
	original = strings.TrimSpace(original)
	if original == "" {
		return
	}
	dir := strings.ToLower(path.Dir(strings.ReplaceAll(original, `\`, "/")))
	if dir == "." || dir == "/" {
		return
	}
	for _, d := range unwantedDirectories {
		if strings.Contains(dir, d) {
			a.add(fmt.Sprintf("path contains %q", d))
		}
	}
}

func (e *Evaluator) dimensionRules(a *analysis, width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if matchResolution(width, height) {
		a.verdict.Flags.Screenshot = true
		a.fire(weightScreenshot, fmt.Sprintf("screen resolution %dx%d", width, height))
	}
	if width <= e.rules.ThumbnailCeiling && height <= e.rules.ThumbnailCeiling {
		a.verdict.Flags.LowQuality = true
		a.fire(weightLowQuality, fmt.Sprintf("thumbnail-sized image %dx%d", width, height))
	}
	ratio := float64(width) / float64(height)
	if ratio < minAspectRatio || ratio > maxAspectRatio {
		a.add(fmt.Sprintf("unusual aspect ratio %.2f", ratio))
	}
}

func (e *Evaluator) sizeRules(a *analysis) {
	switch {
	case a.size <= 0:
	case a.size < e.rules.MinFileSize:
		a.verdict.Flags.LowQuality = true
		a.fire(weightLowQuality, fmt.Sprintf("very small file (%d bytes)", a.size))
	case a.size > e.rules.MaxFileSize:
		a.add(fmt.Sprintf("unusually large file (%d bytes)", a.size))
	}
}

func (e *Evaluator) exifRules(a *analysis, asset immich.Asset, name string) {
	exif := asset.Exif
	if exif == nil || (exif.Make == "" && exif.Model == "") {
		a.add("no camera information")
	}
	if exif != nil && exif.Software != "" {
		software := strings.ToLower(exif.Software)
		for _, s := range screenshotSoftware {
			if strings.Contains(software, s) {
				a.verdict.Flags.Screenshot = true
				a.fire(weightScreenshot, fmt.Sprintf("screenshot software %q", exif.Software))
				break
			}
		}
	}
	if asset.CreatedAt == nil && (exif == nil || exif.DateTimeOriginal == nil) {
		a.add("missing creation timestamp")
	}
	for _, k := range unwantedKeywords {
		if strings.Contains(name, k) {
			a.add(fmt.Sprintf("filename contains keyword %q", k))
		}
	}
}

func (e *Evaluator) remoteSignals(ctx context.Context, a *analysis, asset immich.Asset) {
	if e.inspector == nil {
		if asset.Faces != nil && *asset.Faces > 0 {
			e.recordFaces(a, *asset.Faces)
		} else {
			a.noSignal = true
		}
		return
	}

	var (
		faces    []immich.Face
		metadata []immich.MetadataEntry
		faceErr  error
		mlErr    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		faces, faceErr = e.inspector.GetFaces(gctx, asset.ID)
		return nil
	})
	g.Go(func() error {
		metadata, mlErr = e.inspector.GetMLMetadata(gctx, asset.ID)
		return nil
	})
	_ = g.Wait()

	if faceErr != nil {
		e.lookupFailed(ctx, asset.ID, "faces", faceErr)
		a.add("face lookup failed")
	}
	if mlErr != nil {
		e.lookupFailed(ctx, asset.ID, "metadata", mlErr)
		a.add("metadata lookup failed")
	}
	if len(faces) > 0 {
		e.recordFaces(a, len(faces))
	}
	a.noSignal = len(faces) == 0 && len(metadata) == 0
}

func (e *Evaluator) recordFaces(a *analysis, count int) {
	a.verdict.Flags.HasFaces = true
	a.verdict.FaceCount = count
	a.weight += weightFaces
	a.add(fmt.Sprintf("%d faces detected", count))
	a.unscored++
}

func (e *Evaluator) shouldInspect(a *analysis) bool {
	if e.inspector == nil || !e.visual || !a.noSignal {
		return false
	}
	return a.size <= 0 || a.size < e.rules.InspectCeiling
}

func (e *Evaluator) visualRules(ctx context.Context, a *analysis, id string) {
	data, err := e.inspector.DownloadThumbnail(ctx, id)
	switch {
	case errors.Is(err, immich.ErrNotFound):
		a.add("thumbnail unavailable")
		return
	case err != nil:
		e.lookupFailed(ctx, id, "thumbnail", err)
		a.add("thumbnail download failed")
		return
	case len(data) == 0:
		a.add("thumbnail unavailable")
		return
	}

	report, err := inspectThumbnail(data)
	if err != nil {
		a.verdict.Flags.Corrupt = true
		a.fire(weightCorrupt, "thumbnail cannot be decoded")
		return
	}
	if report.Lines > e.rules.LineThreshold {
		a.verdict.Flags.Screenshot = true
		a.fire(weightScreenshot, fmt.Sprintf("interface lines detected (%d)", report.Lines))
	}
	if report.Dominant > e.rules.UniformRatio {
		a.add(fmt.Sprintf("uniform image (%.0f%% single tone)", report.Dominant*100))
	}
}

func (e *Evaluator) lookupFailed(ctx context.Context, id, what string, err error) {
	if ctx.Err() != nil {
		return
	}
	e.logger.Debug("asset lookup failed",
		logging.String(logging.FieldAssetID, id),
		logging.String("lookup", what),
		logging.String("error_kind", services.Kind(err)),
		logging.Error(err),
	)
}

func (e *Evaluator) score(a *analysis) float64 {
	confidence := a.weight
	confidence += math.Min(evidenceStep*float64(len(a.verdict.Evidence)-a.unscored), evidenceCap)
	switch {
	case a.size <= 0:
	case a.size < e.rules.MinFileSize:
		confidence += smallFileBonus
	case a.size > e.rules.MaxFileSize:
		confidence += largeFileBonus
	}
	return clamp(confidence)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return math.Round(v*1000) / 1000
}
