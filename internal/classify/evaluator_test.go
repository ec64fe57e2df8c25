package classify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"
	"time"

	"sweeper/internal/immich"
)

type fakeInspector struct {
	faces      []immich.Face
	facesErr   error
	metadata   []immich.MetadataEntry
	thumbnail  []byte
	thumbErr   error
	thumbCalls int
}

func (f *fakeInspector) GetFaces(context.Context, string) ([]immich.Face, error) {
	return f.faces, f.facesErr
}

func (f *fakeInspector) GetMLMetadata(context.Context, string) ([]immich.MetadataEntry, error) {
	return f.metadata, nil
}

func (f *fakeInspector) DownloadThumbnail(context.Context, string) ([]byte, error) {
	f.thumbCalls++
	return f.thumbnail, f.thumbErr
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func gradientImage(size int) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) * 255 / (2 * size))})
		}
	}
	return img
}

func chromeImage(size, bars int) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	gap := size / (bars + 1)
	for i := 1; i <= bars; i++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, i*gap, color.Gray{Y: 0})
		}
	}
	return img
}

func hasEvidence(v Verdict, substr string) bool {
	for _, e := range v.Evidence {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestScreenshotFilenameAndResolution(t *testing.T) {
	e := NewEvaluator(DefaultRules())
	asset := immich.Asset{
		ID:               "a1",
		OriginalFileName: "Screenshot_20230101-120000.png",
		Exif:             &immich.Exif{Width: 1080, Height: 1920},
	}
	v := e.Classify(context.Background(), asset)
	if v.Category != CategoryScreenshot {
		t.Fatalf("expected screenshot, got %s", v.Category)
	}
	if v.Confidence < 0.8 {
		t.Fatalf("expected confidence >= 0.8, got %.3f (evidence %v)", v.Confidence, v.Evidence)
	}
	if !hasEvidence(v, `filename matches screenshot pattern "screenshot"`) {
		t.Fatalf("missing filename evidence: %v", v.Evidence)
	}
	if !hasEvidence(v, "screen resolution 1080x1920") {
		t.Fatalf("missing resolution evidence: %v", v.Evidence)
	}
	if v.Recommendation != "Strongly recommend deletion" {
		t.Fatalf("unexpected recommendation %q", v.Recommendation)
	}
	if len(v.Recommendations) < 2 || v.Recommendations[0] != v.Recommendation {
		t.Fatalf("unexpected recommendations %v", v.Recommendations)
	}
}

func TestOrdinaryCameraPhotoIsKept(t *testing.T) {
	inspector := &fakeInspector{thumbnail: encodePNG(t, gradientImage(64))}
	e := NewEvaluator(DefaultRules(), WithInspector(inspector))
	asset := immich.Asset{
		ID:               "a2",
		OriginalFileName: "IMG_4321.heic",
		OriginalPath:     "/library/2024/IMG_4321.heic",
		FileSize:         2_400_000,
		Exif:             &immich.Exif{Width: 4032, Height: 3024, Make: "Apple", Software: "17.2"},
	}
	v := e.Classify(context.Background(), asset)
	if v.Category != CategoryUnknown {
		t.Fatalf("expected unknown, got %s (evidence %v)", v.Category, v.Evidence)
	}
	if v.Confidence >= 0.4 {
		t.Fatalf("expected confidence < 0.4, got %.3f (evidence %v)", v.Confidence, v.Evidence)
	}
	if inspector.thumbCalls != 1 {
		t.Fatalf("expected visual inspection, got %d thumbnail calls", inspector.thumbCalls)
	}
	if v.Recommendation != "Likely keep" {
		t.Fatalf("unexpected recommendation %q", v.Recommendation)
	}
}

func TestScreenshotPatternEvidenceNamesPattern(t *testing.T) {
	cases := map[string]string{
		"Screenshot_2024-05-01.png": `screenshot`,
		"screen shot 1.jpg":         `screen[-_ ]?shot`,
		"vlcsnap-00001.png":         `vlcsnap`,
		"prtscr_01.png":             `prtscr`,
		"Snip_001.png":              `^snip`,
		"ss_123.jpg":                `^ss[-_]?\d+`,
	}
	e := NewEvaluator(DefaultRules())
	for name, source := range cases {
		v := e.Classify(context.Background(), immich.Asset{ID: name, OriginalFileName: name})
		if v.Category != CategoryScreenshot {
			t.Fatalf("%s: expected screenshot, got %s", name, v.Category)
		}
		var hits []string
		for _, ev := range v.Evidence {
			if strings.HasPrefix(ev, "filename matches screenshot pattern") {
				hits = append(hits, ev)
			}
		}
		want := fmt.Sprintf("filename matches screenshot pattern %q", source)
		if len(hits) != 1 || hits[0] != want {
			t.Fatalf("%s: expected exactly %q, got %v", name, want, hits)
		}
	}
}

func TestDeviceResolutionFlagsScreenshotRegardlessOfName(t *testing.T) {
	e := NewEvaluator(DefaultRules())
	for _, r := range deviceResolutions {
		for _, dims := range [][2]int{{r.w, r.h}, {r.h, r.w}} {
			asset := immich.Asset{
				ID:               "r",
				OriginalFileName: "holiday.jpg",
				Exif:             &immich.Exif{Width: dims[0], Height: dims[1], Make: "Canon"},
			}
			v := e.Classify(context.Background(), asset)
			if !v.Flags.Screenshot || v.Category != CategoryScreenshot {
				t.Fatalf("%dx%d: expected screenshot, got %s", dims[0], dims[1], v.Category)
			}
		}
	}
}

func TestConfidenceAlwaysClamped(t *testing.T) {
	now := time.Now()
	assets := []immich.Asset{
		{},
		{ID: "empty-exif", Exif: &immich.Exif{}},
		{ID: "everything", OriginalFileName: "Screenshot_cache_copy (1).png", OriginalPath: "/tmp/cache/screenshots/x.png",
			FileSize: 512, Exif: &immich.Exif{Width: 1920, Height: 1080, Software: "Android"}},
		{ID: "huge", OriginalFileName: "pano.jpg", FileSize: 90_000_000, Exif: &immich.Exif{Width: 12000, Height: 1000, Make: "Sony"}},
		{ID: "dated", OriginalFileName: "family.jpg", CreatedAt: &now, FileSize: 3_000_000,
			Exif: &immich.Exif{Width: 4000, Height: 3000, Make: "Nikon", Model: "Z6"}},
		{ID: "negative", FileSize: -5, Exif: &immich.Exif{Width: -1, Height: 0}},
	}
	inspectors := []Inspector{
		nil,
		&fakeInspector{faces: []immich.Face{{ID: "f1"}, {ID: "f2"}}},
		&fakeInspector{thumbnail: []byte("not an image")},
		&fakeInspector{facesErr: errors.New("boom"), thumbErr: errors.New("boom")},
	}
	for _, inspector := range inspectors {
		var opts []Option
		if inspector != nil {
			opts = append(opts, WithInspector(inspector))
		}
		e := NewEvaluator(DefaultRules(), opts...)
		for _, asset := range assets {
			v := e.Classify(context.Background(), asset)
			if v.Confidence < 0 || v.Confidence > 1 {
				t.Fatalf("%s: confidence %.3f out of range", asset.ID, v.Confidence)
			}
		}
	}
}

func TestFacesSkipVisualInspection(t *testing.T) {
	inspector := &fakeInspector{faces: []immich.Face{{ID: "f1"}}}
	e := NewEvaluator(DefaultRules(), WithInspector(inspector))
	v := e.Classify(context.Background(), immich.Asset{ID: "x", OriginalFileName: "party.jpg"})
	if !v.Flags.HasFaces || v.FaceCount != 1 {
		t.Fatalf("expected face flags, got %+v count=%d", v.Flags, v.FaceCount)
	}
	if inspector.thumbCalls != 0 {
		t.Fatalf("expected no thumbnail download when faces exist")
	}
}

func TestFacesLowerConfidenceByTenth(t *testing.T) {
	asset := immich.Asset{ID: "x", OriginalFileName: "photo.jpg", Exif: &immich.Exif{Width: 1080, Height: 1920}}

	classifyWith := func(inspector *fakeInspector) Verdict {
		return NewEvaluator(DefaultRules(), WithInspector(inspector), WithVisualInspection(false)).Classify(context.Background(), asset)
	}
	without := classifyWith(&fakeInspector{})
	with := classifyWith(&fakeInspector{faces: []immich.Face{{ID: "f1"}}})

	if !hasEvidence(with, "1 faces detected") {
		t.Fatalf("missing face evidence: %v", with.Evidence)
	}
	if diff := without.Confidence - with.Confidence; math.Abs(diff-0.1) > 1e-9 {
		t.Fatalf("expected faces to subtract 0.1, got %.3f -> %.3f", without.Confidence, with.Confidence)
	}
}

func TestUndecodableThumbnailIsCorrupt(t *testing.T) {
	inspector := &fakeInspector{thumbnail: []byte("garbage")}
	e := NewEvaluator(DefaultRules(), WithInspector(inspector))
	v := e.Classify(context.Background(), immich.Asset{ID: "x", OriginalFileName: "party.jpg", FileSize: 200_000,
		Exif: &immich.Exif{Make: "Canon"}})
	if !v.Flags.Corrupt || v.Category != CategoryCorrupt {
		t.Fatalf("expected corrupt, got %s flags %+v", v.Category, v.Flags)
	}
	if !hasEvidence(v, "cannot be decoded") {
		t.Fatalf("missing decode evidence: %v", v.Evidence)
	}
}

func TestInterfaceChromeFlagsScreenshot(t *testing.T) {
	inspector := &fakeInspector{thumbnail: encodePNG(t, chromeImage(128, 8))}
	e := NewEvaluator(DefaultRules(), WithInspector(inspector))
	v := e.Classify(context.Background(), immich.Asset{ID: "x", OriginalFileName: "notes.png", FileSize: 80_000})
	if !v.Flags.Screenshot || v.Category != CategoryScreenshot {
		t.Fatalf("expected screenshot from chrome lines, got %s evidence %v", v.Category, v.Evidence)
	}
	if !hasEvidence(v, "uniform image") {
		t.Fatalf("expected uniform evidence: %v", v.Evidence)
	}
}

func TestVisualInspectionRespectsSizeCeilingAndToggle(t *testing.T) {
	inspector := &fakeInspector{thumbnail: encodePNG(t, gradientImage(16))}
	e := NewEvaluator(DefaultRules(), WithInspector(inspector))
	e.Classify(context.Background(), immich.Asset{ID: "big", OriginalFileName: "a.jpg", FileSize: 20_000_000})
	if inspector.thumbCalls != 0 {
		t.Fatalf("expected no inspection above the ceiling")
	}
	off := NewEvaluator(DefaultRules(), WithInspector(inspector), WithVisualInspection(false))
	off.Classify(context.Background(), immich.Asset{ID: "small", OriginalFileName: "a.jpg", FileSize: 20_000})
	if inspector.thumbCalls != 0 {
		t.Fatalf("expected no inspection when disabled")
	}
}

func TestMissingThumbnailIsEvidenceOnly(t *testing.T) {
	inspector := &fakeInspector{thumbErr: fmt.Errorf("wrapped: %w", immich.ErrNotFound)}
	e := NewEvaluator(DefaultRules(), WithInspector(inspector))
	v := e.Classify(context.Background(), immich.Asset{ID: "x", OriginalFileName: "a.jpg", Exif: &immich.Exif{Make: "Canon"}})
	if v.Flags.Corrupt || !hasEvidence(v, "thumbnail unavailable") {
		t.Fatalf("expected evidence only, got flags %+v evidence %v", v.Flags, v.Evidence)
	}
}

func TestCategoryPrecedence(t *testing.T) {
	cases := []struct {
		flags Flags
		want  Category
	}{
		{Flags{Screenshot: true, WebCache: true, Corrupt: true}, CategoryScreenshot},
		{Flags{WebCache: true, Recovery: true}, CategoryWebCache},
		{Flags{Recovery: true, Duplicate: true}, CategoryRecovery},
		{Flags{Duplicate: true, Corrupt: true}, CategoryDuplicate},
		{Flags{Corrupt: true, LowQuality: true}, CategoryCorrupt},
		{Flags{LowQuality: true, HasFaces: true}, CategoryLowQuality},
		{Flags{HasFaces: true}, CategoryUnknown},
	}
	for _, tc := range cases {
		if got := categorize(tc.flags); got != tc.want {
			t.Fatalf("categorize(%+v) = %s, want %s", tc.flags, got, tc.want)
		}
	}
}

func TestRecommendationThresholds(t *testing.T) {
	cases := map[float64]string{
		0.95: "Strongly recommend deletion",
		0.8:  "Consider for removal",
		0.61: "Consider for removal",
		0.6:  "Manual review recommended",
		0.41: "Manual review recommended",
		0.4:  "Likely keep",
		0:    "Likely keep",
	}
	for confidence, want := range cases {
		if got := Recommendation(confidence); got != want {
			t.Fatalf("Recommendation(%.2f) = %q, want %q", confidence, got, want)
		}
	}
}
