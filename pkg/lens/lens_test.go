package lens

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dtnitsch/lens-scraper/models"
	"github.com/dtnitsch/lens-scraper/pkg/linkfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePage is a scripted browser. Elements are keyed by selector; elements in
// revealOnClick become queryable once anything has been clicked.
type fakePage struct {
	mu            sync.Mutex
	elements      map[string]*Element
	revealOnClick map[string]*Element
	evals         map[string]any
	failClick     map[*Element]error
	navErr        error

	queries  []string
	clicks   []*Element
	uploaded map[*Element][]string
	closed   int
}

func newFakePage() *fakePage {
	return &fakePage{
		elements:      map[string]*Element{},
		revealOnClick: map[string]*Element{},
		evals: map[string]any{
			readyStateScript: "complete",
			jqueryIdleScript: true,
			scrollScript:     true,
			markUploadScript: 0,
		},
		failClick: map[*Element]error{},
		uploaded:  map[*Element][]string{},
	}
}

func (f *fakePage) Navigate(ctx context.Context, url string) error { return f.navErr }

func (f *fakePage) Evaluate(ctx context.Context, script string, res any) error {
	f.mu.Lock()
	v, ok := f.evals[script]
	f.mu.Unlock()
	if !ok {
		return errors.New("unexpected script")
	}
	if err, isErr := v.(error); isErr {
		return err
	}
	if res == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, res)
}

func (f *fakePage) Query(ctx context.Context, q Query) (*Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q.Selector)
	if el, ok := f.elements[q.Selector]; ok {
		return el, nil
	}
	return nil, ErrNotFound
}

func (f *fakePage) MoveTo(ctx context.Context, el *Element) error { return nil }

func (f *fakePage) Click(ctx context.Context, el *Element) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failClick[el]; err != nil {
		return err
	}
	f.clicks = append(f.clicks, el)
	for sel, revealed := range f.revealOnClick {
		f.elements[sel] = revealed
	}
	return nil
}

func (f *fakePage) SetFiles(ctx context.Context, el *Element, files []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !el.IsFileInput() {
		return errors.New("not a file input")
	}
	f.uploaded[el] = files
	return nil
}

func (f *fakePage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakePage) queried(sel string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.queries {
		if q == sel {
			return true
		}
	}
	return false
}

func testDriver(p Page) *Driver {
	cfg := models.DefaultConfig()
	d := NewDriver(discardLogger(), cfg)
	d.timing = Timing{}
	d.finders = DefaultFinders(d.timing)
	d.open = func(ctx context.Context) (Page, error) { return p, nil }
	return d
}

func xpathFor(word string) string {
	return "//span[contains(text(), '" + word + "')]"
}

func fileInput() *Element { return &Element{Tag: "input", Type: "file"} }

func TestRun_FullSearch(t *testing.T) {
	p := newFakePage()
	entry := &Element{Tag: "div"}
	upload := &Element{Tag: "span"}
	input := fileInput()
	p.elements[models.DefaultConfig().Lens.EntrySelector] = entry
	p.elements[xpathFor("file")] = upload
	p.revealOnClick[fileInputCSS] = input
	p.evals[harvestScript] = []models.LinkRecord{
		{URL: "https://example.com/cats", Description: "Cats"},
		{URL: "https://www.google.com/search?q=x", Description: "Google"},
		{URL: "https://encrypted-tbn0.gstatic.com/images?q=1", Description: ""},
		{URL: "https://www.google.co.uk/imgres", Description: "UK"},
		{URL: "https://example.org/dogs", Description: "Dogs"},
	}

	out := filepath.Join(t.TempDir(), "csv", "results.csv")
	image := filepath.Join(t.TempDir(), "cat.png")
	report, err := testDriver(p).Run(context.Background(), image, out)
	require.NoError(t, err)

	want := []models.LinkRecord{
		{URL: "https://example.com/cats", Description: "Cats"},
		{URL: "https://example.org/dogs", Description: "Dogs"},
	}
	assert.Equal(t, want, report.Links)
	assert.Equal(t, want, linkfile.Read(discardLogger(), out, 10))

	assert.Equal(t, []string{image}, p.uploaded[input])
	assert.Equal(t, []*Element{entry, upload}, p.clicks)
	assert.Equal(t, 1, p.closed)

	var steps []string
	for _, s := range report.Steps {
		assert.True(t, s.OK, "step %s failed: %s", s.Step, s.Reason)
		steps = append(steps, s.Step)
	}
	assert.Equal(t, []string{
		StepLaunch, StepNavigate, StepConsent, StepReady, StepEntry, StepReady,
		StepLocate, StepSubmit, StepResults, StepReady, StepHarvest,
	}, steps)
}

func TestRun_ConsentAbsentIsNotAnError(t *testing.T) {
	p := newFakePage()
	p.elements[models.DefaultConfig().Lens.EntrySelector] = &Element{Tag: "div"}
	p.elements[xpathFor("file")] = fileInput()
	p.evals[harvestScript] = []models.LinkRecord{}

	report, err := testDriver(p).Run(context.Background(), "img.png", filepath.Join(t.TempDir(), "r.csv"))
	require.NoError(t, err)

	consent := report.Steps[2]
	assert.Equal(t, StepConsent, consent.Step)
	assert.True(t, consent.OK)
	assert.Equal(t, "no consent dialog", consent.Reason)
	assert.True(t, p.queried(consentCSS), "css fallback not tried")
}

func TestRun_ConsentAccepted(t *testing.T) {
	p := newFakePage()
	accept := &Element{Tag: "button"}
	p.elements[consentXPath] = accept
	p.elements[models.DefaultConfig().Lens.EntrySelector] = &Element{Tag: "div"}
	p.elements[xpathFor("file")] = fileInput()
	p.evals[harvestScript] = []models.LinkRecord{}

	report, err := testDriver(p).Run(context.Background(), "img.png", filepath.Join(t.TempDir(), "r.csv"))
	require.NoError(t, err)
	assert.Equal(t, "accepted", report.Steps[2].Reason)
	assert.Equal(t, accept, p.clicks[0])
	assert.False(t, p.queried(consentCSS))
}

func TestRun_EntryFailureAbortsAndCloses(t *testing.T) {
	p := newFakePage()
	out := filepath.Join(t.TempDir(), "r.csv")

	report, err := testDriver(p).Run(context.Background(), "img.png", out)
	require.ErrorIs(t, err, ErrEntryNotFound)
	assert.Equal(t, 1, p.closed)

	last := report.Steps[len(report.Steps)-1]
	assert.Equal(t, StepEntry, last.Step)
	assert.False(t, last.OK)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no link file expected")
}

func TestRun_UploadFailureAbortsAndCloses(t *testing.T) {
	p := newFakePage()
	p.elements[models.DefaultConfig().Lens.EntrySelector] = &Element{Tag: "div"}

	report, err := testDriver(p).Run(context.Background(), "img.png", filepath.Join(t.TempDir(), "r.csv"))
	require.ErrorIs(t, err, ErrUploadFailed)
	assert.Equal(t, 1, p.closed)

	locate := report.Steps[len(report.Steps)-2]
	assert.Equal(t, StepLocate, locate.Step)
	assert.Equal(t, "no upload control found", locate.Reason)
	assert.Equal(t, StepSubmit, report.Steps[len(report.Steps)-1].Step)
}

func TestRun_LaunchFailure(t *testing.T) {
	d := testDriver(nil)
	d.open = func(ctx context.Context) (Page, error) { return nil, ErrBrowserUnavailable }

	report, err := d.Run(context.Background(), "img.png", "unused.csv")
	require.ErrorIs(t, err, ErrBrowserUnavailable)
	require.Len(t, report.Steps, 1)
	assert.False(t, report.Steps[0].OK)
}

func TestLocateUploadTarget_FirstSuccessWins(t *testing.T) {
	p := newFakePage()
	datei := &Element{Tag: "span"}
	p.elements[xpathFor("Datei")] = datei
	p.elements[xpathFor("bestand")] = &Element{Tag: "span"}

	el, err := locateUploadTarget(context.Background(), discardLogger(), p, Timing{}, DefaultFinders(Timing{}))
	require.NoError(t, err)
	assert.Same(t, datei, el)

	assert.True(t, p.queried(xpathFor("fichier")))
	assert.False(t, p.queried(xpathFor("archivo")), "finders after the hit must not run")
	assert.Equal(t, []*Element{datei}, p.clicks)
}

func TestLocateUploadTarget_ReturnsRevealedInput(t *testing.T) {
	p := newFakePage()
	btn := &Element{Tag: "span"}
	input := fileInput()
	p.elements[xpathFor("αρχείο")] = btn
	p.revealOnClick[fileInputCSS] = input

	el, err := locateUploadTarget(context.Background(), discardLogger(), p, Timing{}, DefaultFinders(Timing{}))
	require.NoError(t, err)
	assert.Same(t, input, el)
}

func TestLocateUploadTarget_ScriptScanFallback(t *testing.T) {
	p := newFakePage()
	btn := &Element{Tag: "button"}
	p.evals[markUploadScript] = 2
	p.elements["["+uploadCandidateAttr+"='1']"] = btn

	el, err := locateUploadTarget(context.Background(), discardLogger(), p, Timing{}, DefaultFinders(Timing{}))
	require.NoError(t, err)
	assert.Same(t, btn, el)
	for _, w := range UploadWords {
		assert.True(t, p.queried(xpathFor(w)), "xpath for %q not tried", w)
	}
}

func TestLocateUploadTarget_NothingFound(t *testing.T) {
	el, err := locateUploadTarget(context.Background(), discardLogger(), newFakePage(), Timing{}, DefaultFinders(Timing{}))
	require.NoError(t, err)
	assert.Nil(t, el)
}

func TestSubmitImage(t *testing.T) {
	t.Run("native file input", func(t *testing.T) {
		p := newFakePage()
		input := fileInput()
		require.NoError(t, submitImage(context.Background(), discardLogger(), p, Timing{}, input, "/tmp/a.png"))
		assert.Equal(t, []string{"/tmp/a.png"}, p.uploaded[input])
		assert.Empty(t, p.clicks)
	})

	t.Run("hidden input revealed by click", func(t *testing.T) {
		p := newFakePage()
		btn := &Element{Tag: "div"}
		input := fileInput()
		p.revealOnClick[fileInputCSS] = input
		require.NoError(t, submitImage(context.Background(), discardLogger(), p, Timing{}, btn, "/tmp/a.png"))
		assert.Equal(t, []string{"/tmp/a.png"}, p.uploaded[input])
	})

	t.Run("no input after click", func(t *testing.T) {
		err := submitImage(context.Background(), discardLogger(), newFakePage(), Timing{}, &Element{Tag: "div"}, "/tmp/a.png")
		assert.ErrorIs(t, err, ErrUploadFailed)
	})

	t.Run("nil target", func(t *testing.T) {
		err := submitImage(context.Background(), discardLogger(), newFakePage(), Timing{}, nil, "/tmp/a.png")
		assert.ErrorIs(t, err, ErrUploadFailed)
	})
}

func TestAwaitPageReady_TimeoutIsNotFatal(t *testing.T) {
	p := newFakePage()
	p.evals[readyStateScript] = "loading"
	p.evals[jqueryIdleScript] = false

	reason, err := awaitPageReady(context.Background(), discardLogger(), p, Timing{})
	require.NoError(t, err)
	assert.Equal(t, "ready state timeout", reason)
}

func TestDenied(t *testing.T) {
	deny := models.DefaultDenyDomains
	tests := []struct {
		url  string
		want bool
	}{
		{"https://google.com/", true},
		{"https://www.google.com/search", true},
		{"https://lh3.googleusercontent.com/x.jpg", true},
		{"https://fonts.googleapis.com/css", true},
		{"https://www.google.co.uk/imgres", true},
		{"https://google.co.jp/", true},
		{"https://support.chrome.com/", true},
		{"https://example.com/google.com", false},
		{"https://notgoogle.com/", false},
		{"https://www.google.cooking/", false},
		{"https://example.org/", false},
		{"not a url", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Denied(tt.url, deny), tt.url)
	}
}

func TestElement_IsFileInput(t *testing.T) {
	assert.True(t, (&Element{Tag: "input", Type: "FILE"}).IsFileInput())
	assert.False(t, (&Element{Tag: "input", Type: "text"}).IsFileInput())
	assert.False(t, (&Element{Tag: "span"}).IsFileInput())
	var nilEl *Element
	assert.False(t, nilEl.IsFileInput())
	assert.True(t, strings.HasPrefix(fileInput().String(), "input"))
}
