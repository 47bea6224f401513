package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eternnoir/elderlisten/pkg/logger"
	"github.com/eternnoir/elderlisten/pkg/providers"
	"github.com/eternnoir/elderlisten/pkg/store"
)

const validOutput = `{"summary":"talked about lunch","physical_status":"possibly tired","psychological_needs":"to be confirmed","advice":"call tonight"}`

type stubSummarizer struct {
	mu      sync.Mutex
	calls   int
	inputs  []string
	prompts []string
	content string
	err     error
}

func (s *stubSummarizer) Name() string { return "stub" }

func (s *stubSummarizer) Generate(_ context.Context, text, systemPrompt string) (*providers.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.inputs = append(s.inputs, text)
	s.prompts = append(s.prompts, systemPrompt)
	if s.err != nil {
		return nil, s.err
	}
	return &providers.Generation{Content: s.content, Provider: "stub"}, nil
}

type fixture struct {
	store       *store.Store
	summaryRoot string
	llm         *stubSummarizer
	gen         *Generator
}

func newFixture(t *testing.T, content string) *fixture {
	t.Helper()
	root := t.TempDir()
	st, err := store.New(filepath.Join(root, "audio"), filepath.Join(root, "context"))
	require.NoError(t, err)

	llm := &stubSummarizer{content: content}
	summaryRoot := filepath.Join(root, "summary")
	gen, err := NewGenerator(st, llm, summaryRoot, WithLogger(logger.Nop()))
	require.NoError(t, err)

	return &fixture{store: st, summaryRoot: summaryRoot, llm: llm, gen: gen}
}

func (f *fixture) writeFragment(t *testing.T, subjectID int64, date, name, content string) {
	t.Helper()
	path := filepath.Join(f.store.DayDir(subjectID, date), name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readCache(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestAggregateIsTailBiased(t *testing.T) {
	f := newFixture(t, validOutput)
	a := strings.Repeat("a", 10000)
	b := strings.Repeat("b", 10000)
	c := strings.Repeat("c", 15000)
	f.writeFragment(t, 7, "2024-05-01", "01.txt", a)
	f.writeFragment(t, 7, "2024-05-01", "02.txt", b)
	f.writeFragment(t, 7, "2024-05-01", "03.txt", c)

	text, count, err := Aggregate(f.store, 7, "2024-05-01")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, b+"\n\n"+c, text)
	require.NotContains(t, text, "a")
}

func TestAggregateCountsCharactersNotBytes(t *testing.T) {
	f := newFixture(t, validOutput)
	// 3 bytes per rune; two fragments fit a 30000 character budget
	f.writeFragment(t, 7, "2024-05-01", "01.txt", strings.Repeat("語", 14000))
	f.writeFragment(t, 7, "2024-05-01", "02.txt", strings.Repeat("音", 14000))

	_, count, err := Aggregate(f.store, 7, "2024-05-01")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestAggregateSkipsEmptyAndReservedFragments(t *testing.T) {
	f := newFixture(t, validOutput)
	f.writeFragment(t, 7, "2024-05-01", "01.txt", "  first  ")
	f.writeFragment(t, 7, "2024-05-01", "02.txt", "   \n")
	f.writeFragment(t, 7, "2024-05-01", "03.txt", "third")
	f.writeFragment(t, 7, "2024-05-01", "_notes.txt", "reserved")

	text, count, err := Aggregate(f.store, 7, "2024-05-01")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, "first\n\nthird", text)
}

type staticFragments []string

func (s staticFragments) ListFragments(int64, string) ([]string, error) {
	return s, nil
}

func TestGenerateSummarySkipsUnreadableFragments(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "0900.txt")
	require.NoError(t, os.WriteFile(good, []byte("kept"), 0o644))
	asDir := filepath.Join(dir, "0800.txt")
	require.NoError(t, os.Mkdir(asDir, 0o755))
	missing := filepath.Join(dir, "0700.txt")

	var buf bytes.Buffer
	llm := &stubSummarizer{content: validOutput}
	gen, err := NewGenerator(staticFragments{missing, asDir, good}, llm, filepath.Join(dir, "summary"),
		WithLogger(logger.New(&buf, &logger.Config{Format: "json"})))
	require.NoError(t, err)

	res, err := gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.NoError(t, err)
	require.Equal(t, MessageGenerated, res.Message)
	require.Equal(t, []string{"kept"}, llm.inputs)
	require.Equal(t, 2, strings.Count(buf.String(), "Skipping unreadable fragment"))
}

func TestGenerateSummaryUsesCacheOnSecondCall(t *testing.T) {
	f := newFixture(t, validOutput)
	f.writeFragment(t, 7, "2024-05-01", "0900.txt", "had noodles for lunch")

	first, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.NoError(t, err)
	require.Equal(t, MessageGenerated, first.Message)
	require.Equal(t, "possibly tired", first.PhysicalStatus)
	require.Equal(t, "had noodles for lunch", f.llm.inputs[0])
	require.Equal(t, SystemPrompt, f.llm.prompts[0])

	second, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.NoError(t, err)
	require.Equal(t, MessageCached, second.Message)
	require.Equal(t, first.Fields, second.Fields)
	require.Equal(t, 1, f.llm.calls)

	cache := readCache(t, f.gen.CachePath(7, "2024-05-01"))
	require.Equal(t, "call tonight", cache["advice"])
	require.Len(t, cache, 4)
}

func TestGenerateSummaryForceRegenerates(t *testing.T) {
	f := newFixture(t, validOutput)
	f.writeFragment(t, 7, "2024-05-01", "0900.txt", "hello")

	_, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.NoError(t, err)
	res, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", true)
	require.NoError(t, err)
	require.Equal(t, MessageGenerated, res.Message)
	require.Equal(t, 2, f.llm.calls)
}

func TestGenerateSummaryExtractsEmbeddedObject(t *testing.T) {
	f := newFixture(t, "Here you go:\n"+validOutput+"\nThanks")
	f.writeFragment(t, 7, "2024-05-01", "0900.txt", "hello")

	res, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.NoError(t, err)
	require.Equal(t, MessageGenerated, res.Message)
	require.Equal(t, "talked about lunch", res.Summary)
}

func TestGenerateSummaryNormalizesListOutput(t *testing.T) {
	f := newFixture(t, `{"summary":"s","physical_status":null,"psychological_needs":"  p  ","advice":["do X"," ","do Y"]}`)
	f.writeFragment(t, 7, "2024-05-01", "0900.txt", "hello")

	res, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.NoError(t, err)
	require.Equal(t, "", res.PhysicalStatus)
	require.Equal(t, "p", res.PsychologicalNeeds)
	require.Equal(t, "- do X\n- do Y", res.Advice)

	cache := readCache(t, f.gen.CachePath(7, "2024-05-01"))
	require.Equal(t, "- do X\n- do Y", cache["advice"])
}

func TestLegacyListCacheIsRewritten(t *testing.T) {
	f := newFixture(t, validOutput)
	path := f.gen.CachePath(7, "2024-05-01")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	legacy := `{"summary":"s","physical_status":"ps","psychological_needs":"pn","advice":["do X","do Y"]}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	res, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.NoError(t, err)
	require.Equal(t, MessageCached, res.Message)
	require.Equal(t, "- do X\n- do Y", res.Advice)
	require.Zero(t, f.llm.calls)

	cache := readCache(t, path)
	require.Equal(t, "- do X\n- do Y", cache["advice"])
	require.Equal(t, "s", cache["summary"])
}

func TestIncompleteCacheIsRegenerated(t *testing.T) {
	f := newFixture(t, validOutput)
	f.writeFragment(t, 7, "2024-05-01", "0900.txt", "hello")
	path := f.gen.CachePath(7, "2024-05-01")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"summary":"only"}`), 0o644))

	res, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.NoError(t, err)
	require.Equal(t, MessageGenerated, res.Message)
	require.Equal(t, 1, f.llm.calls)
}

func TestGenerateSummaryWithoutFragments(t *testing.T) {
	f := newFixture(t, validOutput)
	f.writeFragment(t, 7, "2024-05-01", "_ignored.txt", "reserved")

	res, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.NoError(t, err)
	require.Equal(t, MessageNoFiles, res.Message)
	require.Equal(t, Fields{}, res.Fields)
	require.Zero(t, f.llm.calls)

	res, err = f.gen.GenerateSummary(context.Background(), 8, "2024-05-02", false)
	require.NoError(t, err)
	require.Equal(t, MessageNoFiles, res.Message)
}

func TestGenerateSummaryProviderFailure(t *testing.T) {
	f := newFixture(t, "")
	f.llm.err = errors.New("upstream 503")
	f.writeFragment(t, 7, "2024-05-01", "0900.txt", "hello")

	res, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.ErrorIs(t, err, ErrProvider)
	require.Contains(t, err.Error(), "upstream 503")
	require.Equal(t, MessageLLMError, res.Message)
	require.Equal(t, Fields{}, res.Fields)
	require.NoFileExists(t, f.gen.CachePath(7, "2024-05-01"))
}

func TestGenerateSummaryMalformedOutput(t *testing.T) {
	f := newFixture(t, "I could not summarize this.")
	f.writeFragment(t, 7, "2024-05-01", "0900.txt", "hello")

	res, err := f.gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.ErrorIs(t, err, ErrMalformedOutput)
	require.Equal(t, MessageLLMError, res.Message)
	require.NoFileExists(t, f.gen.CachePath(7, "2024-05-01"))
}

type nilSummarizer struct{}

func (nilSummarizer) Name() string { return "nil" }

func (nilSummarizer) Generate(context.Context, string, string) (*providers.Generation, error) {
	return nil, nil
}

func TestGenerateSummaryProviderReturnsNothing(t *testing.T) {
	f := newFixture(t, validOutput)
	f.writeFragment(t, 7, "2024-05-01", "0900.txt", "hello")
	gen, err := NewGenerator(f.store, nilSummarizer{}, f.summaryRoot, WithLogger(logger.Nop()))
	require.NoError(t, err)

	res, err := gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.ErrorIs(t, err, ErrProvider)
	require.Equal(t, MessageLLMError, res.Message)
	require.NoFileExists(t, gen.CachePath(7, "2024-05-01"))
}

type blockingSummarizer struct {
	entered chan struct{}
	release chan struct{}

	mu     sync.Mutex
	ctxErr []error
}

func (b *blockingSummarizer) Name() string { return "blocking" }

func (b *blockingSummarizer) Generate(ctx context.Context, _, _ string) (*providers.Generation, error) {
	b.entered <- struct{}{}
	<-b.release
	b.mu.Lock()
	b.ctxErr = append(b.ctxErr, ctx.Err())
	b.mu.Unlock()
	return &providers.Generation{Content: validOutput, Provider: "blocking"}, nil
}

func TestGenerateSummaryCallerCancelDoesNotFailOthers(t *testing.T) {
	f := newFixture(t, validOutput)
	f.writeFragment(t, 7, "2024-05-01", "0900.txt", "hello")
	llm := &blockingSummarizer{entered: make(chan struct{}, 2), release: make(chan struct{})}
	gen, err := NewGenerator(f.store, llm, f.summaryRoot, WithLogger(logger.Nop()))
	require.NoError(t, err)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := gen.GenerateSummary(ctxA, 7, "2024-05-01", true)
		errA <- err
	}()
	<-llm.entered

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	type outcome struct {
		res *Result
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := gen.GenerateSummary(context.Background(), 7, "2024-05-01", true)
		doneB <- outcome{res, err}
	}()
	close(llm.release)

	b := <-doneB
	require.NoError(t, b.err)
	require.Equal(t, MessageGenerated, b.res.Message)
	require.Equal(t, "call tonight", b.res.Advice)

	llm.mu.Lock()
	defer llm.mu.Unlock()
	for _, err := range llm.ctxErr {
		require.NoError(t, err)
	}
}

func TestGenerateSummaryCacheWriteFailureStillGenerated(t *testing.T) {
	root := t.TempDir()
	st, err := store.New(filepath.Join(root, "audio"), filepath.Join(root, "context"))
	require.NoError(t, err)
	blocker := filepath.Join(root, "summary")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0o644))

	gen, err := NewGenerator(st, &stubSummarizer{content: validOutput}, blocker, WithLogger(logger.Nop()))
	require.NoError(t, err)

	path := filepath.Join(st.DayDir(7, "2024-05-01"), "0900.txt")
	require.NoError(t, store.SaveText(path, "hello"))

	res, err := gen.GenerateSummary(context.Background(), 7, "2024-05-01", false)
	require.NoError(t, err)
	require.Equal(t, MessageGenerated, res.Message)
	require.Equal(t, "call tonight", res.Advice)
}

func TestGenerateSummaryRejectsInvalidInput(t *testing.T) {
	f := newFixture(t, validOutput)

	res, err := f.gen.GenerateSummary(context.Background(), 0, "2024-05-01", false)
	require.ErrorIs(t, err, store.ErrInvalidSubject)
	require.Nil(t, res)

	res, err = f.gen.GenerateSummary(context.Background(), 7, "2024/05/01", false)
	require.ErrorIs(t, err, store.ErrInvalidDate)
	require.Nil(t, res)
}

func TestResultJSONShape(t *testing.T) {
	data, err := json.Marshal(newResult(7, "2024-05-01", Fields{Summary: "s"}, MessageGenerated))
	require.NoError(t, err)
	require.JSONEq(t, `{"elder_id":7,"date":"2024-05-01","summary":"s","physical_status":"","psychological_needs":"","advice":"","message":"generated"}`, string(data))
}
