package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/lexmap/ai/mock"
	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLexicon groups words onto four concept axes: taking, property,
// violence, family.
func testLexicon() map[string]int {
	return map[string]int{
		"stole": 0, "steal": 0, "stolen": 0, "theft": 0, "take": 0, "dishonestly": 0,
		"bicycle": 1, "bike": 1, "property": 1, "movable": 1, "phone": 1,
		"beat": 2, "cruelty": 2, "hurt": 2, "murder": 2, "killed": 2,
		"husband": 3, "wife": 3, "relative": 3, "woman": 3, "dowry": 3,
	}
}

func testOffenses() []*core.OffenseRecord {
	return []*core.OffenseRecord{
		{Section: "302", Offense: "Murder", Description: "Whoever commits murder shall be punished", Punishment: "Death or imprisonment for life"},
		{Section: "379", Offense: "Theft", Description: "Whoever intends to take dishonestly any movable property", Punishment: "Imprisonment up to 3 years"},
		{Section: "498A", Offense: "Cruelty by husband", Description: "Husband or relative of husband subjecting a woman to cruelty", Punishment: "Imprisonment up to 3 years"},
		{Section: "511", Offense: "Attempt", Description: "Attempting to commit offences punishable with imprisonment", Punishment: "Half the longest term"},
	}
}

func testSuccessors() []*core.SuccessorRecord {
	return []*core.SuccessorRecord{
		{Section: "103", Description: "Punishment for murder", LegacySection: "302"},
		{Section: "303", Description: "Theft", LegacySection: "379"},
		{Section: "85", Description: "Cruelty by husband or his relatives", LegacySection: "498A"},
	}
}

func embeddedIndex(t *testing.T, offenses []*core.OffenseRecord) (*corpus.Index, *mock.LexiconEmbedder) {
	t.Helper()
	embedder := mock.NewLexiconEmbedder(testLexicon())
	idx, err := corpus.New(offenses, testSuccessors())
	require.NoError(t, err)
	require.NoError(t, idx.EmbedAll(context.Background(), embedder))
	return idx, embedder
}

func TestNewMatcher(t *testing.T) {
	t.Run("embedder required", func(t *testing.T) {
		_, err := NewMatcher(nil)
		assert.ErrorIs(t, err, ErrEmbedderRequired)
	})

	t.Run("invalid top-k", func(t *testing.T) {
		_, err := NewMatcher(mock.NewMockEmbedder(), WithTopK(0))
		assert.ErrorIs(t, err, ErrInvalidTopK)
	})

	t.Run("empty fallback", func(t *testing.T) {
		_, err := NewMatcher(mock.NewMockEmbedder(), WithFallbackRef("  "))
		assert.Error(t, err)
	})

	t.Run("nil logger and monitor use defaults", func(t *testing.T) {
		m, err := NewMatcher(mock.NewMockEmbedder(), WithLogger(nil), WithMonitor(nil))
		require.NoError(t, err)
		assert.NotNil(t, m.logger)
		assert.NotNil(t, m.monitor)
	})
}

func TestMatch_EndToEnd(t *testing.T) {
	idx, embedder := embeddedIndex(t, testOffenses())
	matcher, err := NewMatcher(embedder)
	require.NoError(t, err)

	result, err := matcher.Match(context.Background(), "someone stole my bicycle", idx)
	require.NoError(t, err)

	assert.Equal(t, "379", result.Offense.Section)
	assert.Equal(t, "Theft", result.Offense.Offense)
	assert.Equal(t, "BNS 303", result.SuccessorRef)
	assert.False(t, result.Fallback)
	require.NotNil(t, result.Successor)
	assert.Equal(t, "303", result.Successor.Section)
	assert.Equal(t, "someone stole my bicycle", result.Query)
	assert.Equal(t, "Theft (Sec 379)", result.Label())
	assert.InDelta(t, 1.0, result.Score, 1e-5)
	require.Len(t, result.Alternatives, 1)
	assert.Equal(t, 1, result.Alternatives[0].Rank)
}

func TestMatch_CrossReference(t *testing.T) {
	idx, embedder := embeddedIndex(t, testOffenses())
	matcher, err := NewMatcher(embedder)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("302 maps to BNS 103", func(t *testing.T) {
		result, err := matcher.Match(ctx, "he killed a man, murder", idx)
		require.NoError(t, err)
		assert.Equal(t, "302", result.Offense.Section)
		assert.Equal(t, "BNS 103", result.SuccessorRef)
	})

	t.Run("unmatched query picks the first offense", func(t *testing.T) {
		result, err := matcher.Match(ctx, "attempting to commit offences punishable", idx)
		require.NoError(t, err)
		// Nothing in the lexicon matches, so every score is zero and the
		// first offense in corpus order wins.
		assert.Equal(t, "302", result.Offense.Section)
		assert.False(t, result.Fallback)
	})

	t.Run("511 has no successor and falls back", func(t *testing.T) {
		attempt, _ := embeddedIndex(t, testOffenses()[3:])
		result, err := matcher.Match(ctx, "attempting to commit offences punishable", attempt)
		require.NoError(t, err)
		assert.Equal(t, "511", result.Offense.Section)
		assert.True(t, result.Fallback)
		assert.Nil(t, result.Successor)
		assert.Equal(t, DefaultFallbackRef, result.SuccessorRef)
	})

	t.Run("custom fallback and prefix", func(t *testing.T) {
		custom, err := NewMatcher(embedder, WithFallbackRef("General provision"), WithSuccessorPrefix("§"))
		require.NoError(t, err)

		_, ref, fallback := custom.Resolver(idx.Successors()).Resolve("511")
		assert.True(t, fallback)
		assert.Equal(t, "General provision", ref)

		result, err := custom.Match(ctx, "bike stolen", idx)
		require.NoError(t, err)
		assert.Equal(t, "§303", result.SuccessorRef)
	})
}

func TestMatch_FallbackResult(t *testing.T) {
	offenses := []*core.OffenseRecord{
		{Section: "511", Offense: "Attempt", Description: "theft of property"},
	}
	idx, embedder := embeddedIndex(t, offenses)
	matcher, err := NewMatcher(embedder)
	require.NoError(t, err)

	result, err := matcher.Match(context.Background(), "my phone was stolen", idx)
	require.NoError(t, err)
	assert.Equal(t, "511", result.Offense.Section)
	assert.Nil(t, result.Successor)
	assert.True(t, result.Fallback)
	assert.Equal(t, "BNS 303 (General)", result.SuccessorRef)
}

func TestMatch_MembershipAndDeterminism(t *testing.T) {
	idx, embedder := embeddedIndex(t, testOffenses())
	matcher, err := NewMatcher(embedder)
	require.NoError(t, err)
	ctx := context.Background()

	queries := []string{"wife beaten by husband for dowry", "phone stolen", "xyz", "murder"}
	for _, q := range queries {
		first, err := matcher.Match(ctx, q, idx)
		require.NoError(t, err)
		assert.Contains(t, idx.Offenses(), first.Offense, "match must be a corpus record")

		second, err := matcher.Match(ctx, q, idx)
		require.NoError(t, err)
		assert.Same(t, first.Offense, second.Offense)
		assert.Equal(t, first.Score, second.Score)
		assert.Equal(t, first.SuccessorRef, second.SuccessorRef)
	}
}

func TestMatch_SingleRecordCorpus(t *testing.T) {
	offenses := []*core.OffenseRecord{
		{Section: "498A", Offense: "Cruelty by husband", Description: "cruelty by husband"},
	}
	idx, embedder := embeddedIndex(t, offenses)
	matcher, err := NewMatcher(embedder)
	require.NoError(t, err)

	for _, q := range []string{"my bicycle was stolen", "completely unrelated words"} {
		result, err := matcher.Match(context.Background(), q, idx)
		require.NoError(t, err)
		assert.Same(t, offenses[0], result.Offense)
		assert.Equal(t, "BNS 85", result.SuccessorRef)
	}
}

func TestMatchTopK(t *testing.T) {
	offenses := []*core.OffenseRecord{
		{Section: "379", Offense: "Theft", Description: "theft of property"},
		{Section: "302", Offense: "Murder", Description: "murder"},
		{Section: "380", Offense: "Theft in dwelling house", Description: "theft property"},
		{Section: "381", Offense: "Theft by clerk", Description: "theft"},
	}
	idx, embedder := embeddedIndex(t, offenses)
	matcher, err := NewMatcher(embedder, WithTopK(3))
	require.NoError(t, err)
	ctx := context.Background()

	result, err := matcher.Match(ctx, "bike stolen", idx)
	require.NoError(t, err)
	require.Len(t, result.Alternatives, 3)

	// 379 and 380 tie; corpus order decides.
	assert.Equal(t, "379", result.Alternatives[0].Offense.Section)
	assert.Equal(t, "380", result.Alternatives[1].Offense.Section)
	assert.Equal(t, "381", result.Alternatives[2].Offense.Section)
	assert.Equal(t, result.Alternatives[0].Score, result.Alternatives[1].Score)
	assert.Greater(t, result.Alternatives[1].Score, result.Alternatives[2].Score)
	for i, c := range result.Alternatives {
		assert.Equal(t, i+1, c.Rank)
	}
	assert.Same(t, result.Offense, result.Alternatives[0].Offense)

	t.Run("k larger than corpus", func(t *testing.T) {
		result, err := matcher.MatchTopK(ctx, "bike stolen", idx, 10)
		require.NoError(t, err)
		assert.Len(t, result.Alternatives, 4)
	})

	t.Run("invalid k", func(t *testing.T) {
		_, err := matcher.MatchTopK(ctx, "bike stolen", idx, 0)
		assert.ErrorIs(t, err, ErrInvalidTopK)
	})
}

func TestMatch_Errors(t *testing.T) {
	ctx := context.Background()
	idx, embedder := embeddedIndex(t, testOffenses())
	matcher, err := NewMatcher(embedder)
	require.NoError(t, err)

	t.Run("blank query", func(t *testing.T) {
		for _, q := range []string{"", "   ", "\t\n"} {
			_, err := matcher.Match(ctx, q, idx)
			assert.ErrorIs(t, err, core.ErrEmptyQuery)
		}
	})

	t.Run("blank query is checked before the corpus", func(t *testing.T) {
		_, err := matcher.Match(ctx, " ", nil)
		assert.ErrorIs(t, err, core.ErrEmptyQuery)
	})

	t.Run("empty corpus", func(t *testing.T) {
		empty, err := corpus.New(nil, nil)
		require.NoError(t, err)
		_, err = matcher.Match(ctx, "bike stolen", empty)
		assert.ErrorIs(t, err, core.ErrEmptyCorpus)

		_, err = matcher.Match(ctx, "bike stolen", nil)
		assert.ErrorIs(t, err, core.ErrEmptyCorpus)
	})

	t.Run("corpus not embedded", func(t *testing.T) {
		raw, err := corpus.New(testOffenses(), testSuccessors())
		require.NoError(t, err)
		_, err = matcher.Match(ctx, "bike stolen", raw)
		assert.ErrorIs(t, err, corpus.ErrNotEmbedded)
	})

	t.Run("different model", func(t *testing.T) {
		other, err := NewMatcher(mock.NewMockEmbedder())
		require.NoError(t, err)
		_, err = other.Match(ctx, "bike stolen", idx)
		assert.ErrorIs(t, err, core.ErrEmbedding)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("query dimension mismatch", func(t *testing.T) {
		bad := mock.NewMockEmbedder()
		bad.ModelName = embedder.Model()
		bad.Dimension = embedder.Dimension + 1
		m, err := NewMatcher(bad)
		require.NoError(t, err)
		_, err = m.Match(ctx, "bike stolen", idx)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})

	t.Run("embedder failure is preserved", func(t *testing.T) {
		cause := errors.New("connection refused")
		failing := mock.NewMockEmbedder()
		failing.ModelName = embedder.Model()
		failing.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
			return nil, cause
		}
		m, err := NewMatcher(failing)
		require.NoError(t, err)

		_, err = m.Match(ctx, "bike stolen", idx)
		var embErr *core.EmbeddingError
		require.True(t, errors.As(err, &embErr))
		assert.Equal(t, "embed query", embErr.Op)
		assert.Same(t, cause, embErr.Err)
		assert.Equal(t, 1, failing.CallCount(), "no retries")
	})
}

type recordingMonitor struct {
	mu     sync.Mutex
	events []string
	result *core.MatchResult
}

func (r *recordingMonitor) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingMonitor) Start(string)                  { r.add("start") }
func (r *recordingMonitor) AfterQueryEmbedding([]float32) { r.add("embed") }
func (r *recordingMonitor) AfterRanking([]core.Candidate) { r.add("rank") }
func (r *recordingMonitor) AfterCrossReference(*core.SuccessorRecord, string, bool) {
	r.add("xref")
}
func (r *recordingMonitor) Finish(result *core.MatchResult) {
	r.add("finish")
	r.result = result
}

func TestMatchWithMonitor(t *testing.T) {
	idx, embedder := embeddedIndex(t, testOffenses())
	monitor := &recordingMonitor{}
	matcher, err := NewMatcher(embedder, WithMonitor(monitor))
	require.NoError(t, err)

	result, err := matcher.Match(context.Background(), "bicycle stolen", idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "embed", "rank", "xref", "finish"}, monitor.events)
	assert.Same(t, result, monitor.result)

	t.Run("rejected queries never start", func(t *testing.T) {
		quiet := &recordingMonitor{}
		_, err := matcher.MatchWithMonitor(context.Background(), "", idx, 1, quiet)
		assert.Error(t, err)
		assert.Empty(t, quiet.events)
	})
}

func TestMatch_ConcurrentReaders(t *testing.T) {
	idx, embedder := embeddedIndex(t, testOffenses())
	matcher, err := NewMatcher(embedder)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := matcher.Match(context.Background(), "someone stole my bicycle", idx)
			if assert.NoError(t, err) {
				assert.Equal(t, "379", result.Offense.Section)
			}
		}()
	}
	wg.Wait()
}
