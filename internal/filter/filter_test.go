package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pydigest/internal/oracle"
	"pydigest/internal/types"
)

type fakeClassifier struct {
	verdicts map[string]oracle.Verdict
	errOnce  bool
	errAll   bool
	calls    int
}

func (f *fakeClassifier) Classify(ctx context.Context, items []oracle.Item, criteria oracle.Criteria) ([]oracle.Verdict, error) {
	f.calls++
	if f.errAll || (f.errOnce && f.calls == 1) {
		return nil, errors.New("upstream unavailable")
	}

	var out []oracle.Verdict
	for _, item := range items {
		if v, ok := f.verdicts[item.Key]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func canonical(link string) types.CanonicalItem {
	return types.CanonicalItem{Title: "title " + link, Summary: "summary", Link: link}
}

func TestFilterMapsVerdictsByKey(t *testing.T) {
	t.Parallel()

	items := []types.CanonicalItem{canonical("https://a.com/1"), canonical("https://b.com/1")}
	classifier := &fakeClassifier{verdicts: map[string]oracle.Verdict{
		"https://a.com/1": {Key: "https://a.com/1", Relevant: true, Score: 8, ContentType: "news"},
		"https://b.com/1": {Key: "https://b.com/1", Relevant: false, Score: 2, ContentType: "meme", Reason: "off topic"},
	}}

	run := types.NewPipelineRun()
	scored, err := New(classifier, Config{}).Filter(context.Background(), items, run)
	require.NoError(t, err)
	require.Len(t, scored, 2)

	assert.True(t, scored[0].Relevant)
	assert.Equal(t, 8.0, scored[0].Score)
	assert.Equal(t, types.TypeNews, scored[0].ContentType)
	assert.False(t, scored[1].Relevant)
	assert.Equal(t, 1, run.FilteredOut)
}

func TestFilterFailsClosedOnMissingVerdict(t *testing.T) {
	t.Parallel()

	items := []types.CanonicalItem{canonical("https://a.com/1"), canonical("https://b.com/1")}
	classifier := &fakeClassifier{verdicts: map[string]oracle.Verdict{
		"https://a.com/1": {Key: "https://a.com/1", Relevant: true, Score: 7},
	}}

	run := types.NewPipelineRun()
	scored, err := New(classifier, Config{}).Filter(context.Background(), items, run)
	require.NoError(t, err)
	require.Len(t, scored, 2)

	assert.False(t, scored[1].Relevant)
	assert.Equal(t, 1, run.ErrorsAt(types.StageFiltering))
	assert.True(t, types.IsOracleError(run.Errors[0].Err))
}

func TestFilterFatalWhenAllBatchesFail(t *testing.T) {
	t.Parallel()

	items := []types.CanonicalItem{canonical("https://a.com/1")}
	classifier := &fakeClassifier{errAll: true}

	run := types.NewPipelineRun()
	scored, err := New(classifier, Config{}).Filter(context.Background(), items, run)
	require.Error(t, err)
	assert.True(t, types.IsFatalError(err))
	assert.Nil(t, scored)
	assert.Equal(t, 1, run.ErrorsAt(types.StageFiltering))
}

func TestFilterPartialBatchFailureFailsClosed(t *testing.T) {
	t.Parallel()

	// Two batches of one item each; the first call errors, the second
	// succeeds. The run survives and the unclassified item stays out.
	items := []types.CanonicalItem{canonical("https://a.com/1"), canonical("https://b.com/1")}
	classifier := &fakeClassifier{
		errOnce: true,
		verdicts: map[string]oracle.Verdict{
			"https://a.com/1": {Key: "https://a.com/1", Relevant: true, Score: 9},
			"https://b.com/1": {Key: "https://b.com/1", Relevant: true, Score: 9},
		},
	}

	run := types.NewPipelineRun()
	f := New(classifier, Config{BatchSize: 1, Concurrency: 1})
	scored, err := f.Filter(context.Background(), items, run)
	require.NoError(t, err)
	require.Len(t, scored, 2)

	relevant := 0
	for _, si := range scored {
		if si.Relevant {
			relevant++
		}
	}
	assert.Equal(t, 1, relevant)
	assert.Equal(t, 1, run.FilteredOut)
	assert.Equal(t, 1, run.ErrorsAt(types.StageFiltering))
}

func TestFilterEmptyInput(t *testing.T) {
	t.Parallel()

	run := types.NewPipelineRun()
	scored, err := New(&fakeClassifier{}, Config{}).Filter(context.Background(), nil, run)
	require.NoError(t, err)
	assert.Empty(t, scored)
}

func TestFilterUnknownContentTypeDefaultsToOther(t *testing.T) {
	t.Parallel()

	items := []types.CanonicalItem{canonical("https://a.com/1")}
	classifier := &fakeClassifier{verdicts: map[string]oracle.Verdict{
		"https://a.com/1": {Key: "https://a.com/1", Relevant: true, Score: 5, ContentType: "podcast"},
	}}

	run := types.NewPipelineRun()
	scored, err := New(classifier, Config{}).Filter(context.Background(), items, run)
	require.NoError(t, err)
	assert.Equal(t, types.TypeOther, scored[0].ContentType)
}
