package schedule

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protosched/internal/protocol"
	logx "protosched/pkg/logx"
)

type fakeAssessments struct {
	items []protocol.Assessment
	err   error
	kinds []protocol.AssessmentType
}

func (f *fakeAssessments) GetAssessments(_ context.Context, kind protocol.AssessmentType) ([]protocol.Assessment, error) {
	f.kinds = append(f.kinds, kind)
	return f.items, f.err
}

type fakeCompletions struct {
	records []CompletedTaskRecord
	err     error
}

func (f fakeCompletions) CompletedTasks(context.Context) ([]CompletedTaskRecord, error) {
	return f.records, f.err
}

func newTestGenerator(a AssessmentSource, c CompletionSource, log logx.Logger) *Generator {
	return New(a, c, Options{
		Location: cet,
		Now:      func() time.Time { return testNow },
		Log:      log,
	})
}

func weeklyAssessment(name string, offsets ...int64) protocol.Assessment {
	return protocol.Assessment{Name: name, Type: protocol.TypeScheduled, Protocol: protocol.Protocol{
		RepeatProtocol:      weekly(),
		RepeatQuestionnaire: &protocol.RepeatRule{Unit: protocol.UnitHour, Amount: 1, UnitsFromZero: offsets},
	}}
}

func TestGenerateEmpty(t *testing.T) {
	g := newTestGenerator(&fakeAssessments{}, nil, logx.Logger{})
	res, err := g.Generate(context.Background(), testToday, nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Schedule)
	assert.NotNil(t, res.Completed)
	assert.Empty(t, res.Schedule)
	assert.Empty(t, res.Completed)
}

func TestGenerateReadsScheduledAssessments(t *testing.T) {
	src := &fakeAssessments{}
	_, err := newTestGenerator(src, nil, logx.Logger{}).Generate(context.Background(), testToday, nil)
	require.NoError(t, err)
	assert.Equal(t, []protocol.AssessmentType{protocol.TypeScheduled}, src.kinds)
}

func TestGenerateSortsAndIndexes(t *testing.T) {
	src := &fakeAssessments{items: []protocol.Assessment{
		weeklyAssessment("LATE", 10),
		weeklyAssessment("EARLY", 8),
	}}
	res, err := newTestGenerator(src, nil, logx.Logger{}).Generate(context.Background(), testToday, nil)
	require.NoError(t, err)
	require.Len(t, res.Schedule, 210)

	assert.Equal(t, "EARLY", res.Schedule[0].Name)
	assert.Equal(t, testToday.Add(8*time.Hour), res.Schedule[0].Timestamp)
	assert.Equal(t, 105, res.Schedule[0].Index, "indexes continue across assessments")
	assert.Equal(t, "LATE", res.Schedule[1].Name)
	assert.Equal(t, 0, res.Schedule[1].Index)

	for i := 1; i < len(res.Schedule); i++ {
		assert.False(t, res.Schedule[i].Timestamp.Before(res.Schedule[i-1].Timestamp))
	}
	seen := map[int]bool{}
	for _, task := range res.Schedule {
		assert.False(t, seen[task.Index])
		seen[task.Index] = true
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	src := &fakeAssessments{items: []protocol.Assessment{weeklyAssessment("A", 9, 21), weeklyAssessment("B", 12)}}
	g := newTestGenerator(src, nil, logx.Logger{})

	first, err := g.Generate(context.Background(), testToday, nil)
	require.NoError(t, err)
	second, err := g.Generate(context.Background(), testToday, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateReconcilesCompletions(t *testing.T) {
	src := &fakeAssessments{items: []protocol.Assessment{weeklyAssessment("A", 9)}}
	done := fakeCompletions{records: []CompletedTaskRecord{
		{Name: "A", Timestamp: testToday.Add(9 * time.Hour)},
		{Name: "GONE", Timestamp: testToday},
	}}
	res, err := newTestGenerator(src, done, logx.Logger{}).Generate(context.Background(), testToday, nil)
	require.NoError(t, err)
	require.Len(t, res.Completed, 1)
	assert.Equal(t, "A", res.Completed[0].Name)
	assert.True(t, res.Schedule[0].Completed)
}

func TestGenerateFetchFailure(t *testing.T) {
	var buf bytes.Buffer
	log := logx.NewWriter(&buf, "debug")
	boom := errors.New("boom")

	tests := []struct {
		name string
		a    *fakeAssessments
		c    CompletionSource
	}{
		{"assessments", &fakeAssessments{err: boom}, nil},
		{"completions", &fakeAssessments{}, fakeCompletions{err: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			res, err := newTestGenerator(tt.a, tt.c, log).Generate(context.Background(), testToday, nil)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrNoSchedule)
			assert.ErrorIs(t, err, boom)
			assert.Contains(t, buf.String(), "failed to schedule assessments")
		})
	}
}

func TestGenerateMalformedProtocol(t *testing.T) {
	src := &fakeAssessments{items: []protocol.Assessment{{Name: "BAD", Protocol: protocol.Protocol{RepeatProtocol: weekly()}}}}
	res, err := newTestGenerator(src, nil, logx.Logger{}).Generate(context.Background(), testToday, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNoSchedule)
	assert.ErrorIs(t, err, ErrMissingRepeatRule)
}

func TestGenerateClinical(t *testing.T) {
	a := protocol.Assessment{Name: "VISIT", Type: protocol.TypeOnDemand, Protocol: protocol.Protocol{
		ClinicalProtocol: &protocol.ClinicalProtocol{RepeatAfterClinicVisit: &protocol.RepeatRule{
			Unit: protocol.UnitDay, Amount: 1, UnitsFromZero: []int64{0, 7, 14},
		}},
	}}
	g := newTestGenerator(&fakeAssessments{}, nil, logx.Logger{})
	res, err := g.Run(context.Background(), Request{Kind: Clinical, Reference: testNow, Assessment: &a, IndexOffset: 12})
	require.NoError(t, err)

	require.Len(t, res.Schedule, 3)
	assert.Empty(t, res.Completed)
	assert.NotNil(t, res.Completed)
	for i, task := range res.Schedule {
		assert.Equal(t, 12+i, task.Index)
		assert.True(t, task.IsClinical)
		assert.Equal(t, testNow.AddDate(0, 0, 7*i), task.Timestamp)
	}
}

func TestRunRejectsClinicalWithoutAssessment(t *testing.T) {
	g := newTestGenerator(&fakeAssessments{}, nil, logx.Logger{})
	_, err := g.Run(context.Background(), Request{Kind: Clinical, Reference: testNow})
	assert.Error(t, err)
}
