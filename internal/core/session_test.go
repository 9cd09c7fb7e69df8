package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionResetClearsAllSlots(t *testing.T) {
	s := NewSession(zap.NewNop())
	s.SetImageAnalysis(ImageAnalysisResult{FoodType: FoodType{Name: "Apple"}})
	s.SetSignalData(SignalProcessingData{PH: 6})
	s.SetClassification(QualityClassification{Grade: GradeA})
	s.SetFeedback(FinalFeedback{IsSafe: true})
	s.Log(StageImage, LogInfo, "hello")

	require.True(t, s.HasImageAnalysis())
	require.True(t, s.HasFeedback())

	s.Reset()

	assert.Nil(t, s.ImageAnalysis())
	assert.Nil(t, s.SignalData())
	assert.Nil(t, s.Classification())
	assert.Nil(t, s.Feedback())
	assert.Empty(t, s.Logs())
}

func TestSessionSubscribeFiresOncePerSet(t *testing.T) {
	s := NewSession(nil)
	var calls []SessionSnapshot
	unsubscribe := s.Subscribe(func(snap SessionSnapshot) {
		calls = append(calls, snap)
	})

	s.SetImageAnalysis(ImageAnalysisResult{FoodType: FoodType{Name: "Pear"}})
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].ImageAnalysis)
	assert.Equal(t, "Pear", calls[0].ImageAnalysis.FoodType.Name)

	s.SetSignalData(SignalProcessingData{PH: 5})
	s.SetClassification(QualityClassification{Grade: GradeB})
	s.SetFeedback(FinalFeedback{})
	assert.Len(t, calls, 4)

	s.Log(StageImage, LogInfo, "logs do not notify")
	assert.Len(t, calls, 4)

	unsubscribe()
	unsubscribe()
	s.SetFeedback(FinalFeedback{})
	assert.Len(t, calls, 4)
}

func TestSessionListenerPanicIsContained(t *testing.T) {
	s := NewSession(zap.NewNop())
	fired := 0
	s.Subscribe(func(SessionSnapshot) { panic("boom") })
	s.Subscribe(func(SessionSnapshot) { fired++ })

	assert.NotPanics(t, func() {
		s.SetSignalData(SignalProcessingData{PH: 7})
	})
	assert.Equal(t, 1, fired)
}

func TestSessionGettersReturnCopies(t *testing.T) {
	s := NewSession(nil)
	temp := 4.0
	s.SetSignalData(SignalProcessingData{PH: 6, Temperature: &temp})
	temp = 30

	got := s.SignalData()
	require.NotNil(t, got)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 4.0, *got.Temperature)

	got.PH = 1
	assert.Equal(t, 6.0, s.SignalData().PH)
}

func TestSessionImageAnalysisIsDeepCopied(t *testing.T) {
	s := NewSession(nil)
	in := ImageAnalysisResult{
		FoodType:   FoodType{Name: "Banana"},
		Detections: []Detection{{Class: "banana", Confidence: 0.9, BoundingBox: &BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}}},
		Quality:    &QualityAssessment{FreshnessScore: 80, Issues: []string{"bruise"}},
		Notes:      []string{"from roboflow"},
	}
	s.SetImageAnalysis(in)
	in.Detections[0].Class = "apple"
	in.Notes[0] = "changed"

	got := s.ImageAnalysis()
	require.NotNil(t, got)
	got.Detections[0].Class = "rotten"
	got.Detections[0].BoundingBox.Width = 99
	got.Quality.FreshnessScore = 0
	got.Quality.Issues[0] = "mold"
	got.Notes[0] = "edited"

	stored := s.Snapshot().ImageAnalysis
	require.NotNil(t, stored)
	assert.Equal(t, "banana", stored.Detections[0].Class)
	assert.Equal(t, 3.0, stored.Detections[0].BoundingBox.Width)
	assert.Equal(t, 80.0, stored.Quality.FreshnessScore)
	assert.Equal(t, []string{"bruise"}, stored.Quality.Issues)
	assert.Equal(t, []string{"from roboflow"}, stored.Notes)
}

func TestSessionFeedbackIsDeepCopied(t *testing.T) {
	s := NewSession(nil)
	s.SetFeedback(FinalFeedback{Explanation: []string{"pH is normal"}})

	s.Feedback().Explanation[0] = "tampered"
	s.Snapshot().Feedback.Explanation[0] = "tampered"

	assert.Equal(t, []string{"pH is normal"}, s.Feedback().Explanation)
}

func TestSessionSummary(t *testing.T) {
	s := NewSession(nil)
	sum := s.Summary()
	assert.Equal(t, s.ID, sum.ID)
	assert.False(t, sum.HasImageAnalysis)
	assert.Nil(t, sum.IsSafe)

	s.SetImageAnalysis(ImageAnalysisResult{FoodType: FoodType{Name: "Milk"}})
	s.SetClassification(QualityClassification{Grade: GradeC, Score: 65})
	s.SetFeedback(FinalFeedback{IsSafe: true, RiskLevel: RiskMedium})

	sum = s.Summary()
	assert.True(t, sum.HasImageAnalysis)
	assert.False(t, sum.HasSignalData)
	assert.Equal(t, "Milk", sum.FoodName)
	assert.Equal(t, GradeC, sum.Grade)
	assert.Equal(t, RiskMedium, sum.RiskLevel)
	require.NotNil(t, sum.IsSafe)
	assert.True(t, *sum.IsSafe)
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := NewSession(nil)
	s.Subscribe(func(SessionSnapshot) {})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.SetSignalData(SignalProcessingData{GasLevel: i})
			_ = s.Snapshot()
			s.Log(StageSignal, LogInfo, "reading")
		}(i)
	}
	wg.Wait()

	assert.True(t, s.HasSignalData())
	assert.Len(t, s.Logs(), 20)
}
