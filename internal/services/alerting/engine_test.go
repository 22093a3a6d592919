package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeonardoBeccarini/hydro_monitor/internal/metrics"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model"
	"github.com/LeonardoBeccarini/hydro_monitor/internal/model/entities"
)

func ptr(v float64) *float64 { return &v }

// warmWater breaches only the default water temperature maximum.
func warmWater(id int64) model.SensorReading {
	return model.SensorReading{ID: id, WaterTemp: 30, AirTemp: 25, Humidity: 60, TDS: 900}
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []model.Alert
	err error
}

func (n *recordingNotifier) Notify(_ context.Context, a model.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, a)
	return n.err
}

func TestEvaluate_DefaultThresholdScenario(t *testing.T) {
	store := newMemStore(1)
	notifier := &recordingNotifier{}
	e := NewEngine(store, WithNotifier(notifier))

	created, err := e.EvaluateReading(context.Background(), warmWater(10), 1)
	require.NoError(t, err)
	require.Len(t, created, 1)

	a := created[0]
	assert.Equal(t, entities.ParamWaterTemp, a.ParameterName)
	assert.Equal(t, entities.DirectionHigh, a.Direction)
	assert.Equal(t, entities.SeverityMedium, a.Severity)
	assert.Equal(t, 30.0, a.CurrentValue)
	assert.Equal(t, 28.0, a.ThresholdValue)
	assert.Nil(t, a.PlantAssignmentID)
	assert.Equal(t, int64(10), a.SourceReadingID)
	assert.Equal(t, "Water temperature too high", a.Title)
	assert.Len(t, notifier.got, 1)

	// the same breach again, even with a worse value, does not add an alert
	worse := warmWater(11)
	worse.WaterTemp = 40
	created, err = e.EvaluateReading(context.Background(), worse, 1)
	require.NoError(t, err)
	assert.Empty(t, created)
	open := store.openAlerts(1)
	require.Len(t, open, 1)
	assert.Equal(t, 30.0, open[0].CurrentValue)
}

func TestEvaluate_ResolutionFreesSlot(t *testing.T) {
	store := newMemStore(1)
	e := NewEngine(store)
	svc := NewService(store)
	ctx := context.Background()

	created, err := e.EvaluateReading(ctx, warmWater(1), 1)
	require.NoError(t, err)
	require.Len(t, created, 1)

	_, err = svc.Resolve(ctx, 1, created[0].ID, "grower")
	require.NoError(t, err)

	created, err = e.EvaluateReading(ctx, warmWater(2), 1)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, int64(2), created[0].SourceReadingID)
	assert.Len(t, store.openAlerts(1), 1)
}

func TestEvaluate_NullPHIsSkipped(t *testing.T) {
	store := newMemStore(1)
	e := NewEngine(store)

	r := model.SensorReading{ID: 1, WaterTemp: 22, AirTemp: 25, Humidity: 60, TDS: 900}
	created, err := e.EvaluateReading(context.Background(), r, 1)
	require.NoError(t, err)
	assert.Empty(t, created)

	r.PH = ptr(8.2)
	created, err = e.EvaluateReading(context.Background(), r, 1)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, entities.ParamPH, created[0].ParameterName)
	assert.Equal(t, 7.5, created[0].ThresholdValue)
}

func TestEvaluate_UsesActivePlantProfile(t *testing.T) {
	store := newMemStore(7)
	store.profiles[3] = model.PlantProfile{ID: 3, Name: "lettuce", Ranges: model.OptimalRanges{
		PH:        model.Range{Min: 5.5, Max: 6.5},
		TDS:       model.Range{Min: 560, Max: 840},
		WaterTemp: model.Range{Min: 18, Max: 24},
		AirTemp:   model.Range{Min: 15, Max: 24},
		Humidity:  model.Range{Min: 50, Max: 70},
	}}
	store.assignments[7] = []model.UserPlantAssignment{
		{ID: 70, UserID: 7, ProfileID: 3, Active: true},
		{ID: 71, UserID: 7, ProfileID: 3, Active: false},
	}
	e := NewEngine(store)

	created, err := e.EvaluateReading(context.Background(), warmWater(5), 7)
	require.NoError(t, err)

	// TDS 900, water 30 and air 25 are all outside the lettuce ranges
	require.Len(t, created, 3)
	params := map[model.Parameter]model.Alert{}
	for _, a := range created {
		params[a.ParameterName] = a
		require.NotNil(t, a.PlantAssignmentID)
		assert.Equal(t, int64(70), *a.PlantAssignmentID)
	}
	assert.Equal(t, entities.SeverityCritical, params[entities.ParamWaterTemp].Severity)
	assert.Equal(t, 840.0, params[entities.ParamTDS].ThresholdValue)
	assert.Equal(t, entities.SeverityMedium, params[entities.ParamAirTemp].Severity)
}

func TestEvaluate_ProfileFailureFallsBackToDefaults(t *testing.T) {
	store := newMemStore(1)
	store.assignments[1] = []model.UserPlantAssignment{{ID: 9, UserID: 1, ProfileID: 42, Active: true}}
	m := metrics.New()
	e := NewEngine(store, WithMetrics(m))

	created, err := e.EvaluateReading(context.Background(), warmWater(1), 1)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Nil(t, created[0].PlantAssignmentID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationErrors))
}

func TestEvaluate_MalformedRangeIsolated(t *testing.T) {
	store := newMemStore(1)
	bad := DefaultThresholds()
	bad.PH = model.Range{Min: 8, Max: 6}
	m := metrics.New()
	e := NewEngine(store, WithDefaults(bad), WithMetrics(m))

	r := warmWater(1)
	r.PH = ptr(9)
	r.Humidity = 95
	created, err := e.EvaluateReading(context.Background(), r, 1)
	require.NoError(t, err)

	var params []model.Parameter
	for _, a := range created {
		params = append(params, a.ParameterName)
	}
	assert.Equal(t, []model.Parameter{entities.ParamWaterTemp, entities.ParamHumidity}, params)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EvaluationErrors))
}

func TestEvaluate_AssignmentLoadFailure(t *testing.T) {
	store := newMemStore(1)
	store.assignErr = errors.New("connection refused")
	e := NewEngine(store)

	_, err := e.EvaluateReading(context.Background(), warmWater(1), 1)
	require.Error(t, err)
	assert.Equal(t, model.KindPersistence, model.KindOf(err))

	// the fire-and-forget entry point swallows it
	e.Evaluate(context.Background(), warmWater(1), 1)
}

func TestEvaluate_NotifierFailureKeepsAlert(t *testing.T) {
	store := newMemStore(1)
	e := NewEngine(store, WithNotifier(&recordingNotifier{err: errors.New("kafka down")}))

	created, err := e.EvaluateReading(context.Background(), warmWater(1), 1)
	require.NoError(t, err)
	assert.Len(t, created, 1)
	assert.Len(t, store.openAlerts(1), 1)
}

func TestEvaluate_ConcurrentBreachesCreateOneAlert(t *testing.T) {
	store := newMemStore(1)
	store.findDelay = 2 * time.Millisecond
	m := metrics.New()
	e := NewEngine(store, WithMetrics(m))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			e.Evaluate(context.Background(), warmWater(id), 1)
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Len(t, store.openAlerts(1), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsCreated.WithLabelValues("Water Temperature", "medium")))
	assert.Equal(t, 19.0, testutil.ToFloat64(m.AlertsSuppressed.WithLabelValues("Water Temperature")))
}

func TestEvaluate_StoreConflictIsSuppression(t *testing.T) {
	store := newMemStore(1)
	store.enforceUnique = true
	store.alerts = append(store.alerts, model.Alert{ID: 1, UserID: 1, ParameterName: entities.ParamWaterTemp})
	e := NewEngine(store)

	// FindOpenAlert sees the row, so InsertAlert is never reached
	created, err := e.EvaluateReading(context.Background(), warmWater(2), 1)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestStatusReport(t *testing.T) {
	store := newMemStore(1)
	e := NewEngine(store)

	r := model.SensorReading{WaterTemp: 30, AirTemp: 20.5, Humidity: 60, TDS: 900}
	report, err := e.StatusReport(context.Background(), r, 1)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "default", report[0].Profile)

	states := map[model.Parameter]ParameterState{}
	for _, ps := range report[0].Parameters {
		states[ps.Parameter] = ps
	}
	assert.Equal(t, "unknown", states[entities.ParamPH].State)
	assert.Equal(t, "optimal", states[entities.ParamTDS].State)
	assert.Equal(t, "out_of_range", states[entities.ParamWaterTemp].State)
	assert.Equal(t, entities.SeverityMedium, states[entities.ParamWaterTemp].Severity)
	assert.Equal(t, "warning", states[entities.ParamAirTemp].State)
	assert.Equal(t, entities.SeverityLow, states[entities.ParamAirTemp].Severity)
}
