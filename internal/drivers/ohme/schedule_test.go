package ohme

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStartMillis = int64(1700000000000)

func graph(points ...Point) DeviceSnapshot {
	return DeviceSnapshot{StartTimeMillis: testStartMillis, Points: points}
}

func TestInferWindows(t *testing.T) {
	const base = int64(1700000000)

	tests := []struct {
		name   string
		points []Point
		want   []int64
	}{
		{
			name:   "empty graph",
			points: nil,
			want:   []int64{},
		},
		{
			name:   "flat graph",
			points: []Point{{0, 0}, {600, 0}, {1200, 0}},
			want:   []int64{},
		},
		{
			name:   "flat graph above zero",
			points: []Point{{0, 5}, {100, 5}},
			want:   []int64{},
		},
		{
			name:   "single point above zero",
			points: []Point{{0, 5}},
			want:   []int64{},
		},
		{
			name:   "finished session holds its delivered total",
			points: []Point{{0, 12.5}, {600, 12.5}, {1200, 12.5}, {1800, 12.5}},
			want:   []int64{},
		},
		{
			name:   "graph starting above zero then rising",
			points: []Point{{0, 3}, {100, 3}, {200, 5}, {300, 5}},
			want:   []int64{base + 100, base + 200},
		},
		{
			name:   "rise then plateau",
			points: []Point{{0, 0}, {600, 0}, {1200, 2}, {1800, 4}, {2400, 4}},
			want:   []int64{base + 600, base + 1800},
		},
		{
			name:   "vertical step closes at the edge point",
			points: []Point{{0, 0}, {10, 0}, {10, 2}, {40, 2}, {40, 0}},
			want:   []int64{base + 10, base + 10},
		},
		{
			name:   "rise without plateau leaves window open",
			points: []Point{{0, 0}, {300, 1}, {600, 2}, {900, 3}},
			want:   []int64{base + 0},
		},
		{
			name: "two charge cycles",
			points: []Point{
				{0, 0}, {100, 1}, {200, 1},
				{300, 1}, {400, 2}, {500, 2},
			},
			want: []int64{base + 0, base + 100, base + 300, base + 400},
		},
		{
			name:   "fractional x rounds half to even",
			points: []Point{{0, 0}, {2.5, 0}, {3, 1}, {3.5, 2}, {5, 2}},
			want:   []int64{base + 2, base + 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferWindows(graph(tt.points...))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferWindows_StartTimeRounding(t *testing.T) {
	tests := []struct {
		name   string
		millis int64
		want   int64
	}{
		{name: "whole second", millis: 1700000000000, want: 1700000000},
		{name: "below half", millis: 1700000000499, want: 1700000000},
		{name: "above half", millis: 1700000000501, want: 1700000001},
		{name: "half to even down", millis: 1700000000500, want: 1700000000},
		{name: "half to even up", millis: 1700000001500, want: 1700000002},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshot := DeviceSnapshot{
				StartTimeMillis: tt.millis,
				Points:          []Point{{0, 0}, {0, 1}, {0, 1}},
			}
			got := InferWindows(snapshot)
			require.Len(t, got, 2)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestInferWindows_Deterministic(t *testing.T) {
	snapshot := graph(Point{0, 0}, Point{600, 0}, Point{1200, 2}, Point{1800, 4}, Point{2400, 4})

	first := InferWindows(snapshot)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, InferWindows(snapshot))
	}
}

func TestChargeWindow(t *testing.T) {
	t.Run("no boundaries", func(t *testing.T) {
		w := NewChargeWindow(graph(Point{0, 0}, Point{100, 0}))
		assert.False(t, w.Scheduled())

		_, ok := w.NextStart()
		assert.False(t, ok)
		_, ok = w.NextEnd()
		assert.False(t, ok)
		_, ok = w.FinalEnd()
		assert.False(t, ok)
	})

	t.Run("single window", func(t *testing.T) {
		w := NewChargeWindow(graph(Point{0, 0}, Point{600, 0}, Point{1200, 2}, Point{1800, 4}, Point{2400, 4}))
		require.True(t, w.Scheduled())

		start, ok := w.NextStart()
		require.True(t, ok)
		assert.Equal(t, time.Date(2023, 11, 14, 22, 23, 20, 0, time.UTC), start)

		end, ok := w.NextEnd()
		require.True(t, ok)
		assert.Equal(t, start.Add(20*time.Minute), end)

		final, ok := w.FinalEnd()
		require.True(t, ok)
		assert.Equal(t, end, final)
	})

	t.Run("dangling start", func(t *testing.T) {
		w := ChargeWindow{Boundaries: []int64{100, 200, 300}}

		end, ok := w.NextEnd()
		require.True(t, ok)
		assert.Equal(t, int64(200), end.Unix())

		final, ok := w.FinalEnd()
		require.True(t, ok)
		assert.Equal(t, int64(200), final.Unix())
	})

	t.Run("open window only", func(t *testing.T) {
		w := ChargeWindow{Boundaries: []int64{100}}
		assert.True(t, w.Scheduled())

		start, ok := w.NextStart()
		require.True(t, ok)
		assert.Equal(t, int64(100), start.Unix())

		_, ok = w.NextEnd()
		assert.False(t, ok)
		_, ok = w.FinalEnd()
		assert.False(t, ok)
	})
}
