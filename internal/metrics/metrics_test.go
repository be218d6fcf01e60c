package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

func TestZoneObservations(t *testing.T) {
	t.Parallel()
	m := New()
	z := ai.NewZone("observed", ai.WithObserver(m))
	t.Cleanup(z.Shutdown)

	boom := ai.NewTask("Boom", nil, func(*ai.AI, int64) ai.Status { panic("boom") })
	a := ai.NewAI(ai.NewBaseCharacter(1), boom)
	require.True(t, z.AddAI(a))
	z.Update(16)
	require.Equal(t, ai.Exception, a.LastStatus(boom.ID()))

	require.True(t, z.ExecuteAsync(1, func(*ai.AI) {}))
	require.True(t, z.ExecuteAsync(1, func(*ai.AI) {}))
	require.True(t, z.RemoveAI(1))
	z.Update(16)

	require.InDelta(t, 2, testutil.ToFloat64(m.ticks.WithLabelValues("observed")), 0)
	require.InDelta(t, 0, testutil.ToFloat64(m.ais.WithLabelValues("observed")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.deferredDrops.WithLabelValues("observed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.exceptions.WithLabelValues("observed", "Boom")), 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveTick("served", 3, 0)

	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `simpleai_zone_ais{zone="served"} 3`)
	require.Contains(t, string(body), "go_goroutines")
}
