package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterValues(t *testing.T) {
	regOK.Store(false)
	require.NoError(t, Register(prometheus.NewRegistry()))

	beforeAbsent := testutil.ToFloat64(probeChecks.WithLabelValues("absent"))
	beforeOK := testutil.ToFloat64(probeSpawns.WithLabelValues("ok"))
	beforeErr := testutil.ToFloat64(downloadRuns.WithLabelValues("error"))
	beforeURLs := testutil.ToFloat64(downloadURLs)

	at := time.Unix(1710000000, 0)
	ObserveCheck("absent", at)
	ObserveCheck("absent", at)
	IncSpawn(nil)
	ObserveDownload(3, errors.New("engine failed"))

	assert.Equal(t, beforeAbsent+2, testutil.ToFloat64(probeChecks.WithLabelValues("absent")))
	assert.Equal(t, beforeOK+1, testutil.ToFloat64(probeSpawns.WithLabelValues("ok")))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(downloadRuns.WithLabelValues("error")))
	assert.Equal(t, beforeURLs+3, testutil.ToFloat64(downloadURLs))
	assert.Equal(t, float64(1710000000), testutil.ToFloat64(probeLastCheck))
}

func TestOutcomeLabel(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "error", outcome(errors.New("x")))
}
