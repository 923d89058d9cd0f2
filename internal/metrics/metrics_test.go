package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDownloadsServedByResult(t *testing.T) {
	before := testutil.ToFloat64(DownloadsServed.WithLabelValues(ResultExpired))
	DownloadsServed.WithLabelValues(ResultExpired).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(DownloadsServed.WithLabelValues(ResultExpired)))
}

func TestEntitlementsIssuedAdds(t *testing.T) {
	before := testutil.ToFloat64(EntitlementsIssued)
	EntitlementsIssued.Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(EntitlementsIssued))
}
