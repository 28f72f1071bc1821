package linker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parcel-leads/internal/soda"
	"github.com/sells-group/parcel-leads/internal/soda/sodatest"
)

func TestLinkComplaints(t *testing.T) {
	f := sodatest.New().Serve("complaints",
		soda.Record{"unique_key": "1", "complaint_type": "HEAT/HOT WATER", "bbl": "1001230045", "created_date": "2024-05-20T10:00:00.000"},
		soda.Record{"unique_key": "2", "complaint_type": "NOISE", "bbl": "1001230045", "created_date": "2024-05-21T10:00:00.000"},
		soda.Record{"unique_key": "3", "complaint_type": "PLUMBING", "bbl": "", "incident_address": "12 MAIN ST"},
		soda.Record{"unique_key": "4", "complaint_type": "PLUMBING", "bbl": "2000010001"},
	)
	l := newTestLinker(f)
	r := testRoster(t)

	res, err := l.LinkComplaints(context.Background(), r, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 2, res.Unmatched)

	p := mustGet(t, r, "1001230045")
	require.Len(t, p.Complaints, 2)
	assert.Equal(t, "HEAT/HOT WATER", p.Complaints[0].Type)
	assert.Empty(t, mustGet(t, r, "1001230046").Complaints)

	calls := f.Calls("complaints")
	require.Len(t, calls, 1)
	assert.Equal(t,
		"(created_date >= '2024-05-02T00:00:00') AND (bbl in('1001230045','1001230046','1001240001'))",
		calls[0].Where)
}

func TestLinkViolations(t *testing.T) {
	f := sodatest.New().Serve("violations",
		soda.Record{"violationid": "V1", "class": "c", "bbl": "1001230045", "novissueddate": "2024-01-01T00:00:00.000"},
		soda.Record{"violationid": "V2", "class": "B", "bbl": "1001230045"},
		soda.Record{"violationid": "V3", "class": "A", "bbl": "1009990001"},
		soda.Record{"violationid": "V4", "class": "A"},
	)
	l := newTestLinker(f)
	r := testRoster(t)

	res, err := l.LinkViolations(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 2, res.Unmatched)

	p := mustGet(t, r, "1001230045")
	require.Len(t, p.Violations, 2)
	assert.Equal(t, "C", p.Violations[0].Class)
	assert.Equal(t, "B", p.Violations[1].Class)
}
