package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dadoscon/municipal-etl/internal/adapter/csvfile"
	"github.com/dadoscon/municipal-etl/internal/domain"
	"github.com/dadoscon/municipal-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	published []domain.ContractRecord
	err       error
}

func (m *mockPublisher) PublishContracts(_ context.Context, recs []domain.ContractRecord) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.published = append(m.published, recs...)
	return len(recs), nil
}

func testGazetteer() *domain.Gazetteer {
	return domain.NewGazetteer([]domain.Municipality{
		{IBGECode: "3145901", Name: "Ouro Branco", UFCode: 31, Lat: -20.5195, Lon: -43.6962},
		{IBGECode: "3118007", Name: "Congonhas", UFCode: 31, Lat: -20.4958, Lon: -43.8577},
		{IBGECode: "3548500", Name: "Santos", UFCode: 35, Lat: -23.9535, Lon: -46.335},
	}, nil)
}

func openExport(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "contracts_export.txt"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestContracts_Run(t *testing.T) {
	fixed := time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	metrics := newTestMetrics()
	pub := &mockPublisher{}
	job := pipeline.NewContracts(testGazetteer(), pub, metrics, discardLogger())
	require.Error(t, job.CheckReadiness(context.Background()))

	var out bytes.Buffer
	report, err := job.Run(context.Background(), openExport(t), &out)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 4, report.Stats.Kept)
	assert.Equal(t, 1, report.Stats.Skipped)
	assert.Equal(t, 4, report.Renamed)
	assert.Equal(t, []string{"Atlantida - MG"}, report.Unmatched)
	assert.Equal(t, 4, report.Published)
	require.NoError(t, job.CheckReadiness(context.Background()))

	require.Len(t, pub.published, 4)
	names := make([]string, len(pub.published))
	for i, rec := range pub.published {
		names[i] = rec.Municipality
		assert.Equal(t, fixed, rec.ProcessedAt)
	}
	assert.Equal(t, []string{"Ouro Branco", "Congonhas", "Santos", "Atlantida"}, names)
	assert.Equal(t, "PREFEITURA MUNICIPAL DE OURO BRANCO - MG", pub.published[0].RawMunicipality)

	comps, err := csvfile.ReadCompetitors(&out)
	require.NoError(t, err)
	require.Len(t, comps, 4)
	assert.Equal(t, "Congonhas", comps[1].Municipality)
	assert.Equal(t, "2022-03-05", comps[1].StartDate)

	assert.InDelta(t, 4, testutil.ToFloat64(metrics.ContractsParsed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ContractsSkipped), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.ContractsPublished), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.UnmatchedMunicipios), 0)
}

func TestContracts_Run_WithoutGazetteerOrPublisher(t *testing.T) {
	job := pipeline.NewContracts(nil, nil, newTestMetrics(), discardLogger())

	var out bytes.Buffer
	report, err := job.Run(context.Background(), openExport(t), &out)
	require.NoError(t, err)
	assert.Empty(t, report.Unmatched)
	assert.Zero(t, report.Published)
	assert.Contains(t, out.String(), "CON-3;SP;Santos;Autarquia;Acme;Encerrado;2020-10-10;2021-10-10")
}

func TestContracts_Run_PublishError(t *testing.T) {
	job := pipeline.NewContracts(nil, &mockPublisher{err: errors.New("broker down")}, newTestMetrics(), discardLogger())

	var out bytes.Buffer
	_, err := job.Run(context.Background(), openExport(t), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Error(t, job.CheckReadiness(context.Background()))
	assert.NotEmpty(t, out.String(), "cleaned file is written before publishing")
}

func TestCleanContracts(t *testing.T) {
	recs := []domain.ContractRecord{
		{UF: "MG", Municipality: "Ouro Branco"},
		{UF: "MG", Municipality: "CAMARA MUNICIPAL DE CONGONHAS"},
	}
	got, renamed := pipeline.CleanContracts(recs)
	assert.Equal(t, 1, renamed)
	assert.Equal(t, "Congonhas", got[1].Municipality)
	assert.Equal(t, "CAMARA MUNICIPAL DE CONGONHAS", got[1].RawMunicipality)
	assert.Equal(t, "CAMARA MUNICIPAL DE CONGONHAS", recs[1].Municipality, "input is not modified")
}
