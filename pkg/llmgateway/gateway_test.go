package llmgateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andylelli/cml-01-sub003/pkg/config"
	"github.com/andylelli/cml-01-sub003/pkg/models"
)

type fakeBackend struct {
	calls       int32
	failUntil   int32
	transient   bool
	response    Response
	permanentErr error
}

func (f *fakeBackend) Complete(ctx context.Context, req Request) (Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.permanentErr != nil {
		return Response{}, f.permanentErr
	}
	if n <= f.failUntil {
		if f.transient {
			return Response{}, &TransientError{Err: errors.New("rate limited")}
		}
		return Response{}, errors.New("boom")
	}
	return f.response, nil
}

type fakeLog struct {
	entries []models.OperationalLogEntry
}

func (f *fakeLog) RecordOperationalLog(ctx context.Context, entry models.OperationalLogEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.ModelRates = map[string]config.ModelRate{
		"default": {InputPerToken: 0.001, OutputPerToken: 0.002},
	}
	cfg.DefaultModel = "default"
	return cfg
}

func TestGatewayRetriesTransientErrors(t *testing.T) {
	backend := &fakeBackend{failUntil: 2, transient: true, response: Response{InputTokens: 10, OutputTokens: 20}}
	log := &fakeLog{}
	gw := New(backend, testConfig(), log)

	resp, err := gw.Call(context.Background(), CallMeta{Agent: "agent1"}, Request{TemplateID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, 10, resp.InputTokens)
	assert.EqualValues(t, 3, backend.calls)
	require.Len(t, log.entries, 1)
	assert.InDelta(t, 0.01+0.04, log.entries[0].EstimatedCostUSD, 1e-9)
}

func TestGatewayDoesNotRetryPermanentErrors(t *testing.T) {
	backend := &fakeBackend{permanentErr: errors.New("bad request")}
	log := &fakeLog{}
	gw := New(backend, testConfig(), log)

	_, err := gw.Call(context.Background(), CallMeta{}, Request{TemplateID: "t1"})
	require.Error(t, err)
	assert.EqualValues(t, 1, backend.calls)
	require.Len(t, log.entries, 1)
	assert.NotEmpty(t, log.entries[0].Error)
}

func TestGatewayComputesCostFromRateTableNotBackend(t *testing.T) {
	backend := &fakeBackend{response: Response{InputTokens: 100, OutputTokens: 100}}
	log := &fakeLog{}
	cfg := testConfig()
	gw := New(backend, cfg, log)

	_, err := gw.Call(context.Background(), CallMeta{}, Request{TemplateID: "t1"})
	require.NoError(t, err)
	want := 100*cfg.ModelRates["default"].InputPerToken + 100*cfg.ModelRates["default"].OutputPerToken
	assert.InDelta(t, want, log.entries[0].EstimatedCostUSD, 1e-9)
}
