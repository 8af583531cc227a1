package order

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SpotSentinel/internal/model"
)

type fakeExchange struct {
	calls []model.OrderRequest
	err   error
}

func (f *fakeExchange) PlaceOrder(_ context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &model.OrderResult{
		OrderID:       "1001",
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Side:          req.Side,
		Type:          req.Type,
		Price:         "95",
		Quantity:      "0.001",
		Status:        "NEW",
		SubmittedAt:   req.Timestamp,
	}, nil
}

type fakeLog struct {
	rows []*model.OrderResult
	err  error
}

func (f *fakeLog) Append(res *model.OrderResult) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, res)
	return nil
}

type fakeRisk struct{ err error }

func (f fakeRisk) Check(context.Context, model.OrderRequest) error { return f.err }

type fakeNotifier struct{ subjects []string }

func (f *fakeNotifier) Notify(_ context.Context, subject, _ string) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestPipeline(ex Submitter, l Log, opts Options) (*Pipeline, *test.Hook) {
	logger, hook := test.NewNullLogger()
	opts.Logger = logrus.NewEntry(logger)
	if opts.Symbol == "" {
		opts.Symbol = "BTCUSDT"
	}
	if opts.Quantity == 0 {
		opts.Quantity = 0.001
	}
	p := NewPipeline(ex, l, opts)
	p.now = func() time.Time { return fixedNow }
	p.newID = func() string { return "cid-1" }
	return p, hook
}

func TestSubmitHoldDoesNothing(t *testing.T) {
	ex := &fakeExchange{}
	l := &fakeLog{}
	p, _ := newTestPipeline(ex, l, Options{})

	res, err := p.Submit(context.Background(), model.Hold, 100)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, ex.calls)
	assert.Empty(t, l.rows)
}

func TestSubmitPlacesAndLogsOnce(t *testing.T) {
	ex := &fakeExchange{}
	l := &fakeLog{}
	n := &fakeNotifier{}
	p, _ := newTestPipeline(ex, l, Options{Notifier: n})

	res, err := p.Submit(context.Background(), model.Buy, 95)
	require.NoError(t, err)
	require.NotNil(t, res)

	require.Len(t, ex.calls, 1)
	req := ex.calls[0]
	assert.Equal(t, model.Buy, req.Side)
	assert.Equal(t, model.OrderTypeLimit, req.Type)
	assert.Equal(t, 0.001, req.Quantity)
	assert.Equal(t, 95.0, req.Price)
	assert.Equal(t, fixedNow, req.Timestamp)
	assert.Equal(t, "cid-1", req.ClientOrderID)

	require.Len(t, l.rows, 1)
	assert.Same(t, res, l.rows[0])
	assert.Equal(t, []string{"BUY 0.001 BTCUSDT @ 95"}, n.subjects)
}

func TestSubmitFailureWritesNoRow(t *testing.T) {
	boom := errors.New("connection reset")
	ex := &fakeExchange{err: boom}
	l := &fakeLog{}
	n := &fakeNotifier{}
	p, hook := newTestPipeline(ex, l, Options{Notifier: n})

	res, err := p.Submit(context.Background(), model.Sell, 105)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrSubmit)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, l.rows)
	assert.Len(t, n.subjects, 1)

	var sawError bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			sawError = true
		}
	}
	assert.True(t, sawError, "submission failure must be logged")
}

func TestLogWriteFailureReturnsResultAndRaisesAlert(t *testing.T) {
	diskFull := errors.New("no space left on device")
	ex := &fakeExchange{}
	l := &fakeLog{err: diskFull}
	n := &fakeNotifier{}
	p, _ := newTestPipeline(ex, l, Options{Notifier: n})

	res, err := p.Submit(context.Background(), model.Buy, 95)
	require.NotNil(t, res, "the order is live and must be reported")
	assert.Equal(t, "1001", res.OrderID)
	assert.ErrorIs(t, err, ErrLogWrite)
	assert.ErrorIs(t, err, diskFull)
	assert.Len(t, ex.calls, 1, "the order must not be resubmitted")
	require.Len(t, n.subjects, 1)
	assert.Contains(t, n.subjects[0], "CRITICAL")
}

func TestRiskRejectionSkipsExchange(t *testing.T) {
	veto := errors.New("quote_exposure_exceeded")
	ex := &fakeExchange{}
	l := &fakeLog{}
	p, _ := newTestPipeline(ex, l, Options{Risk: fakeRisk{err: veto}})

	res, err := p.Submit(context.Background(), model.Buy, 95)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrRiskRejected)
	assert.ErrorIs(t, err, veto)
	assert.Empty(t, ex.calls)
	assert.Empty(t, l.rows)
}

func TestDryRunSendsNothing(t *testing.T) {
	ex := &fakeExchange{}
	l := &fakeLog{}
	p, hook := newTestPipeline(ex, l, Options{DryRun: true, Risk: fakeRisk{}})

	res, err := p.Submit(context.Background(), model.Sell, 105)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, ex.calls)
	assert.Empty(t, l.rows)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "dry run, order not sent", hook.LastEntry().Message)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVLogWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "orders.csv")
	res := &model.OrderResult{
		OrderID: "1", ClientOrderID: "c1", Symbol: "BTCUSDT", Side: model.Buy,
		Type: model.OrderTypeLimit, Price: "95", Quantity: "0.001", Status: "NEW",
		SubmittedAt: fixedNow,
	}

	l, err := OpenCSVLog(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(res))
	require.NoError(t, l.Close())

	// Reopen as after a restart.
	l, err = OpenCSVLog(path)
	require.NoError(t, err)
	res2 := *res
	res2.OrderID = "2"
	require.NoError(t, l.Append(&res2))
	require.NoError(t, l.Close())

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, "1", records[1][1])
	assert.Equal(t, "2", records[2][1])
	assert.Equal(t, "2024-05-01T12:00:00Z", records[1][0])
	assert.Equal(t, "", records[1][9], "missing transact time renders empty")
}

func TestCSVLogRowIsDurableBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	l, err := OpenCSVLog(path)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append(&model.OrderResult{OrderID: "7", Side: model.Sell}))

	records := readCSV(t, path)
	require.Len(t, records, 2)
	assert.Equal(t, "SELL", records[1][4])
}

// flakyFile writes half of the next buffer and then fails, like a disk
// that fills up mid-row.
type flakyFile struct {
	*os.File
	failNext bool
}

func (f *flakyFile) Write(p []byte) (int, error) {
	if f.failNext {
		f.failNext = false
		n, _ := f.File.Write(p[:len(p)/2])
		return n, errors.New("no space left on device")
	}
	return f.File.Write(p)
}

func TestCSVLogRecoversAfterFailedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	l, err := OpenCSVLog(path)
	require.NoError(t, err)
	defer l.Close()

	ff := &flakyFile{File: l.file.(*os.File), failNext: true}
	l.file = ff
	l.w = csv.NewWriter(ff)

	err = l.Append(&model.OrderResult{OrderID: "1", Side: model.Buy})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no space left on device")

	require.NoError(t, l.Append(&model.OrderResult{OrderID: "2", Side: model.Sell}))

	records := readCSV(t, path)
	require.Len(t, records, 2, "partial row must not survive")
	assert.Equal(t, Header, records[0])
	assert.Equal(t, "2", records[1][1])
	assert.Equal(t, "SELL", records[1][4])
}

func TestPipelineWithCSVLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.csv")
	l, err := OpenCSVLog(path)
	require.NoError(t, err)
	defer l.Close()

	p, _ := newTestPipeline(&fakeExchange{}, l, Options{})
	_, err = p.Submit(context.Background(), model.Buy, 95)
	require.NoError(t, err)
	_, err = p.Submit(context.Background(), model.Hold, 95)
	require.NoError(t, err)

	records := readCSV(t, path)
	require.Len(t, records, 2, "header plus exactly one order")
	assert.Equal(t, "cid-1", records[1][2])
	for _, col := range records[0] {
		assert.NotEqual(t, "signature", col)
	}
}
