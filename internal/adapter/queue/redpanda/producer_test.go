package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"

	"github.com/fairyhunter13/ai-analysis-core/internal/domain"
)

type fakeClient struct {
	records []*kgo.Record
	err     error
	pingErr error
	closed  bool
	resp    kmsg.Response
	reqErr  error
}

func (f *fakeClient) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	out := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func (f *fakeClient) Ping(context.Context) error { return f.pingErr }

func (f *fakeClient) Close() { f.closed = true }

func (f *fakeClient) Request(context.Context, kmsg.Request) (kmsg.Response, error) {
	return f.resp, f.reqErr
}

func header(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_PublishAnalysis(t *testing.T) {
	fc := &fakeClient{}
	p := newProducer(fc, "analysis-test")

	ev := domain.AnalysisEvent{
		RequestID: "01HREQ",
		UserID:    77,
		Outcome:   domain.OutcomeProvider,
		Provider:  "groq",
		Attempts:  2,
		At:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, p.PublishAnalysis(context.Background(), ev))
	require.Len(t, fc.records, 1)

	rec := fc.records[0]
	assert.Equal(t, "analysis-test", rec.Topic)
	assert.Equal(t, "77", string(rec.Key))
	assert.Equal(t, "provider", header(rec, "outcome"))
	assert.Equal(t, "01HREQ", header(rec, "request_id"))
	assert.Len(t, header(rec, "event_id"), 36)

	var got domain.AnalysisEvent
	require.NoError(t, json.Unmarshal(rec.Value, &got))
	assert.Equal(t, ev, got)
}

func TestProducer_PublishError(t *testing.T) {
	fc := &fakeClient{err: errors.New("broker down")}
	p := newProducer(fc, DefaultTopic)
	err := p.PublishAnalysis(context.Background(), domain.AnalysisEvent{UserID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op=event.publish")
}

func TestProducer_PingAndClose(t *testing.T) {
	fc := &fakeClient{pingErr: errors.New("unreachable")}
	p := newProducer(fc, DefaultTopic)
	assert.Error(t, p.Ping(context.Background()))
	p.Close()
	assert.True(t, fc.closed)
}

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := NewProducer(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.PublishAnalysis(context.Background(), domain.AnalysisEvent{}))
}

func topicsResponse(code int16) *kmsg.CreateTopicsResponse {
	resp := kmsg.NewPtrCreateTopicsResponse()
	tr := kmsg.NewCreateTopicsResponseTopic()
	tr.Topic = "t"
	tr.ErrorCode = code
	resp.Topics = append(resp.Topics, tr)
	return resp
}

func TestCreateTopicIfNotExists(t *testing.T) {
	tests := []struct {
		name    string
		client  *fakeClient
		topic   string
		wantErr bool
	}{
		{"created", &fakeClient{resp: topicsResponse(0)}, "t", false},
		{"already exists", &fakeClient{resp: topicsResponse(kerr.TopicAlreadyExists.Code)}, "t", false},
		{"authorization failed", &fakeClient{resp: topicsResponse(kerr.TopicAuthorizationFailed.Code)}, "t", true},
		{"request error", &fakeClient{reqErr: errors.New("eof")}, "t", true},
		{"empty topic", &fakeClient{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := createTopicIfNotExists(context.Background(), tt.client, tt.topic, 1, 1)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.Error(t, createTopicIfNotExists(context.Background(), &fakeClient{}, "t", 0, 1))
	assert.Error(t, createTopicIfNotExists(context.Background(), &fakeClient{}, "t", 1, 0))
}
